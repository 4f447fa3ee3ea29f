// Package signature builds the canonical parameter string handed to the
// platform's opaque request-signing oracle, and generates the companion
// msToken cookie value.
//
// Grounded on the reference implementation's fixed-order "k=v,k=v,..."
// join (see original_source's signature helper) — the hash function and
// parameter order are load-bearing wire details the platform checks
// server-side, so they are reproduced exactly rather than reinterpreted.
package signature

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// paramOrder is the fixed, platform-mandated field order for the canonical
// signing string. Reordering breaks the signature server-side.
var paramOrder = []string{
	"live_id",
	"aid",
	"version_code",
	"webcast_sdk_version",
	"room_id",
	"sub_room_id",
	"sub_channel_id",
	"did_rule",
	"user_unique_id",
	"device_platform",
	"device_type",
	"ac",
	"identity",
}

// Params holds the values plugged into the canonical string, keyed by the
// same names as paramOrder.
type Params map[string]string

// Canonical builds the "k=v,k=v,..." string in the mandated field order.
// Missing params serialize as an empty value rather than being omitted —
// the oracle expects every key present.
func Canonical(p Params) string {
	parts := make([]string, 0, len(paramOrder))
	for _, k := range paramOrder {
		parts = append(parts, fmt.Sprintf("%s=%s", k, p[k]))
	}
	return strings.Join(parts, ",")
}

// Digest returns the hex-encoded MD5 of the canonical string — the value
// handed to the external signing oracle, not the final X-Bogus/signature
// header itself (the oracle's internal algorithm is out of scope here).
func Digest(p Params) string {
	sum := md5.Sum([]byte(Canonical(p)))
	return hex.EncodeToString(sum[:])
}

// Oracle computes the final signature header value from a canonical
// digest. The concrete algorithm is platform-internal and opaque to this
// module; callers plug in whatever implementation they're authorized to
// use.
type Oracle interface {
	Sign(digest string) (string, error)
}

const msTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

const msTokenLength = 182

// NewMsToken generates a fresh msToken cookie value: a random string drawn
// from the URL-safe base64 alphabet at the length the platform's web
// client produces.
func NewMsToken() (string, error) {
	buf := make([]byte, msTokenLength)
	raw := make([]byte, msTokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("signature: generate msToken: %w", err)
	}
	for i, b := range raw {
		buf[i] = msTokenAlphabet[int(b)%len(msTokenAlphabet)]
	}
	return string(buf), nil
}
