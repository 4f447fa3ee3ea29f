// Package deviceid generates the stable device/session identifiers the
// signature canonical string requires (user_unique_id, device_platform,
// device_type).
//
// Adapted from internal/fingerprint/device.go's hostname+OS SHA-256 hash;
// generalized into a struct so a process can hold more than one synthetic
// identity (one per credential) instead of a single package-level cache.
package deviceid

import (
	"crypto/sha256"
	"fmt"
	"os"
	"runtime"
)

// Identity is the fixed set of device-shaped values a session presents to
// the platform alongside its credential.
type Identity struct {
	UserUniqueID   string
	DevicePlatform string
	DeviceType     string
}

var cached *Identity

// Generate returns the process's device identity, computing and caching it
// on first call. The hash is derived from hostname and OS/arch, matching
// the reference implementation's approach — it only needs to be stable
// across a process lifetime, not globally unique.
func Generate() Identity {
	if cached != nil {
		return *cached
	}

	hostname, _ := os.Hostname()
	osInfo := runtime.GOOS + runtime.GOARCH
	data := fmt.Sprintf("%s|%s", hostname, osInfo)
	hash := sha256.Sum256([]byte(data))

	id := Identity{
		UserUniqueID:   fmt.Sprintf("%x", hash)[:19],
		DevicePlatform: "web",
		DeviceType:     runtime.GOOS,
	}
	cached = &id
	return id
}
