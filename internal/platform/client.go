// Package platform is the HTTP client for the two read-only platform
// endpoints Discovery and the Session's slow/fast-path metadata fetch
// depend on: the following-list (discovery) endpoint and the room-detail
// endpoint.
//
// Grounded on internal/api/client.go's request-building shape (header
// setup, GetBody-based retry bodies, status-code branching); the
// hand-rolled exponential-backoff loop there is replaced with
// github.com/cenkalti/backoff/v4, reserved for transient (5xx/network)
// failures only — 401/403 and business-error responses are classified and
// returned immediately so the caller's credential-rotation logic can act
// on them.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"livepulse/internal/deviceid"
	"livepulse/internal/ingesterr"
	"livepulse/internal/signature"
)

// Client is the platform HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	oracle     signature.Oracle
	log        zerolog.Logger
}

// New builds a Client. oracle computes the opaque a_bogus signature over a
// canonical parameter string; it is supplied by the caller since the
// algorithm itself is platform-internal.
func New(baseURL, userAgent string, oracle signature.Oracle, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		userAgent:  userAgent,
		oracle:     oracle,
		log:        log.With().Str("component", "platform").Logger(),
	}
}

// FollowListPage fetches one page of the account's follow list.
func (c *Client) FollowListPage(ctx context.Context, cookie string, dev deviceid.Identity, secUserID string, offset, count int) (FollowListResponse, error) {
	msToken, err := signature.NewMsToken()
	if err != nil {
		return FollowListResponse{}, fmt.Errorf("platform: follow list: %w", err)
	}

	q := url.Values{}
	q.Set("device_platform", dev.DevicePlatform)
	q.Set("aid", "0")
	q.Set("channel", "0")
	q.Set("sec_user_id", secUserID)
	q.Set("offset", fmt.Sprintf("%d", offset))
	q.Set("count", fmt.Sprintf("%d", count))
	q.Set("min_time", "0")
	q.Set("max_time", "0")
	q.Set("source_type", "1")
	q.Set("gps_access", "0")
	q.Set("address_book_access", "0")
	q.Set("is_top", "1")
	q.Set("pc_client_type", "0")
	q.Set("version_code", "170400")
	q.Set("webcast_sdk_version", "1.0.0")
	q.Set("cookie_enabled", "true")
	q.Set("platform", "PC")
	q.Set("msToken", msToken)

	bogus, err := c.sign(q, dev)
	if err != nil {
		return FollowListResponse{}, fmt.Errorf("platform: follow list: %w", err)
	}
	q.Set("a_bogus", bogus)

	var resp FollowListResponse
	if err := c.getJSON(ctx, "/aweme/v1/web/user/following/list/", q, cookie, &resp); err != nil {
		return FollowListResponse{}, err
	}
	return resp, nil
}

// RoomDetail fetches one broadcaster's room-detail payload. Either
// webRID or secUserID may be empty depending on which routing identifier
// the caller has available.
func (c *Client) RoomDetail(ctx context.Context, cookie string, dev deviceid.Identity, webRID, secUserID string) (RoomDetail, error) {
	msToken, err := signature.NewMsToken()
	if err != nil {
		return RoomDetail{}, fmt.Errorf("platform: room detail: %w", err)
	}

	q := url.Values{}
	q.Set("device_platform", dev.DevicePlatform)
	q.Set("aid", "0")
	q.Set("web_rid", webRID)
	q.Set("sec_user_id", secUserID)
	q.Set("room_id_str", "")
	q.Set("version_code", "170400")
	q.Set("webcast_sdk_version", "1.0.0")
	q.Set("cookie_enabled", "true")
	q.Set("platform", "PC")
	q.Set("msToken", msToken)

	bogus, err := c.sign(q, dev)
	if err != nil {
		return RoomDetail{}, fmt.Errorf("platform: room detail: %w", err)
	}
	q.Set("a_bogus", bogus)

	var raw rawRoomDetailResponse
	if err := c.getJSON(ctx, "/webcast/room/reflow/info/", q, cookie, &raw); err != nil {
		return RoomDetail{}, err
	}
	if raw.StatusCode != 0 {
		return RoomDetail{}, fmt.Errorf("platform: room detail: business code %d: %s: %w", raw.StatusCode, raw.StatusMsg, ingesterr.ErrBusiness)
	}
	return extractRoomDetail(raw), nil
}

func extractRoomDetail(raw rawRoomDetailResponse) RoomDetail {
	if len(raw.Data.Nested) > 0 {
		return raw.Data.Nested[0]
	}
	return raw.Data.RoomDetail
}

func (c *Client) sign(q url.Values, dev deviceid.Identity) (string, error) {
	params := signature.Params{
		"live_id":             "12",
		"aid":                 q.Get("aid"),
		"version_code":        q.Get("version_code"),
		"webcast_sdk_version": q.Get("webcast_sdk_version"),
		"room_id":             q.Get("room_id_str"),
		"sub_room_id":         "",
		"sub_channel_id":      "",
		"did_rule":            "1",
		"user_unique_id":      dev.UserUniqueID,
		"device_platform":     dev.DevicePlatform,
		"device_type":         dev.DeviceType,
		"ac":                  "wifi",
		"identity":            "audience",
	}
	digest := signature.Digest(params)
	bogus, err := c.oracle.Sign(digest)
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	return bogus, nil
}

// getJSON performs a GET with retry/backoff limited to transient failures,
// decoding the JSON body into out on success.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, cookie string, out any) error {
	u := c.baseURL + path + "?" + q.Encode()

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	var body []byte
	var status int
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("platform: build request: %w", err))
		}
		req.Header.Set("Cookie", cookie)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("platform: request: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("platform: read body: %w", err)
		}
		status = resp.StatusCode
		body = b

		if status >= 500 {
			return fmt.Errorf("platform: http %d", status)
		}
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		return ingesterr.Transient("platform: getJSON", err)
	}

	var env businessErrorEnvelope
	_ = json.Unmarshal(body, &env)
	if err := classifyStatus("platform: getJSON", status, env, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return ingesterr.Parse("platform: getJSON", err)
	}
	return nil
}
