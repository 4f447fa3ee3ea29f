package platform

import (
	"fmt"
	"net/http"

	"livepulse/internal/ingesterr"
)

// classifyStatus maps an HTTP status + decoded business envelope to the
// shared error taxonomy, so discovery's rotation logic can switch on
// errors.Is without knowing about HTTP at all.
func classifyStatus(op string, status int, env businessErrorEnvelope, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: http %d: %w", op, status, ingesterr.ErrCredentialInvalid)
	case status >= 500:
		return fmt.Errorf("%s: http %d: %w", op, status, ingesterr.ErrTransient)
	case status >= 400:
		return fmt.Errorf("%s: http %d: %s: %w", op, status, string(body), ingesterr.ErrBusiness)
	case env.StatusCode != 0:
		return fmt.Errorf("%s: business code %d: %s: %w", op, env.StatusCode, env.StatusMsg, ingesterr.ErrBusiness)
	}
	return nil
}
