package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// oneTimeCode returns the current 6-digit TOTP code for a base32 secret.
// Authenticator apps often show the secret grouped with spaces.
func oneTimeCode(secret string, now time.Time) (string, error) {
	secret = strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		return "", fmt.Errorf("generating one-time code: %w", err)
	}
	return code, nil
}
