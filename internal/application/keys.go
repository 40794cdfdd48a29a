package application

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// licenseKeyAlphabet avoids padding characters in generated keys.
var licenseKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newLicenseKey generates a 25-character key grouped as five blocks of five
// (XXXXX-XXXXX-XXXXX-XXXXX-XXXXX). Global uniqueness is still enforced by the
// store's unique index; the caller retries on the rare collision.
func newLicenseKey() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate license key: %w", err)
	}
	encoded := licenseKeyEncoding.EncodeToString(raw)
	if len(encoded) < 25 {
		return "", fmt.Errorf("generate license key: short encoding")
	}
	encoded = strings.ToUpper(encoded[:25])
	groups := make([]string, 0, 5)
	for i := 0; i < 25; i += 5 {
		groups = append(groups, encoded[i:i+5])
	}
	return strings.Join(groups, "-"), nil
}
