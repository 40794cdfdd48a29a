package application

import (
	"strings"
	"testing"
)

func TestNewLicenseKeyFormat(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := newLicenseKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		groups := strings.Split(key, "-")
		if len(groups) != 5 {
			t.Fatalf("expected 5 groups, got %q", key)
		}
		for _, group := range groups {
			if len(group) != 5 {
				t.Fatalf("expected 5-char groups, got %q", key)
			}
			if group != strings.ToUpper(group) {
				t.Fatalf("key must be upper case, got %q", key)
			}
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}
