// utils/names.go
package utils

import (
	"strings"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"
)

const maxDisplayName = 32

// NormalizeDisplayName makes client-supplied names safe to show on the
// shared screen: NFC-composed, trimmed, length-capped, never empty.
func NormalizeDisplayName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "Player"
	}
	runes := []rune(name)
	if len(runes) > maxDisplayName {
		name = string(runes[:maxDisplayName])
	}
	return name
}

// ASCIIName folds a display name to plain ASCII, for log lines and object
// keys that must stay 7-bit.
func ASCIIName(name string) string {
	folded := strings.TrimSpace(unidecode.Unidecode(name))
	if folded == "" {
		return "player"
	}
	return folded
}
