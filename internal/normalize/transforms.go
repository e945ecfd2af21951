package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"venuehub/internal/venue"
)

var (
	multiSpace  = regexp.MustCompile(`\s+`)
	phoneDigits = regexp.MustCompile(`[^0-9+]`)
)

// CleanName collapses whitespace and trims decorative punctuation so names
// from different providers compare equal.
func CleanName(raw string) string {
	name := strings.TrimSpace(raw)
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.Trim(name, `"'`)
}

// NameFingerprint lowercases and strips punctuation for cross-source
// identity comparison. "Luigi's Pizza" and "luigis pizza" collapse.
func NameFingerprint(raw string) string {
	name := strings.ToLower(CleanName(raw))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune(' ')
		}
	}
	return multiSpace.ReplaceAllString(strings.TrimSpace(b.String()), " ")
}

// CleanAddress normalizes whitespace and trailing punctuation. It does not
// attempt full postal parsing.
func CleanAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	addr = multiSpace.ReplaceAllString(addr, " ")
	addr = strings.TrimRight(addr, ",.")
	return addr
}

// NormalizePhone reduces a phone number to digits with an optional leading
// plus. Returns an error when too few digits survive to be a dialable
// number.
func NormalizePhone(raw string) (string, error) {
	cleaned := phoneDigits.ReplaceAllString(raw, "")
	if strings.Count(cleaned, "+") > 1 || (strings.Contains(cleaned, "+") && !strings.HasPrefix(cleaned, "+")) {
		return "", fmt.Errorf("malformed phone %q", raw)
	}
	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("phone %q has %d digits, want 7-15", raw, len(digits))
	}
	return cleaned, nil
}

// ParsePriceSymbol maps provider price encodings to the canonical 1..4
// scale. Accepts currency-symbol runs ("$$", "€€€") and bare digits.
func ParsePriceSymbol(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '4' {
		return int(s[0] - '0'), nil
	}
	runes := []rune(s)
	first := runes[0]
	if first == '$' || first == '€' || first == '£' || first == '¥' {
		n := 0
		for _, r := range runes {
			if r != first {
				return 0, fmt.Errorf("mixed price symbols in %q", raw)
			}
			n++
		}
		if n > 4 {
			n = 4
		}
		return n, nil
	}
	return 0, fmt.Errorf("unrecognized price encoding %q", raw)
}

// ClampRating forces a rating into the canonical [0,5] domain.
func ClampRating(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 5 {
		return 5
	}
	return r
}

// ScaleRating converts a provider-native rating to [0,5]. Used by adapters
// whose sources score on a different ceiling (e.g. 10-point scales).
func ScaleRating(r, nativeMax float64) float64 {
	if nativeMax <= 0 {
		return 0
	}
	return ClampRating(r / nativeMax * 5)
}

// ValidCoordinates reports whether a point is inside the WGS84 domain.
func ValidCoordinates(c venue.Coordinates) bool {
	if !c.Present {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
