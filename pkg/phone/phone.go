// Package phone converts WhatsApp identities into the canonical Brazilian
// national form (area code + subscriber, no country code).
package phone

import (
	"errors"
	"strings"
)

const countryCode = "55"

var ErrInvalid = errors.New("invalid phone number")

// Normalize returns the national form of raw. It accepts provider JIDs
// ("5511987654321@c.us"), formatted numbers and bare digits. Ten digit mobile
// numbers get the ninth digit inserted after the area code.
func Normalize(raw string) (string, error) {
	if at := strings.IndexByte(raw, '@'); at >= 0 {
		raw = raw[:at]
	}
	if dash := strings.IndexByte(raw, '-'); dash > 0 && strings.HasPrefix(raw, "120") {
		// group ids look like 1203630...-1612345678
		return "", ErrInvalid
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}

	switch len(digits) {
	case 10:
		if isMobilePrefix(digits[2]) {
			digits = digits[:2] + "9" + digits[2:]
		}
	case 11:
		if digits[2] != '9' {
			return "", ErrInvalid
		}
	default:
		return "", ErrInvalid
	}

	if digits[0] == '0' {
		return "", ErrInvalid
	}
	return digits, nil
}

// MustNormalize is Normalize for trusted fixtures; it returns "" on error.
func MustNormalize(raw string) string {
	n, err := Normalize(raw)
	if err != nil {
		return ""
	}
	return n
}

// International prefixes the country code for the provider API.
func International(national string) string {
	if strings.HasPrefix(national, countryCode) && len(national) > 11 {
		return national
	}
	return countryCode + national
}

func isMobilePrefix(c byte) bool {
	return c >= '6' && c <= '9'
}
