package enums

import (
	"fmt"
	"strings"
)

// CartStatus is OPEN while the (tenant, phone, event) bucket accepts items
// and CLOSED once its order is finalized.
type CartStatus string

const (
	CartStatusOpen   CartStatus = "OPEN"
	CartStatusClosed CartStatus = "CLOSED"
)

func (c CartStatus) String() string {
	return string(c)
}

func (c CartStatus) IsValid() bool {
	switch c {
	case CartStatusOpen, CartStatusClosed:
		return true
	}
	return false
}

// ParseCartStatus accepts either case.
func ParseCartStatus(value string) (CartStatus, error) {
	status := CartStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid cart status %q", value)
	}
	return status, nil
}
