package enums

import (
	"fmt"
	"strings"
)

// EventType buckets carts and orders by the kind of sale they came from.
type EventType string

const (
	EventTypeBazar EventType = "BAZAR"
	EventTypeLive  EventType = "LIVE"
)

var validEventTypes = []EventType{
	EventTypeBazar,
	EventTypeLive,
}

func (e EventType) String() string {
	return string(e)
}

func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType is case-insensitive.
func ParseEventType(value string) (EventType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validEventTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// SaleType tags a product with the sale format it is offered through.
type SaleType string

const (
	// SaleTypeBazar covers scheduled catalogue broadcasts.
	SaleTypeBazar SaleType = "bazar"
	SaleTypeLive  SaleType = "live"
)

var validSaleTypes = []SaleType{
	SaleTypeBazar,
	SaleTypeLive,
}

func (s SaleType) String() string {
	return string(s)
}

func (s SaleType) IsValid() bool {
	for _, candidate := range validSaleTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseSaleType(value string) (SaleType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validSaleTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale type %q", value)
}

// EventType maps the sale format onto the cart/order bucket. Unknown tags
// fall into the bazar bucket.
func (s SaleType) EventType() EventType {
	switch s {
	case SaleTypeLive:
		return EventTypeLive
	default:
		return EventTypeBazar
	}
}
