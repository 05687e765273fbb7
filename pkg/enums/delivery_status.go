package enums

import (
	"fmt"
	"strings"
)

// DeliveryStatus tracks an outbound message through the provider.
type DeliveryStatus string

const (
	DeliveryStatusSent     DeliveryStatus = "SENT"
	DeliveryStatusFailed   DeliveryStatus = "FAILED"
	DeliveryStatusReceived DeliveryStatus = "RECEIVED"
	DeliveryStatusRead     DeliveryStatus = "READ"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusSent,
	DeliveryStatusFailed,
	DeliveryStatusReceived,
	DeliveryStatusRead,
}

var deliveryStatusRank = map[DeliveryStatus]int{
	DeliveryStatusFailed:   0,
	DeliveryStatusSent:     1,
	DeliveryStatusReceived: 2,
	DeliveryStatusRead:     3,
}

func (d DeliveryStatus) String() string {
	return string(d)
}

func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsDelivered reports whether the status proves the message reached the phone.
func (d DeliveryStatus) IsDelivered() bool {
	return d == DeliveryStatusReceived || d == DeliveryStatusRead
}

// Terminal statuses are never updated again by the provider.
func (d DeliveryStatus) Terminal() bool {
	return d == DeliveryStatusFailed || d == DeliveryStatusRead
}

// Supersedes reports whether moving from prev to d is forward progress.
// A late FAILED never overrides a delivered status.
func (d DeliveryStatus) Supersedes(prev DeliveryStatus) bool {
	if d == prev {
		return false
	}
	if d == DeliveryStatusFailed {
		return !prev.IsDelivered()
	}
	return deliveryStatusRank[d] > deliveryStatusRank[prev]
}

// ParseProviderStatus maps the provider's callback vocabulary onto
// DeliveryStatus.
func ParseProviderStatus(value string) (DeliveryStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "SENT":
		return DeliveryStatusSent, nil
	case "RECEIVED", "DELIVERED", "DELIVERY_ACK":
		return DeliveryStatusReceived, nil
	case "READ", "READ_BY_ME", "PLAYED":
		return DeliveryStatusRead, nil
	case "FAILED", "ERROR":
		return DeliveryStatusFailed, nil
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
