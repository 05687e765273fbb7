package enums

import "fmt"

// MessageType identifies which automated template an outbound message used.
type MessageType string

const (
	MessageTypeItemAdded           MessageType = "item_added"
	MessageTypeProductUnavailable  MessageType = "product_unavailable"
	MessageTypeCheckoutLink        MessageType = "checkout_link"
	MessageTypePaymentConfirmation MessageType = "payment_confirmation"
	MessageTypeOrderCancelled      MessageType = "order_cancelled"
	MessageTypeBroadcast           MessageType = "broadcast"
)

var validMessageTypes = []MessageType{
	MessageTypeItemAdded,
	MessageTypeProductUnavailable,
	MessageTypeCheckoutLink,
	MessageTypePaymentConfirmation,
	MessageTypeOrderCancelled,
	MessageTypeBroadcast,
}

func (m MessageType) String() string {
	return string(m)
}

func (m MessageType) IsValid() bool {
	for _, candidate := range validMessageTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseMessageType(value string) (MessageType, error) {
	for _, candidate := range validMessageTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid message type %q", value)
}

// DeliveredFlag names the order column flipped once a message of this type
// reaches the recipient. Types without an order-level flag return "".
func (m MessageType) DeliveredFlag() string {
	switch m {
	case MessageTypeItemAdded:
		return "item_added_delivered"
	case MessageTypePaymentConfirmation:
		return "payment_confirmation_delivered"
	default:
		return ""
	}
}

// Channel selects the pacing tier used for a send.
type Channel string

const (
	// ChannelLive is user-triggered and fails fast on rate limits.
	ChannelLive Channel = "live"
	// ChannelBatch is campaign traffic and waits out rate limits.
	ChannelBatch Channel = "batch"
)

func (c Channel) String() string {
	return string(c)
}

func (c Channel) IsValid() bool {
	return c == ChannelLive || c == ChannelBatch
}

func ParseChannel(value string) (Channel, error) {
	c := Channel(value)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid channel %q", value)
	}
	return c, nil
}
