package enums

import "fmt"

// NotificationType classifies in-app alerts shown to the store owner.
// Stock depletion is the only producer today.
type NotificationType string

const NotificationTypeStockDepleted NotificationType = "stock_depleted"

func (n NotificationType) IsValid() bool {
	return n == NotificationTypeStockDepleted
}

func ParseNotificationType(value string) (NotificationType, error) {
	if t := NotificationType(value); t.IsValid() {
		return t, nil
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
