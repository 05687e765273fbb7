package intake

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome is the per-code result of applying an order intent.
type Outcome string

const (
	OutcomeAdded             Outcome = "added"
	OutcomeIncremented       Outcome = "incremented"
	OutcomeDuplicateIgnored  Outcome = "duplicate_ignored"
	OutcomeAlreadyProcessed  Outcome = "already_processed"
	OutcomeProductNotFound   Outcome = "product_not_found"
	OutcomeOutOfStock        Outcome = "out_of_stock"
	// OutcomeInsufficientStock needs a reservation above one unit; single
	// unit adds on an empty product report OutcomeOutOfStock.
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomeCartCreationError Outcome = "cart_creation_error"
	OutcomeCartItemError     Outcome = "cart_item_error"
)

// Applied reports whether the cart changed.
func (o Outcome) Applied() bool {
	return o == OutcomeAdded || o == OutcomeIncremented
}

// Failed reports an internal failure; a redelivery of the same message may
// succeed.
func (o Outcome) Failed() bool {
	return o == OutcomeCartCreationError || o == OutcomeCartItemError
}

// ItemResult is the structured result for one product code.
type ItemResult struct {
	Code           string           `json:"code"`
	Outcome        Outcome          `json:"outcome"`
	ProductID      *uuid.UUID       `json:"product_id,omitempty"`
	CartID         *uuid.UUID       `json:"cart_id,omitempty"`
	OrderID        *uuid.UUID       `json:"order_id,omitempty"`
	Quantity       int              `json:"quantity,omitempty"`
	RemainingStock *int             `json:"remaining_stock,omitempty"`
	OrderTotal     *decimal.Decimal `json:"order_total,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// AnyFailed reports whether any result is an internal failure.
func AnyFailed(results []ItemResult) bool {
	for _, r := range results {
		if r.Outcome.Failed() {
			return true
		}
	}
	return false
}
