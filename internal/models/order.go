package models

import "time"

// OrderType distinguishes the two order variants. They play the same
// role in matching: each is scored against the opposite type.
type OrderType string

const (
	OrderTypePurchase OrderType = "purchase"
	OrderTypeSale     OrderType = "sale"
)

// Opposite returns the counter-order type.
func (t OrderType) Opposite() OrderType {
	if t == OrderTypePurchase {
		return OrderTypeSale
	}
	return OrderTypePurchase
}

// Match is one entry of an order's ranked match list.
type Match struct {
	OrderID string  `json:"orderId"`
	Score   float64 `json:"score"`
}

// Order carries both variants in one struct; Type selects the variant.
// Purchase orders describe what the buyer wants (free text, optional
// reference image). Sale orders carry the listed product's descriptor
// plus price and commission.
type Order struct {
	ID        string    `json:"id"`
	Type      OrderType `json:"type"`
	CreatorID string    `json:"creatorId"`

	// Content descriptor fields. For sale orders these come from the
	// linked product (first image, description).
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl,omitempty"`

	// Sale-only fields.
	Price         float64 `json:"price,omitempty"`
	CommissionPct float64 `json:"commissionPct,omitempty"`

	// Location the order originates from: the creator's last known
	// point for purchase orders, the declared point for sale orders.
	Location *GeoPoint `json:"location,omitempty"`

	// LinkedAgents is the ranked agent shortlist, fully replaced on
	// each matching pass. Insertion order is rank order.
	LinkedAgents []string `json:"linkedAgents"`

	// DeliveringAgent is set only by the fulfillment workflow, never
	// by matching.
	DeliveringAgent string `json:"deliveringAgent,omitempty"`

	// Matches is the ranked counter-order shortlist, fully replaced
	// (never merged) on each matching pass. Sorted descending by
	// score, ties broken by counter-order creation time ascending.
	Matches []Match `json:"matches"`

	Open bool `json:"open"`

	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"lastUpdated"`
}
