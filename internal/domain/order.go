package domain

import (
	"strings"
	"time"
)

// OrderStatus is a position in the fulfillment lifecycle.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusAccepted   OrderStatus = "accepted"
	StatusShopping   OrderStatus = "shopping"
	StatusDelivering OrderStatus = "delivering"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusShopping, StatusDelivering, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ParseOrderStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentMobileMoney PaymentMethod = "mobile_money"
	PaymentCard        PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentCard:
		return true
	}
	return false
}

// Electronic reports whether the method is settled through a payment collaborator.
func (m PaymentMethod) Electronic() bool {
	return m == PaymentMobileMoney || m == PaymentCard
}

type DeliveryInfo struct {
	Address string `json:"address"`
	Hall    string `json:"hall"`
	Room    string `json:"room"`
	Phone   string `json:"phone"`
}

type OrderItem struct {
	ID               string  `json:"id"`
	OrderID          string  `json:"orderId"`
	CatalogItemID    *string `json:"catalogItemId,omitempty"`
	Name             string  `json:"name"`
	Custom           bool    `json:"custom"`
	UnitPriceCents   int64   `json:"unitPriceCents"`
	Quantity         int     `json:"quantity"`
	Notes            string  `json:"notes,omitempty"`
	ActualPriceCents *int64  `json:"actualPriceCents,omitempty"`
	Fulfilled        bool    `json:"fulfilled"`
}

func (i OrderItem) TotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// OrderItemFromLine freezes a cart line into an order item.
func OrderItemFromLine(id string, l LineItem) OrderItem {
	item := OrderItem{
		ID:             id,
		Name:           l.Name(),
		Custom:         l.Kind() == LineKindCustom,
		UnitPriceCents: l.UnitPriceCents(),
		Quantity:       l.Quantity,
		Notes:          l.Notes,
	}
	if l.Catalog != nil {
		catalogID := l.Catalog.ID
		item.CatalogItemID = &catalogID
	}
	if l.Custom != nil && item.Notes == "" {
		item.Notes = l.Custom.Notes
	}
	return item
}

type Order struct {
	ID                  string        `json:"id"`
	Number              string        `json:"orderNumber"`
	RequesterID         string        `json:"requesterId"`
	FulfillerID         *string       `json:"fulfillerId,omitempty"`
	Items               []OrderItem   `json:"items"`
	Totals              Totals        `json:"totals"`
	Delivery            DeliveryInfo  `json:"delivery"`
	SpecialInstructions string        `json:"specialInstructions,omitempty"`
	PaymentMethod       PaymentMethod `json:"paymentMethod"`
	Status              OrderStatus   `json:"status"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
	AcceptedAt          *time.Time    `json:"acceptedAt,omitempty"`
	ShoppingAt          *time.Time    `json:"shoppingAt,omitempty"`
	DeliveringAt        *time.Time    `json:"deliveringAt,omitempty"`
	CompletedAt         *time.Time    `json:"completedAt,omitempty"`
	CancelledAt         *time.Time    `json:"cancelledAt,omitempty"`
}

// OrderRef is what the persistence collaborator returns for a new header.
type OrderRef struct {
	ID     string `json:"id"`
	Number string `json:"orderNumber"`
}

func (o Order) FulfilledBy(userID string) bool {
	return o.FulfillerID != nil && *o.FulfillerID == userID
}

// UnfulfilledItems lists items not yet marked as bought.
func (o Order) UnfulfilledItems() []OrderItem {
	var out []OrderItem
	for _, it := range o.Items {
		if !it.Fulfilled {
			out = append(out, it)
		}
	}
	return out
}

// Stamp sets the timestamp belonging to status.
func (o *Order) Stamp(status OrderStatus, at time.Time) {
	t := at
	switch status {
	case StatusAccepted:
		o.AcceptedAt = &t
	case StatusShopping:
		o.ShoppingAt = &t
	case StatusDelivering:
		o.DeliveringAt = &t
	case StatusCompleted:
		o.CompletedAt = &t
	case StatusCancelled:
		o.CancelledAt = &t
	}
	o.UpdatedAt = t
}

func (o Order) Clone() Order {
	out := o
	out.Items = append([]OrderItem(nil), o.Items...)
	if o.FulfillerID != nil {
		f := *o.FulfillerID
		out.FulfillerID = &f
	}
	return out
}

// StatusChange is a compare-and-set request to the order store: it applies only
// while the stored status still equals From.
type StatusChange struct {
	OrderID     string
	From        OrderStatus
	To          OrderStatus
	FulfillerID *string
	At          time.Time
}
