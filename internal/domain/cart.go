package domain

import (
	"errors"
	"time"
)

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 99

type LineKind string

const (
	LineKindCatalog LineKind = "catalog"
	LineKindCustom  LineKind = "custom"
)

var errLineShape = errors.New("line item must carry exactly one of catalog or custom item")

// CustomItem is a requester-described item priced by a budget ceiling.
type CustomItem struct {
	Name        string `json:"name"`
	BudgetCents int64  `json:"budgetCents"`
	Notes       string `json:"notes,omitempty"`
}

// LineItem holds exactly one of Catalog or Custom.
type LineItem struct {
	ID       string       `json:"id"`
	Catalog  *CatalogItem `json:"catalogItem,omitempty"`
	Custom   *CustomItem  `json:"customItem,omitempty"`
	Quantity int          `json:"quantity"`
	Notes    string       `json:"notes,omitempty"`
	AddedAt  time.Time    `json:"addedAt"`
}

func NewCatalogLine(id string, item CatalogItem, quantity int, notes string) LineItem {
	it := item
	return LineItem{ID: id, Catalog: &it, Quantity: ClampQuantity(quantity), Notes: notes, AddedAt: time.Now().UTC()}
}

func NewCustomLine(id string, item CustomItem, quantity int) LineItem {
	it := item
	return LineItem{ID: id, Custom: &it, Quantity: ClampQuantity(quantity), AddedAt: time.Now().UTC()}
}

// Validate checks the tagged-union shape and quantity bounds.
func (l LineItem) Validate() error {
	if (l.Catalog == nil) == (l.Custom == nil) {
		return errLineShape
	}
	if l.Quantity < 1 || l.Quantity > MaxQuantity {
		return NewValidationError("quantity", "must be between 1 and 99")
	}
	return nil
}

func (l LineItem) Kind() LineKind {
	if l.Custom != nil {
		return LineKindCustom
	}
	return LineKindCatalog
}

func (l LineItem) Name() string {
	if l.Custom != nil {
		return l.Custom.Name
	}
	if l.Catalog != nil {
		return l.Catalog.Name
	}
	return ""
}

// UnitPriceCents is the catalog price, or the budget for a custom item.
func (l LineItem) UnitPriceCents() int64 {
	switch {
	case l.Catalog != nil:
		return l.Catalog.UnitPriceCents
	case l.Custom != nil:
		return l.Custom.BudgetCents
	default:
		return 0
	}
}

func (l LineItem) TotalCents() int64 {
	return l.UnitPriceCents() * int64(l.Quantity)
}

// Clone returns a copy that shares no pointers with l.
func (l LineItem) Clone() LineItem {
	out := l
	if l.Catalog != nil {
		c := *l.Catalog
		out.Catalog = &c
	}
	if l.Custom != nil {
		c := *l.Custom
		out.Custom = &c
	}
	return out
}

// ClampQuantity bounds q to 1..MaxQuantity.
func ClampQuantity(q int) int {
	switch {
	case q > MaxQuantity:
		return MaxQuantity
	case q < 1:
		return 1
	}
	return q
}

// AddQuantity adds delta to current, saturating at MaxQuantity without overflow.
// delta must be positive.
func AddQuantity(current, delta int) int {
	if delta >= MaxQuantity-current {
		return MaxQuantity
	}
	return ClampQuantity(current + delta)
}

// Totals are derived monetary fields; Total is always the sum of the other three.
type Totals struct {
	SubtotalCents    int64 `json:"subtotalCents"`
	DeliveryFeeCents int64 `json:"deliveryFeeCents"`
	ServiceFeeCents  int64 `json:"serviceFeeCents"`
	TotalCents       int64 `json:"totalCents"`
}

type Cart struct {
	RequesterID         string     `json:"requesterId"`
	Lines               []LineItem `json:"lineItems"`
	DeliveryAddress     string     `json:"deliveryAddress"`
	SpecialInstructions string     `json:"specialInstructions,omitempty"`
	Totals              Totals     `json:"totals"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func (c Cart) Clone() Cart {
	out := c
	out.Lines = make([]LineItem, len(c.Lines))
	for i, l := range c.Lines {
		out.Lines[i] = l.Clone()
	}
	return out
}

func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}
