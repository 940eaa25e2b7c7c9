package domain

import (
	"errors"
	"math"
	"testing"
)

func TestLineItemValidateShape(t *testing.T) {
	catalog := NewCatalogLine("l1", CatalogItem{ID: "c1", UnitPriceCents: 100}, 1, "")
	if err := catalog.Validate(); err != nil {
		t.Fatalf("catalog line: unexpected error %v", err)
	}
	custom := NewCustomLine("l2", CustomItem{Name: "Kenkey", BudgetCents: 500}, 1)
	if err := custom.Validate(); err != nil {
		t.Fatalf("custom line: unexpected error %v", err)
	}

	both := catalog
	both.Custom = &CustomItem{Name: "x", BudgetCents: 1}
	if err := both.Validate(); !errors.Is(err, errLineShape) {
		t.Fatalf("expected shape error for both, got %v", err)
	}
	neither := LineItem{ID: "l3", Quantity: 1}
	if err := neither.Validate(); !errors.Is(err, errLineShape) {
		t.Fatalf("expected shape error for neither, got %v", err)
	}
}

func TestLineItemPricing(t *testing.T) {
	catalog := NewCatalogLine("l1", CatalogItem{ID: "c1", UnitPriceCents: 1000}, 2, "")
	if catalog.TotalCents() != 2000 {
		t.Fatalf("expected 2000, got %d", catalog.TotalCents())
	}
	custom := NewCustomLine("l2", CustomItem{Name: "Waakye", BudgetCents: 1500}, 1)
	if custom.UnitPriceCents() != 1500 || custom.Kind() != LineKindCustom {
		t.Fatalf("unexpected custom line %+v", custom)
	}
}

func TestNewCatalogLineClampsQuantity(t *testing.T) {
	l := NewCatalogLine("l1", CatalogItem{ID: "c1"}, 250, "")
	if l.Quantity != MaxQuantity {
		t.Fatalf("expected clamp to %d, got %d", MaxQuantity, l.Quantity)
	}
}

func TestClampQuantityBounds(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 1: 1, 42: 42, 99: 99, 100: 99}
	for in, want := range cases {
		if got := ClampQuantity(in); got != want {
			t.Fatalf("ClampQuantity(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAddQuantitySaturates(t *testing.T) {
	if got := AddQuantity(5, math.MaxInt); got != MaxQuantity {
		t.Fatalf("expected saturation at %d, got %d", MaxQuantity, got)
	}
	if got := AddQuantity(98, 1); got != MaxQuantity {
		t.Fatalf("expected %d, got %d", MaxQuantity, got)
	}
	if got := AddQuantity(5, 3); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}

func TestCartCloneIsDeep(t *testing.T) {
	c := Cart{Lines: []LineItem{NewCatalogLine("l1", CatalogItem{ID: "c1", Name: "Bread"}, 1, "")}}
	cp := c.Clone()
	cp.Lines[0].Catalog.Name = "changed"
	cp.Lines[0].Quantity = 5
	if c.Lines[0].Catalog.Name != "Bread" || c.Lines[0].Quantity != 1 {
		t.Fatalf("clone shares state with original")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("phone", "invalid")
	verr.Add("address", "required")
	verr.Add("phone", "ignored")
	if got := verr.Error(); got != "validation failed: address: required; phone: invalid" {
		t.Fatalf("unexpected message %q", got)
	}
}
