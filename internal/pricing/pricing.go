// Package pricing derives cart and order totals from line items and a fee policy.
package pricing

import (
	"campusrunner/internal/domain"

	"github.com/shopspring/decimal"
)

// Policy holds the fee configuration applied to every cart and order.
type Policy struct {
	DeliveryFeeCents int64
	// ServiceFeeRate is a fraction of the subtotal, e.g. 0.05.
	ServiceFeeRate decimal.Decimal
	// MethodRates overrides ServiceFeeRate per payment method.
	MethodRates map[domain.PaymentMethod]decimal.Decimal
}

// DefaultPolicy charges a flat 5.00 delivery fee and 5% service fee on electronic
// payments. Cash on delivery carries no service fee.
func DefaultPolicy() Policy {
	return Policy{
		DeliveryFeeCents: 500,
		ServiceFeeRate:   decimal.NewFromFloat(0.05),
		MethodRates: map[domain.PaymentMethod]decimal.Decimal{
			domain.PaymentCash: decimal.Zero,
		},
	}
}

func (p Policy) RateFor(method domain.PaymentMethod) decimal.Decimal {
	if r, ok := p.MethodRates[method]; ok {
		return r
	}
	return p.ServiceFeeRate
}

// Preview prices lines with the default rate, used for cart display before a
// payment method is chosen.
func (p Policy) Preview(lines []domain.LineItem) domain.Totals {
	return Calculate(lines, p.DeliveryFeeCents, p.ServiceFeeRate)
}

func (p Policy) Price(lines []domain.LineItem, method domain.PaymentMethod) domain.Totals {
	return Calculate(lines, p.DeliveryFeeCents, p.RateFor(method))
}

// Calculate always recomputes from scratch. Custom items count at their budget.
// An empty set of lines prices to zero.
func Calculate(lines []domain.LineItem, deliveryFeeCents int64, rate decimal.Decimal) domain.Totals {
	if len(lines) == 0 {
		return domain.Totals{}
	}
	var subtotal int64
	for _, l := range lines {
		subtotal += l.TotalCents()
	}
	service := ServiceFee(subtotal, rate)
	return domain.Totals{
		SubtotalCents:    subtotal,
		DeliveryFeeCents: deliveryFeeCents,
		ServiceFeeCents:  service,
		TotalCents:       subtotal + deliveryFeeCents + service,
	}
}

// ServiceFee rounds subtotal*rate half away from zero to whole cents.
func ServiceFee(subtotalCents int64, rate decimal.Decimal) int64 {
	if rate.IsZero() || subtotalCents == 0 {
		return 0
	}
	return decimal.NewFromInt(subtotalCents).Mul(rate).Round(0).IntPart()
}

// OrderTotals re-derives totals for frozen order items.
func OrderTotals(items []domain.OrderItem, deliveryFeeCents int64, rate decimal.Decimal) domain.Totals {
	if len(items) == 0 {
		return domain.Totals{}
	}
	var subtotal int64
	for _, it := range items {
		subtotal += it.TotalCents()
	}
	service := ServiceFee(subtotal, rate)
	return domain.Totals{
		SubtotalCents:    subtotal,
		DeliveryFeeCents: deliveryFeeCents,
		ServiceFeeCents:  service,
		TotalCents:       subtotal + deliveryFeeCents + service,
	}
}
