package checkout

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"campusrunner/internal/domain"
)

// PaymentSession is what the payment collaborator hands back for an electronic order.
type PaymentSession struct {
	Reference string `json:"reference"`
	URL       string `json:"url"`
}

type PaymentInitiator interface {
	Initiate(ctx context.Context, order domain.Order) (PaymentSession, error)
}

// LinkInitiator builds a hosted-payment link. Gateway integration lives behind BaseURL.
type LinkInitiator struct {
	BaseURL string
}

func NewLinkInitiator(baseURL string) *LinkInitiator {
	return &LinkInitiator{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (p *LinkInitiator) Initiate(_ context.Context, order domain.Order) (PaymentSession, error) {
	if p.BaseURL == "" {
		return PaymentSession{}, errors.New("payment base url not configured")
	}
	u, err := url.Parse(p.BaseURL + "/pay/" + url.PathEscape(order.Number))
	if err != nil {
		return PaymentSession{}, err
	}
	q := u.Query()
	q.Set("order", order.ID)
	q.Set("amount", strconv.FormatInt(order.Totals.TotalCents, 10))
	q.Set("method", string(order.PaymentMethod))
	u.RawQuery = q.Encode()
	return PaymentSession{Reference: order.Number, URL: u.String()}, nil
}
