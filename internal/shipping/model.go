package shipping

import (
	"context"
	"errors"
)

var (
	ErrNoService          = errors.New("shipping: no service available for route")
	ErrNoCarrierAvailable = errors.New("shipping: no carrier returned a rate")
	ErrMalformedResponse  = errors.New("shipping: malformed carrier response")
	ErrCarrierUnavailable = errors.New("shipping: carrier unavailable")
)

// DefaultWeightGrams is used when the product has no known weight.
const DefaultWeightGrams = 1000

// Offer is the cheapest service of one carrier for a route.
type Offer struct {
	Carrier       string `json:"carrier"`
	DisplayName   string `json:"display_name"`
	Service       string `json:"service"`
	Cost          int64  `json:"cost"`
	EstimatedDays string `json:"estimated_days"`
}

// ServiceRate is a single service tier returned by a carrier.
type ServiceRate struct {
	Service       string
	Description   string
	Cost          int64
	EstimatedDays string
}

type Request struct {
	Origin      string
	Destination string
	WeightGrams int
}

// Provider quotes every service tier one carrier offers for a route.
type Provider interface {
	Code() string
	DisplayName() string
	Quote(ctx context.Context, origin, destination string, weightGrams int) ([]ServiceRate, error)
}

// Observer receives per-carrier call outcomes.
type Observer interface {
	ObserveCarrier(carrier, outcome string, seconds float64)
}

type noopObserver struct{}

func (noopObserver) ObserveCarrier(string, string, float64) {}
