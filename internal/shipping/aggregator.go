package shipping

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// Aggregator fans a rate request out to every configured carrier and keeps
// whatever comes back.
type Aggregator struct {
	providers []Provider
	timeout   time.Duration
	observer  Observer
}

type Option func(*Aggregator)

// WithTimeout bounds each carrier call. Zero means no per-call bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		if o != nil {
			a.observer = o
		}
	}
}

func NewAggregator(providers []Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers: providers,
		observer:  noopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type carrierResult struct {
	offer Offer
	err   error
}

// Aggregate returns one offer per carrier that answered, cheapest first.
// Failing carriers are dropped; ErrNoCarrierAvailable is returned only when
// none answered, together with an empty slice.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) ([]Offer, error) {
	if req.WeightGrams <= 0 {
		req.WeightGrams = DefaultWeightGrams
	}

	results := make([]carrierResult, len(a.providers))

	var g errgroup.Group
	for i, p := range a.providers {
		g.Go(func() error {
			results[i] = a.quoteCarrier(ctx, p, req)
			return nil
		})
	}
	_ = g.Wait()

	offers := make([]Offer, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			continue
		}
		offers = append(offers, r.offer)
	}

	if len(offers) == 0 {
		log.Warn().
			Str("origin", req.Origin).
			Str("destination", req.Destination).
			Int("carriers", len(a.providers)).
			Msg("shipping: every carrier failed")
		return []Offer{}, ErrNoCarrierAvailable
	}

	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Cost < offers[j].Cost
	})

	return offers, nil
}

func (a *Aggregator) quoteCarrier(ctx context.Context, p Provider, req Request) (res carrierResult) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = carrierResult{err: fmt.Errorf("%w: panic: %v", ErrCarrierUnavailable, r)}
		}
		outcome := outcomeOK
		if res.err != nil {
			outcome = outcomeFailed
			log.Warn().Err(res.err).Str("carrier", p.Code()).Msg("shipping: carrier excluded from offers")
		}
		a.observer.ObserveCarrier(p.Code(), outcome, time.Since(started).Seconds())
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	rates, err := p.Quote(ctx, req.Origin, req.Destination, req.WeightGrams)
	if err != nil {
		return carrierResult{err: err}
	}

	best, err := Cheapest(rates)
	if err != nil {
		return carrierResult{err: err}
	}

	return carrierResult{offer: Offer{
		Carrier:       p.Code(),
		DisplayName:   p.DisplayName(),
		Service:       best.Service,
		Cost:          best.Cost,
		EstimatedDays: best.EstimatedDays,
	}}
}

// Cheapest picks the lowest-cost tier, ignoring negative costs.
// The first tier wins a tie.
func Cheapest(rates []ServiceRate) (ServiceRate, error) {
	var (
		best  ServiceRate
		found bool
	)
	for _, r := range rates {
		if r.Cost < 0 {
			continue
		}
		if !found || r.Cost < best.Cost {
			best = r
			found = true
		}
	}
	if !found {
		return ServiceRate{}, ErrNoService
	}
	return best, nil
}
