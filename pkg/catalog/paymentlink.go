package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/square-catalog-cache/pkg/cache"
	"github.com/Sternrassler/square-catalog-cache/pkg/kv"
	"github.com/Sternrassler/square-catalog-cache/pkg/square"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	paymentLinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_payment_links_created_total",
		Help: "Total payment links created through Square",
	})

	paymentLinkLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_payment_link_lookups_total",
		Help: "Payment link resolutions by outcome",
	}, []string{"outcome"}) // "cached", "created", "waited"
)

// LinkCreator creates hosted checkout links.
type LinkCreator interface {
	CreatePaymentLink(ctx context.Context, req square.CreatePaymentLinkRequest) (*square.PaymentLink, error)
}

// ResolverConfig configures payment-link resolution.
type ResolverConfig struct {
	// LocationID is the Square location orders are placed against (REQUIRED)
	LocationID string

	// LeaseTTL bounds how long another instance's creation is awaited
	LeaseTTL time.Duration

	// PollInterval is how often the link key is re-read while waiting
	PollInterval time.Duration
}

// DefaultResolverConfig returns the default lease timings.
func DefaultResolverConfig(locationID string) ResolverConfig {
	return ResolverConfig{
		LocationID:   locationID,
		LeaseTTL:     10 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// Resolver returns the payment link of a variation, creating it at most once.
type Resolver struct {
	store   kv.Store
	leaser  kv.Leaser
	creator LinkCreator
	config  ResolverConfig
	owner   string
	group   singleflight.Group
	logger  zerolog.Logger
}

// NewResolver creates a resolver. When store also implements kv.Leaser,
// creation is guarded by a lease shared with other instances.
func NewResolver(store kv.Store, creator LinkCreator, cfg ResolverConfig, logger zerolog.Logger) (*Resolver, error) {
	if store == nil || creator == nil {
		return nil, fmt.Errorf("store and creator are required")
	}
	if cfg.LocationID == "" {
		return nil, fmt.Errorf("location id is required")
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}

	r := &Resolver{
		store:   store,
		creator: creator,
		config:  cfg,
		owner:   uuid.NewString(),
		logger:  logger,
	}
	if leaser, ok := store.(kv.Leaser); ok {
		r.leaser = leaser
	}
	return r, nil
}

// Resolve returns the stored link for variationID or creates one.
// Concurrent calls for the same variation share one resolution, which is not
// abandoned when the caller that started it is cancelled.
func (r *Resolver) Resolve(ctx context.Context, variationID, itemName string) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(variationID, func() (any, error) {
		return r.resolve(detached, variationID, itemName)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Resolver) resolve(ctx context.Context, variationID, itemName string) (string, error) {
	url, found, err := r.lookup(ctx, variationID)
	if err != nil || found {
		if found {
			paymentLinkLookups.WithLabelValues("cached").Inc()
		}
		return url, err
	}

	if r.leaser != nil {
		leaseKey := cache.PaymentLinkLeaseKey(variationID).String()
		acquired, err := r.leaser.AcquireLease(ctx, leaseKey, r.owner, r.config.LeaseTTL)
		if err != nil {
			return "", fmt.Errorf("acquire payment link lease: %w", err)
		}

		if acquired {
			defer func() {
				if err := r.leaser.ReleaseLease(context.WithoutCancel(ctx), leaseKey, r.owner); err != nil {
					r.logger.Warn().Err(err).Str("variation_id", variationID).Msg("Failed to release payment link lease")
				}
			}()

			// Another holder may have persisted the link just before we acquired.
			url, found, err = r.lookup(ctx, variationID)
			if err != nil || found {
				return url, err
			}
		} else {
			url, found, err = r.awaitLink(ctx, variationID)
			if err != nil {
				return "", err
			}
			if found {
				paymentLinkLookups.WithLabelValues("waited").Inc()
				return url, nil
			}
			r.logger.Warn().Str("variation_id", variationID).Msg("Payment link lease expired without a link, creating")
		}
	}

	return r.create(ctx, variationID, itemName)
}

// lookup reads the stored link. Absent and empty values are not found.
func (r *Resolver) lookup(ctx context.Context, variationID string) (string, bool, error) {
	url, err := r.store.Get(ctx, cache.PaymentLinkKey(variationID).String())
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup payment link: %w", err)
	}
	return url, url != "", nil
}

// awaitLink polls for a link written by the current lease holder until the
// lease TTL has elapsed.
func (r *Resolver) awaitLink(ctx context.Context, variationID string) (string, bool, error) {
	deadline := time.NewTimer(r.config.LeaseTTL)
	defer deadline.Stop()
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-deadline.C:
			return "", false, nil
		case <-ticker.C:
			url, found, err := r.lookup(ctx, variationID)
			if err != nil || found {
				return url, found, err
			}
		}
	}
}

func (r *Resolver) create(ctx context.Context, variationID, itemName string) (string, error) {
	req := square.CreatePaymentLinkRequest{
		IdempotencyKey: uuid.NewString(),
		Order: square.Order{
			LocationID: r.config.LocationID,
			LineItems: []square.OrderLineItem{{
				Name:            itemName,
				CatalogObjectID: variationID,
				Quantity:        "1",
			}},
		},
		CheckoutOptions: square.CheckoutOptions{AskForShippingAddress: true},
	}

	link, err := r.creator.CreatePaymentLink(ctx, req)
	if err != nil {
		return "", &PaymentLinkError{VariationID: variationID, Err: err}
	}
	if link == nil || link.URL == "" {
		return "", &PaymentLinkError{VariationID: variationID, Err: errors.New("no link url in response")}
	}

	if err := r.store.Put(ctx, cache.PaymentLinkKey(variationID).String(), link.URL); err != nil {
		return "", fmt.Errorf("persist payment link: %w", err)
	}

	paymentLinksCreated.Inc()
	paymentLinkLookups.WithLabelValues("created").Inc()
	r.logger.Info().
		Str("variation_id", variationID).
		Str("idempotency_key", req.IdempotencyKey).
		Msg("Created payment link")

	return link.URL, nil
}
