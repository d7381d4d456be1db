package catalog

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/square-catalog-cache/pkg/cache"
	"github.com/Sternrassler/square-catalog-cache/pkg/notify"
	"github.com/Sternrassler/square-catalog-cache/pkg/square"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var reconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_reconciliations_total",
	Help: "Total reconciliations by result",
}, []string{"result"}) // "changed", "unchanged", "failed"

// CatalogSource reads the provider catalog.
type CatalogSource interface {
	ListCatalog(ctx context.Context, types ...string) ([]square.CatalogObject, error)
	BatchRetrieve(ctx context.Context, objectIDs []string) (*square.BatchRetrieveResponse, error)
}

// LinkResolver yields the payment URL for a variation.
type LinkResolver interface {
	Resolve(ctx context.Context, variationID, itemName string) (string, error)
}

// Result describes one reconciliation.
type Result struct {
	Snapshot []byte
	Items    int
	Changed  bool
}

// Reconciler rebuilds the snapshot from Square and persists it when changed.
type Reconciler struct {
	source   CatalogSource
	links    LinkResolver
	cache    *cache.Manager
	notifier notify.Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler. A nil notifier disables notifications.
func NewReconciler(source CatalogSource, links LinkResolver, manager *cache.Manager, notifier notify.Notifier, logger zerolog.Logger) *Reconciler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Reconciler{
		source:   source,
		links:    links,
		cache:    manager,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile fetches the catalog, builds the snapshot and stores it.
// Any provider or store failure aborts before either cache key is written.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	res, err := r.reconcile(ctx)
	if err != nil {
		reconciliationsTotal.WithLabelValues("failed").Inc()
		r.logger.Error().Err(err).Msg("Reconciliation failed")
		return Result{}, err
	}
	if res.Changed {
		reconciliationsTotal.WithLabelValues("changed").Inc()
	} else {
		reconciliationsTotal.WithLabelValues("unchanged").Inc()
	}
	return res, nil
}

func (r *Reconciler) reconcile(ctx context.Context) (Result, error) {
	snapshot, err := r.Build(ctx)
	if err != nil {
		return Result{}, err
	}

	data, err := snapshot.Marshal()
	if err != nil {
		return Result{}, err
	}

	prev, err := r.cache.Load(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Snapshot: data, Items: len(snapshot)}
	res.Changed = prev.Snapshot == nil || !bytes.Equal(prev.Snapshot, data)

	if res.Changed {
		if err := r.cache.SaveSnapshot(ctx, data); err != nil {
			return Result{}, err
		}
	}

	now := r.now()
	touchErr := r.cache.Touch(ctx, now)

	r.logger.Debug().
		Int("items", res.Items).
		Int("bytes", len(data)).
		Bool("changed", res.Changed).
		Msg("Snapshot reconciled")

	if res.Changed {
		r.announce(ctx, res, now)
	}
	if touchErr != nil {
		return Result{}, touchErr
	}
	return res, nil
}

// announce notifies downstream consumers. Failures are logged only; the
// snapshot is already persisted.
func (r *Reconciler) announce(ctx context.Context, res Result, now time.Time) {
	evt := notify.Event{
		ID:            uuid.NewString(),
		Type:          notify.EventCatalogChanged,
		OccurredAt:    now.UTC(),
		Items:         res.Items,
		SnapshotBytes: len(res.Snapshot),
	}
	if err := r.notifier.Notify(ctx, evt); err != nil {
		r.logger.Warn().Err(err).Str("event_id", evt.ID).Msg("Change notification failed")
		return
	}
	r.logger.Info().Str("event_id", evt.ID).Int("items", res.Items).Msg("Catalog change announced")
}

// Build fetches the catalog and assembles the snapshot without touching the cache.
func (r *Reconciler) Build(ctx context.Context) (Snapshot, error) {
	objects, err := r.source.ListCatalog(ctx, square.ObjectTypeItem, square.ObjectTypeCategory)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	var items []square.CatalogObject
	categories := make(map[string]string)
	for _, obj := range objects {
		switch obj.Type {
		case square.ObjectTypeItem:
			if obj.ItemData != nil && !excluded(obj) {
				items = append(items, obj)
			}
		case square.ObjectTypeCategory:
			if obj.CategoryData != nil && !obj.IsDeleted {
				categories[obj.ID] = obj.CategoryData.Name
			}
		}
	}

	images, err := r.fetchImages(ctx, items)
	if err != nil {
		return nil, err
	}

	snapshot := make(Snapshot, 0, len(items))
	for _, item := range items {
		product, err := r.buildItem(ctx, item, categories, images)
		if err != nil {
			return nil, err
		}
		snapshot = append(snapshot, product)
	}
	return snapshot, nil
}

// fetchImages retrieves related IMAGE objects for all items in one call.
// The returned slice keeps the provider's order.
func (r *Reconciler) fetchImages(ctx context.Context, items []square.CatalogObject) ([]square.CatalogObject, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	resp, err := r.source.BatchRetrieve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("batch retrieve: %w", err)
	}

	var images []square.CatalogObject
	for _, obj := range resp.RelatedObjects {
		if obj.Type == square.ObjectTypeImage && obj.ImageData != nil {
			images = append(images, obj)
		}
	}
	return images, nil
}

func (r *Reconciler) buildItem(ctx context.Context, item square.CatalogObject, categories map[string]string, images []square.CatalogObject) (ProductItem, error) {
	data := item.ItemData

	product := ProductItem{
		ID:          item.ID,
		Name:        data.Name,
		Description: data.Description,
		Images:      imageURLs(data.ImageIDs, images),
		Available:   isAvailable(item),
		Categories:  categoryNames(data, categories),
	}

	variation := firstVariation(item)
	if variation != nil && variation.ItemVariationData != nil && variation.ItemVariationData.PriceMoney != nil {
		product.Price = priceFromMinor(variation.ItemVariationData.PriceMoney.Amount)
	}

	switch override := PaymentLinkOverride(item); {
	case override.HasOverride:
		product.PaymentURL = override.Value
	case variation == nil:
		product.PaymentURL = DefaultPaymentURL
	default:
		url, err := r.links.Resolve(ctx, variation.ID, data.Name)
		if err != nil {
			return ProductItem{}, err
		}
		product.PaymentURL = url
	}

	return product, nil
}

func excluded(item square.CatalogObject) bool {
	return item.IsDeleted || (item.ItemData != nil && item.ItemData.IsArchived)
}

// isAvailable is false for excluded items and for items whose every
// location override is sold out. No overrides at all means available.
func isAvailable(item square.CatalogObject) bool {
	if excluded(item) {
		return false
	}

	var overrides []square.LocationOverride
	for _, v := range item.ItemData.Variations {
		if v.ItemVariationData != nil {
			overrides = append(overrides, v.ItemVariationData.LocationOverrides...)
		}
	}
	if len(overrides) == 0 {
		return true
	}

	for _, o := range overrides {
		if !o.SoldOut {
			return true
		}
	}
	return false
}

// imageURLs returns the URLs of images referenced by ids, in provider order.
func imageURLs(ids []string, images []square.CatalogObject) []string {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	urls := []string{}
	for _, img := range images {
		if wanted[img.ID] && img.ImageData != nil {
			urls = append(urls, img.ImageData.URL)
		}
	}
	return urls
}

// categoryNames resolves category references. Unknown ids are skipped.
func categoryNames(data *square.ItemData, categories map[string]string) []string {
	ids := make([]string, 0, len(data.Categories)+1)
	for _, ref := range data.Categories {
		ids = append(ids, ref.ID)
	}
	if len(ids) == 0 && data.CategoryID != "" {
		ids = append(ids, data.CategoryID)
	}

	names := []string{}
	for _, id := range ids {
		if name, ok := categories[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

func firstVariation(item square.CatalogObject) *square.CatalogObject {
	if len(item.ItemData.Variations) == 0 {
		return nil
	}
	return &item.ItemData.Variations[0]
}
