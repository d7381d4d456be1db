package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/square-catalog-cache/internal/testutil"
	"github.com/Sternrassler/square-catalog-cache/pkg/cache"
	"github.com/Sternrassler/square-catalog-cache/pkg/kv"
	"github.com/Sternrassler/square-catalog-cache/pkg/square"
)

func TestReconcile_SingleItemScenario(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(
		testutil.NewItem("ITEM1", "Latte", 1050,
			testutil.WithDescription("Milky coffee"),
			testutil.WithCategories("CAT1"),
			testutil.WithImages("IMG1")),
		testutil.NewCategory("CAT1", "Drinks"),
	)
	env.mock.SetRelated(testutil.NewImage("IMG1", "https://img/latte.jpg"))

	res, err := env.reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	want := `[{"id":"ITEM1","name":"Latte","price":10.5,"description":"Milky coffee",` +
		`"images":["https://img/latte.jpg"],"available":true,"categories":["Drinks"],` +
		`"payment_url":"` + testutil.PaymentLinkURL("ITEM1-V1", 1) + `"}]`
	if string(res.Snapshot) != want {
		t.Errorf("snapshot =\n%s\nwant\n%s", res.Snapshot, want)
	}
	if !res.Changed || res.Items != 1 {
		t.Errorf("Changed = %v, Items = %d", res.Changed, res.Items)
	}
	if got := env.storedString(cache.SnapshotKey()); got != want {
		t.Errorf("stored snapshot = %s", got)
	}
	if got := env.storedString(cache.PaymentLinkKey("ITEM1-V1")); got != testutil.PaymentLinkURL("ITEM1-V1", 1) {
		t.Errorf("stored payment link = %q", got)
	}
	if got := env.mock.GetRequestCount(testutil.PathCatalogList); got != 1 {
		t.Errorf("catalog/list requests = %d, want 1", got)
	}
	if got := env.mock.GetRequestCount(testutil.PathBatchRetrieve); got != 1 {
		t.Errorf("batch-retrieve requests = %d, want 1", got)
	}

	reqs := env.mock.PaymentLinkRequests()
	if len(reqs) != 1 {
		t.Fatalf("payment link requests = %d, want 1", len(reqs))
	}
	line := reqs[0].Order.LineItems[0]
	if reqs[0].Order.LocationID != testLocation || line.CatalogObjectID != "ITEM1-V1" ||
		line.Name != "Latte" || line.Quantity != "1" || !reqs[0].CheckoutOptions.AskForShippingAddress {
		t.Errorf("unexpected payment link request: %+v", reqs[0])
	}
	if reqs[0].IdempotencyKey == "" {
		t.Error("idempotency key must be set")
	}
}

func TestReconcile_ExcludesArchivedAndDeleted(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(
		testutil.NewItem("LIVE", "Tea", 300),
		testutil.NewItem("ARCH", "Old Tea", 300, testutil.Archived()),
		testutil.NewItem("GONE", "Gone Tea", 300, testutil.Deleted()),
		testutil.NewItem("SOLD", "Sold Tea", 300, testutil.WithOverrides(true)),
	)

	res, err := env.reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	var products []ProductItem
	if err := json.Unmarshal(res.Snapshot, &products); err != nil {
		t.Fatalf("snapshot not JSON: %v", err)
	}

	ids := map[string]bool{}
	for _, p := range products {
		ids[p.ID] = true
	}
	if ids["ARCH"] || ids["GONE"] {
		t.Errorf("archived or deleted item present: %v", ids)
	}
	if len(products) != 2 || products[0].ID != "LIVE" || products[1].ID != "SOLD" {
		t.Fatalf("unexpected products: %+v", products)
	}
	if !products[0].Available {
		t.Error("item without overrides must be available")
	}
	if products[1].Available {
		t.Error("item sold out everywhere must be unavailable")
	}
	if got := len(env.mock.PaymentLinkRequests()); got != 2 {
		t.Errorf("payment link requests = %d, want 2 (excluded items get none)", got)
	}
}

func TestReconcile_UnchangedCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(testutil.NewItem("ITEM1", "Latte", 1050))
	ctx := context.Background()

	first := time.UnixMilli(1_717_243_200_000)
	second := first.Add(15 * time.Minute)

	env.reconciler.now = func() time.Time { return first }
	res1, err := env.reconciler.Reconcile(ctx)
	if err != nil {
		t.Fatalf("first Reconcile() error = %v", err)
	}
	if got := env.storedString(cache.LastWriteKey()); got != cache.FormatTimestamp(first) {
		t.Errorf("last write after first run = %s", got)
	}

	env.reconciler.now = func() time.Time { return second }
	res2, err := env.reconciler.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}

	if !res1.Changed || res2.Changed {
		t.Errorf("Changed = %v then %v, want true then false", res1.Changed, res2.Changed)
	}
	if got := env.storedString(cache.LastWriteKey()); got != cache.FormatTimestamp(second) {
		t.Errorf("last write after second run = %s, want %s", got, cache.FormatTimestamp(second))
	}
	if got := env.store.putCount(cache.SnapshotKey().String()); got != 1 {
		t.Errorf("snapshot written %d times, want 1", got)
	}
	if got := env.store.putCount(cache.LastWriteKey().String()); got != 2 {
		t.Errorf("timestamp written %d times, want 2", got)
	}
	if got := env.notifier.calls.Load(); got != 1 {
		t.Errorf("notifier called %d times, want 1", got)
	}
	if got := len(env.mock.PaymentLinkRequests()); got != 1 {
		t.Errorf("payment links created %d times, want 1", got)
	}
}

func TestReconcile_ChangedCatalogNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mock.SetCatalog(testutil.NewItem("ITEM1", "Latte", 1050))
	if _, err := env.reconciler.Reconcile(ctx); err != nil {
		t.Fatalf("first Reconcile() error = %v", err)
	}

	env.mock.SetCatalog(testutil.NewItem("ITEM1", "Latte", 1100))
	res, err := env.reconciler.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}

	if !res.Changed {
		t.Error("price change must be detected")
	}
	if got := env.notifier.calls.Load(); got != 2 {
		t.Errorf("notifier called %d times, want 2", got)
	}
	if got := env.store.putCount(cache.SnapshotKey().String()); got != 2 {
		t.Errorf("snapshot written %d times, want 2", got)
	}
}

func TestReconcile_CorruptPreviousSnapshotIsReplaced(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(testutil.NewItem("ITEM1", "Latte", 1050))
	env.mr.Set(cache.SnapshotKey().String(), `{not json`)

	res, err := env.reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if !res.Changed {
		t.Error("corrupt snapshot must count as changed")
	}
	if got := env.storedString(cache.SnapshotKey()); got != string(res.Snapshot) {
		t.Errorf("stored snapshot = %s", got)
	}
}

func TestReconcile_NotifierFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("hook down")
	env.mock.SetCatalog(testutil.NewItem("ITEM1", "Latte", 1050))

	res, err := env.reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if !res.Changed || env.notifier.calls.Load() != 1 {
		t.Errorf("Changed = %v, notifier calls = %d", res.Changed, env.notifier.calls.Load())
	}
}

func TestReconcile_ProviderFailureLeavesStoreUntouched(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "list fails", path: testutil.PathCatalogList},
		{name: "batch retrieve fails", path: testutil.PathBatchRetrieve},
		{name: "payment link fails", path: testutil.PathPaymentLinks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.mock.SetCatalog(testutil.NewItem("ITEM1", "Latte", 1050))

			env.mr.Set(cache.SnapshotKey().String(), `[{"id":"OLD"}]`)
			env.mr.Set(cache.LastWriteKey().String(), "1700000000000")
			env.mock.SetResponse(tt.path, testutil.NewServerErrorResponse())

			_, err := env.reconciler.Reconcile(context.Background())
			var perr *square.ProviderError
			if !errors.As(err, &perr) || perr.StatusCode != 500 {
				t.Fatalf("expected provider 500 error, got %v", err)
			}

			if got := env.storedString(cache.SnapshotKey()); got != `[{"id":"OLD"}]` {
				t.Errorf("snapshot changed to %s", got)
			}
			if got := env.storedString(cache.LastWriteKey()); got != "1700000000000" {
				t.Errorf("timestamp changed to %s", got)
			}
			if got := env.storedString(cache.PaymentLinkKey("ITEM1-V1")); got != "" {
				t.Errorf("payment link persisted: %s", got)
			}
			if env.notifier.calls.Load() != 0 {
				t.Error("notifier must not run on failure")
			}
		})
	}
}

func TestReconcile_SnapshotWriteFailureKeepsTimestamp(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(testutil.NewItem("ITEM1", "Latte", 1050))
	env.mr.Set(cache.LastWriteKey().String(), "1700000000000")
	env.store.failKey = cache.SnapshotKey().String()

	_, err := env.reconciler.Reconcile(context.Background())
	if !errors.Is(err, kv.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if got := env.storedString(cache.LastWriteKey()); got != "1700000000000" {
		t.Errorf("timestamp advanced to %s after failed snapshot write", got)
	}
	if env.notifier.calls.Load() != 0 {
		t.Error("notifier must not run when the snapshot was not written")
	}
}

func TestReconcile_PaymentLinkFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(testutil.NewItem("ITEM1", "Latte", 1050))
	env.mock.SetResponse(testutil.PathPaymentLinks, testutil.NewEmptyPaymentLinkResponse())

	_, err := env.reconciler.Reconcile(context.Background())
	if !errors.Is(err, ErrPaymentLinkCreationFailed) {
		t.Fatalf("expected ErrPaymentLinkCreationFailed, got %v", err)
	}
	if got := env.storedString(cache.PaymentLinkKey("ITEM1-V1")); got != "" {
		t.Errorf("payment link persisted: %s", got)
	}
	if got := env.storedString(cache.SnapshotKey()); got != "" {
		t.Errorf("snapshot persisted: %s", got)
	}
}

func TestReconcile_OverrideAndMissingVariations(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(
		testutil.NewItem("PINNED", "Gift Card", 2500,
			testutil.WithCustomAttribute("Square:1", PaymentLinkAttribute, "https://pay/pinned")),
		testutil.NewItem("BARE", "Placeholder", 0, testutil.WithoutVariations()),
	)

	snapshot, err := env.reconciler.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(snapshot) != 2 {
		t.Fatalf("got %d products, want 2", len(snapshot))
	}
	if snapshot[0].PaymentURL != "https://pay/pinned" || snapshot[0].Price.String() != "25" {
		t.Errorf("pinned product = %+v", snapshot[0])
	}
	if snapshot[1].PaymentURL != DefaultPaymentURL || !snapshot[1].Price.IsZero() {
		t.Errorf("bare product = %+v", snapshot[1])
	}
	if got := len(env.mock.PaymentLinkRequests()); got != 0 {
		t.Errorf("payment link requests = %d, want 0", got)
	}
}

func TestReconcile_EmptyCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(testutil.NewCategory("CAT1", "Drinks"))

	res, err := env.reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if string(res.Snapshot) != `[]` {
		t.Errorf("snapshot = %s, want []", res.Snapshot)
	}
	if got := env.mock.GetRequestCount(testutil.PathBatchRetrieve); got != 0 {
		t.Errorf("batch-retrieve requests = %d, want 0", got)
	}
}

func TestReconcile_PaginatedCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.mock.SetCatalog(
		testutil.NewItem("A", "A", 100),
		testutil.NewCategory("CAT1", "Drinks"),
		testutil.NewItem("B", "B", 200, testutil.WithCategories("CAT1")),
		testutil.NewItem("C", "C", 300),
	)
	env.mock.SetPageSize(1)

	snapshot, err := env.reconciler.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(snapshot) != 3 || snapshot[1].Categories[0] != "Drinks" {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}
