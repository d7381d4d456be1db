package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/square-catalog-cache/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/Sternrassler/square-catalog-cache/pkg/cache"
	_ "github.com/Sternrassler/square-catalog-cache/pkg/catalog"
	_ "github.com/Sternrassler/square-catalog-cache/pkg/ratelimit"
)

func TestRegistry(t *testing.T) {
	if metrics.Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
	if metrics.Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestDocumentedMetricsRegistered(t *testing.T) {
	families, err := metrics.Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}

	// Unlabelled collectors are exported before their first observation.
	for _, name := range []string{
		"catalog_cache_hits_total",
		"catalog_snapshot_size_bytes",
		"catalog_payment_links_created_total",
		"square_rate_limit_hits_total",
		"square_rate_limit_blocks_total",
		"square_rate_limit_cooldown_seconds",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "catalog_cache_hits_total") {
		t.Error("metrics output missing catalog_cache_hits_total")
	}
}
