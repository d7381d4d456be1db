package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Sternrassler/square-catalog-cache/internal/config"
	"github.com/Sternrassler/square-catalog-cache/internal/testutil"
	"github.com/Sternrassler/square-catalog-cache/pkg/catalog"
	"github.com/Sternrassler/square-catalog-cache/pkg/kv"
	"github.com/Sternrassler/square-catalog-cache/pkg/square"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type stubProducts struct {
	body []byte
	err  error
}

func (s stubProducts) Products(context.Context) ([]byte, error) {
	return s.body, s.err
}

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *kv.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, kv.NewRedisStore(rdb)
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	mr, store := setupTestStore(t)
	router := newRouter(&server{products: stubProducts{}, store: store, logger: zerolog.Nop()})

	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("not_ready_store_down", func(t *testing.T) {
		mr.Close()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	_, store := setupTestStore(t)
	router := newRouter(&server{products: stubProducts{}, store: store, logger: zerolog.Nop()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "catalog_cache_hits_total") {
		t.Error("Expected Prometheus output including catalog_cache_hits_total")
	}
}

func TestProductsEndpoint_AnyMethod(t *testing.T) {
	_, store := setupTestStore(t)
	router := newRouter(&server{
		products: stubProducts{body: []byte(`[{"id":"A"}]`)},
		store:    store,
		logger:   zerolog.Nop(),
	})

	for _, path := range []string{"/", "/products"} {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodOptions} {
			t.Run(method+" "+path, func(t *testing.T) {
				w := httptest.NewRecorder()
				router.ServeHTTP(w, httptest.NewRequest(method, path, nil))

				if w.Code != http.StatusOK {
					t.Errorf("status = %d, want 200", w.Code)
				}
				if ct := w.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q", ct)
				}
				if w.Body.String() != `[{"id":"A"}]` {
					t.Errorf("body = %s", w.Body.String())
				}
			})
		}
	}
}

func TestProductsEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "store unavailable", err: fmt.Errorf("load snapshot: %w", kv.ErrStoreUnavailable), status: http.StatusServiceUnavailable},
		{name: "provider failure", err: fmt.Errorf("list catalog: %w", &square.ProviderError{Endpoint: square.EndpointCatalogList, StatusCode: 500, Class: square.ErrorClassServer}), status: http.StatusBadGateway},
		{name: "payment link failure", err: &catalog.PaymentLinkError{VariationID: "V1", Err: errors.New("no url")}, status: http.StatusBadGateway},
		{name: "rate limited", err: &square.ProviderError{Endpoint: square.EndpointCatalogList, StatusCode: 429, Class: square.ErrorClassRateLimit, Err: square.ErrRequestBlocked}, status: http.StatusBadGateway},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	_, store := setupTestStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&server{products: stubProducts{err: tt.err}, store: store, logger: zerolog.Nop()})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Errorf("expected JSON error body, got %s", w.Body.String())
			}
		})
	}
}

func TestBuildNotifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    int
		closers int
	}{
		{name: "none", cfg: config.Config{}, want: 0, closers: 0},
		{name: "webhook", cfg: config.Config{WebhookURL: "http://hook"}, want: 1, closers: 0},
		{name: "webhook and kafka", cfg: config.Config{WebhookURL: "http://hook", KafkaBrokers: []string{"k:9092"}, KafkaChangeTopic: "t"}, want: 2, closers: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, closers := buildNotifier(tt.cfg)
			if n.Len() != tt.want || len(closers) != tt.closers {
				t.Errorf("notifiers = %d, closers = %d; want %d, %d", n.Len(), len(closers), tt.want, tt.closers)
			}
			for _, c := range closers {
				c.Close()
			}
		})
	}
}

func TestServiceEndToEnd(t *testing.T) {
	mock := testutil.NewMockSquare()
	defer mock.Close()
	mock.SetCatalog(
		testutil.NewItem("ITEM1", "Latte", 1050, testutil.WithCategories("CAT1"), testutil.WithImages("IMG1")),
		testutil.NewCategory("CAT1", "Drinks"),
	)
	mock.SetRelated(testutil.NewImage("IMG1", "https://img/latte.jpg"))

	var hookCalls atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	_, store := setupTestStore(t)
	cfg := config.Config{
		CacheExpirationMinutes:  10,
		SquareAccessToken:       "token",
		SquareBaseURL:           mock.URL(),
		SquareVersion:           square.DefaultVersion,
		SquareLocationID:        "LOC1",
		WebhookURL:              hook.URL,
		PaymentLinkLeaseSeconds: 5,
		HTTPTimeoutSeconds:      5,
	}

	svc, closeAll, err := buildService(cfg, store)
	if err != nil {
		t.Fatalf("buildService() error = %v", err)
	}
	defer closeAll()

	router := newRouter(&server{products: svc, store: store, logger: zerolog.Nop()})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, body = %s", i, w.Code, w.Body.String())
		}

		var products []catalog.ProductItem
		if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
			t.Fatalf("request %d: invalid JSON: %v", i, err)
		}
		if len(products) != 1 || products[0].Price.String() != "10.5" || products[0].Categories[0] != "Drinks" {
			t.Errorf("request %d: products = %+v", i, products)
		}
	}

	if got := mock.GetRequestCount(testutil.PathCatalogList); got != 1 {
		t.Errorf("catalog/list requests = %d, want 1 (second request served from cache)", got)
	}
	if got := hookCalls.Load(); got != 1 {
		t.Errorf("webhook calls = %d, want 1", got)
	}
}
