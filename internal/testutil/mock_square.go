// Package testutil provides testing utilities for the catalog cache.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/square-catalog-cache/pkg/square"
)

// Mock endpoint paths.
const (
	PathCatalogList   = "/" + square.EndpointCatalogList
	PathBatchRetrieve = "/" + square.EndpointBatchRetrieve
	PathPaymentLinks  = "/" + square.EndpointPaymentLinks
)

// MockSquareResponse defines a canned response for a mock endpoint.
type MockSquareResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSquare is a configurable mock Square server for testing.
// Without overrides it serves the configured catalog, related objects and
// freshly numbered payment links.
type MockSquare struct {
	server    *httptest.Server
	mu        sync.RWMutex
	overrides map[string]MockSquareResponse

	objects  []square.CatalogObject
	related  []square.CatalogObject
	pageSize int
	linkSeq  int

	requestCounts       map[string]int
	paymentLinkRequests []square.CreatePaymentLinkRequest
	lastHeaders         http.Header
}

// NewMockSquare creates a new mock Square server.
func NewMockSquare() *MockSquare {
	mock := &MockSquare{
		overrides:     make(map[string]MockSquareResponse),
		requestCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCounts[r.URL.Path]++
		mock.lastHeaders = r.Header.Clone()
		override, hasOverride := mock.overrides[r.URL.Path]
		mock.mu.Unlock()

		if hasOverride {
			writeCanned(w, override)
			return
		}

		switch r.URL.Path {
		case PathCatalogList:
			mock.handleList(w, r)
		case PathBatchRetrieve:
			mock.handleBatchRetrieve(w, r)
		case PathPaymentLinks:
			mock.handlePaymentLink(w, r)
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{
				"errors": []square.APIError{{Category: "INVALID_REQUEST_ERROR", Code: "NOT_FOUND"}},
			})
		}
	}))

	return mock
}

// URL returns the base URL to configure the client with.
func (m *MockSquare) URL() string {
	return m.server.URL + "/"
}

// Close shuts down the mock server.
func (m *MockSquare) Close() {
	m.server.Close()
}

// SetCatalog replaces the objects returned by catalog/list.
func (m *MockSquare) SetCatalog(objects ...square.CatalogObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = objects
}

// SetRelated replaces the related objects returned by batch-retrieve.
func (m *MockSquare) SetRelated(objects ...square.CatalogObject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.related = objects
}

// SetPageSize splits catalog/list into pages of n objects (0 = single page).
func (m *MockSquare) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// SetResponse forces a canned response for a path.
func (m *MockSquare) SetResponse(path string, resp MockSquareResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = resp
}

// ClearResponse removes a canned response.
func (m *MockSquare) ClearResponse(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, path)
}

// Reset clears all tracking counters.
func (m *MockSquare) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCounts = make(map[string]int)
	m.paymentLinkRequests = nil
	m.lastHeaders = nil
}

// GetRequestCount returns the number of requests made to path.
func (m *MockSquare) GetRequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCounts[path]
}

// PaymentLinkRequests returns every decoded payment-link creation request.
func (m *MockSquare) PaymentLinkRequests() []square.CreatePaymentLinkRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]square.CreatePaymentLinkRequest, len(m.paymentLinkRequests))
	copy(out, m.paymentLinkRequests)
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockSquare) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeaders
}

func (m *MockSquare) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{})
		return
	}

	wanted := map[string]bool{}
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t != "" {
			wanted[t] = true
		}
	}

	m.mu.RLock()
	var filtered []square.CatalogObject
	for _, obj := range m.objects {
		if len(wanted) == 0 || wanted[obj.Type] {
			filtered = append(filtered, obj)
		}
	}
	pageSize := m.pageSize
	m.mu.RUnlock()

	start := 0
	if c := r.URL.Query().Get("cursor"); c != "" {
		start, _ = strconv.Atoi(c)
	}
	if start > len(filtered) {
		start = len(filtered)
	}
	end := len(filtered)
	next := ""
	if pageSize > 0 && start+pageSize < len(filtered) {
		end = start + pageSize
		next = strconv.Itoa(end)
	}

	writeJSON(w, http.StatusOK, square.ListCatalogResponse{
		Objects: filtered[start:end],
		Cursor:  next,
	})
}

func (m *MockSquare) handleBatchRetrieve(w http.ResponseWriter, r *http.Request) {
	var req square.BatchRetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []square.APIError{{Category: "INVALID_REQUEST_ERROR", Code: "BAD_REQUEST", Detail: err.Error()}},
		})
		return
	}

	ids := make(map[string]bool, len(req.ObjectIDs))
	for _, id := range req.ObjectIDs {
		ids[id] = true
	}

	m.mu.RLock()
	resp := square.BatchRetrieveResponse{}
	for _, obj := range m.objects {
		if ids[obj.ID] {
			resp.Objects = append(resp.Objects, obj)
		}
	}
	if req.IncludeRelatedObjects {
		resp.RelatedObjects = append(resp.RelatedObjects, m.related...)
	}
	m.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (m *MockSquare) handlePaymentLink(w http.ResponseWriter, r *http.Request) {
	var req square.CreatePaymentLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []square.APIError{{Category: "INVALID_REQUEST_ERROR", Code: "BAD_REQUEST", Detail: err.Error()}},
		})
		return
	}

	m.mu.Lock()
	m.paymentLinkRequests = append(m.paymentLinkRequests, req)
	m.linkSeq++
	seq := m.linkSeq
	m.mu.Unlock()

	objectID := ""
	if len(req.Order.LineItems) > 0 {
		objectID = req.Order.LineItems[0].CatalogObjectID
	}

	writeJSON(w, http.StatusOK, square.CreatePaymentLinkResponse{
		PaymentLink: &square.PaymentLink{
			ID:      fmt.Sprintf("PL%d", seq),
			Version: 1,
			URL:     PaymentLinkURL(objectID, seq),
		},
	})
}

// PaymentLinkURL is the URL the mock issues for the seq-th creation call.
func PaymentLinkURL(variationID string, seq int) string {
	return fmt.Sprintf("https://square.link/u/%s-%d", variationID, seq)
}

func writeCanned(w http.ResponseWriter, resp MockSquareResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockSquareResponse {
	return MockSquareResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"errors":[{"category":"API_ERROR","code":"INTERNAL_SERVER_ERROR","detail":"boom"}]}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfterSeconds int) MockSquareResponse {
	return MockSquareResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors":[{"category":"RATE_LIMIT_ERROR","code":"RATE_LIMITED"}]}`,
		Headers: map[string]string{
			"Retry-After": strconv.Itoa(retryAfterSeconds),
		},
	}
}

// NewEmptyPaymentLinkResponse creates a 200 response without a payment link.
func NewEmptyPaymentLinkResponse() MockSquareResponse {
	return MockSquareResponse{
		StatusCode: http.StatusOK,
		Body:       `{}`,
	}
}
