package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housesplit/internal/cache"
	"housesplit/internal/core"
	"housesplit/internal/log"
	"housesplit/internal/services"
	"housesplit/internal/storage"
)

func newTestServer(t *testing.T, opts Options) (*Server, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	summaries := services.NewSummaryService(repo, cache.NewLRUCache[core.MonthSummary](16, time.Minute))
	shares := services.NewShareService(repo, repo, summaries)
	svc := Services{
		Expenses:  services.NewExpenseService(repo, nil, summaries),
		People:    services.NewPeopleService(repo, summaries),
		Shares:    shares,
		Payments:  services.NewPaymentService(repo, summaries),
		Summaries: summaries,
		Reports:   services.NewReportService(repo, shares),
	}

	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 1000
	}
	opts.Logger = log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})

	srv := NewServer(":0", svc, repo, opts)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, repo
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func seedPeople(t *testing.T, srv *Server, names ...string) {
	t.Helper()
	for _, name := range names {
		rr := do(t, srv, http.MethodPost, "/people", `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, repo := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", rr.Body.String())

	require.NoError(t, repo.Close())
	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMonthFlow(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	seedPeople(t, srv, "Ada", "Bo")

	rr := do(t, srv, http.MethodPost, "/expenses", `{"cost":100,"person_id":1,"date":"2025-05-03","comment":"groceries"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Expense](t, rr)
	assert.Equal(t, core.Cents(10000), created.Cost)
	assert.Equal(t, "Ada", created.PurchasedBy)

	rr = do(t, srv, http.MethodPost, "/monthly-shares/2025-05", `{"shares":{"1":60,"2":40}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/monthly-shares/2025-05", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[int64]core.Percent{1: 6000, 2: 4000}, decode[map[int64]core.Percent](t, rr))

	rr = do(t, srv, http.MethodGet, "/summary/2025-05", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sum := decode[core.MonthSummary](t, rr)
	assert.Equal(t, core.SourceExplicit, sum.SharesSource)
	assert.Equal(t, core.Cents(10000), sum.Total)
	require.Len(t, sum.Settlements, 1)
	assert.Equal(t, "2-1", sum.Settlements[0].Key)
	assert.Equal(t, core.Cents(4000), sum.Settlements[0].Amount)
	assert.False(t, sum.Settlements[0].Paid)

	rr = do(t, srv, http.MethodPost, "/payments", `{"paymentKey":"2-1","monthKey":"2025-05","fromPersonId":2,"toPersonId":1,"amount":40,"paid":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/payments?monthKey=2025-05", "")
	require.Equal(t, http.StatusOK, rr.Code)
	payments := decode[map[string]paymentStatus](t, rr)
	require.Contains(t, payments, "2-1")
	assert.True(t, payments["2-1"].Paid)

	rr = do(t, srv, http.MethodGet, "/summary/2025-05", "")
	sum = decode[core.MonthSummary](t, rr)
	require.Len(t, sum.Settlements, 1)
	assert.True(t, sum.Settlements[0].Paid, "recording a payment refreshes the cached summary")

	rr = do(t, srv, http.MethodGet, "/summary/2025-06", "")
	sum = decode[core.MonthSummary](t, rr)
	assert.Equal(t, core.SourceInherited, sum.SharesSource)
	assert.Equal(t, core.MonthKey("2025-05"), sum.InheritedFrom)

	rr = do(t, srv, http.MethodGet, "/latest-shares", "")
	latest := decode[latestSharesResponse](t, rr)
	assert.Equal(t, core.MonthKey("2025-05"), latest.MonthKey)

	rr = do(t, srv, http.MethodGet, "/reports?from=2025-01&to=2025-12", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"totalSpending":100`)
}

func TestExpenseUpdateAndDelete(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	seedPeople(t, srv, "Ada", "Bo")

	rr := do(t, srv, http.MethodPost, "/expenses", `{"cost":"12.50","person_id":1,"date":"2025-05-03"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Expense](t, rr)

	rr = do(t, srv, http.MethodPatch, "/expenses/1", `{"person_id":2,"comment":"split"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[core.Expense](t, rr)
	assert.Equal(t, created.Cost, updated.Cost)
	assert.Equal(t, "Bo", updated.PurchasedBy)
	assert.Equal(t, "split", updated.Comment)

	rr = do(t, srv, http.MethodGet, "/expenses?month=2025-05", "")
	require.Len(t, decode[[]core.Expense](t, rr), 1)
	rr = do(t, srv, http.MethodGet, "/expenses?month=2025-04", "")
	assert.Equal(t, "[]\n", rr.Body.String())

	rr = do(t, srv, http.MethodDelete, "/expenses/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ID, decode[core.Expense](t, rr).ID)

	rr = do(t, srv, http.MethodDelete, "/expenses/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	seedPeople(t, srv, "Ada", "Bo")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		errMsg string
	}{
		{"malformed json", http.MethodPost, "/expenses", `{"cost":`, http.StatusBadRequest, "invalid JSON body"},
		{"empty body", http.MethodPost, "/expenses", "", http.StatusBadRequest, "request body is required"},
		{"missing cost", http.MethodPost, "/expenses", `{"person_id":1,"date":"2025-05-01"}`, http.StatusBadRequest, "validation failed"},
		{"negative cost", http.MethodPost, "/expenses", `{"cost":-5,"person_id":1,"date":"2025-05-01"}`, http.StatusBadRequest, "invalid amount"},
		{"missing date", http.MethodPost, "/expenses", `{"cost":5,"person_id":1}`, http.StatusBadRequest, "invalid date"},
		{"patch missing expense", http.MethodPatch, "/expenses/999", `{"comment":"x"}`, http.StatusNotFound, "not found"},
		{"bad id", http.MethodDelete, "/expenses/abc", "", http.StatusBadRequest, "invalid id"},
		{"bad month", http.MethodGet, "/summary/2025-13", "", http.StatusBadRequest, "invalid month key"},
		{"shares out of tolerance", http.MethodPost, "/monthly-shares/2025-05", `{"shares":{"1":50,"2":40}}`, http.StatusBadRequest, "shares must sum to 100%"},
		{"duplicate person", http.MethodPost, "/people", `{"name":"ada"}`, http.StatusConflict, "already exists"},
		{"payments without month", http.MethodGet, "/payments", "", http.StatusBadRequest, "monthKey is required"},
		{"reports reversed", http.MethodGet, "/reports?from=2025-06&to=2025-01", "", http.StatusBadRequest, "from must not be after to"},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.errMsg != "" {
				body := decode[ErrorBody](t, rr)
				assert.Contains(t, body.Error, tt.errMsg)
			}
		})
	}
}

func TestImportCSV(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	seedPeople(t, srv, "Ada", "Bo")

	body, err := json.Marshal(importCSVRequest{CSVContent: "amount,purchased_by,date\n10,Ada,2025-05-01\n$1,250.00,bo,2025-05-02\n"})
	require.NoError(t, err)
	rr := do(t, srv, http.MethodPost, "/import-csv", string(body))
	require.Equal(t, http.StatusBadRequest, rr.Code, "an unquoted thousands separator shifts the columns")
	errBody := decode[ErrorBody](t, rr)
	require.Len(t, errBody.Details, 1)
	assert.Contains(t, errBody.Details[0], "Row 3")

	body, err = json.Marshal(importCSVRequest{CSVContent: "amount,purchased_by,date\n10,Ada,2025-05-01\n\"$1,250.00\",bo,2025-05-02\n"})
	require.NoError(t, err)
	rr = do(t, srv, http.MethodPost, "/import-csv", string(body))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	out := decode[importCSVResponse](t, rr)
	assert.Equal(t, 2, out.Imported)
	assert.Equal(t, core.Cents(125000), out.Expenses[1].Cost)
}

func TestMiddlewareChain(t *testing.T) {
	srv, _ := newTestServer(t, Options{CORSAllowedOrigin: "https://app.example"})

	rr := do(t, srv, http.MethodOptions, "/expenses", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = do(t, srv, http.MethodGet, "/people", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "housesplit_http_requests_total")
}

func TestRateLimitOnlyMutations(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 1})

	rr := do(t, srv, http.MethodPost, "/people", `{"name":"Ada"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, srv, http.MethodPost, "/people", `{"name":"Bo"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Contains(t, decode[ErrorBody](t, rr).Error, "rate limit")

	for i := 0; i < 3; i++ {
		rr = do(t, srv, http.MethodGet, "/people", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	big := `{"csvContent":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	rr := do(t, srv, http.MethodPost, "/import-csv", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
