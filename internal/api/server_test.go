package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/categories"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/report"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/Veraticus/spice-ledger/internal/views"
)

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

type testServer struct {
	server   *Server
	db       *testutil.TestDB
	cache    *views.Cache
	verifier *auth.Verifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	verifier, err := auth.NewVerifier("test-secret", "spice")
	require.NoError(t, err)

	cache := views.NewCache(64, time.Minute)
	clock := func() time.Time { return fixedNow }

	return &testServer{
		db:       db,
		cache:    cache,
		verifier: verifier,
		server: NewServer(Dependencies{
			Store:      db.Storage,
			Ledger:     ledger.NewService(db.Storage, auth.ContextIdentity{}, cache, ledger.WithSummaryCache(db.Storage)),
			Categories: categories.NewService(db.Storage, categories.WithSummaryCache(db.Storage), categories.WithRevalidator(cache)),
			Reports:    report.NewAggregator(db.Storage, report.WithSummaryCache(db.Storage), report.WithClock(clock)),
			Verifier:   verifier,
			Cache:      cache,
			Now:        clock,
		}),
	}
}

func (ts *testServer) do(t *testing.T, subject, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if subject != "" {
		token, err := ts.verifier.Issue(subject, time.Hour, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) category(t *testing.T, subject, name string) model.Category {
	t.Helper()
	rec := ts.do(t, subject, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range decodeBody[[]model.Category](t, rec) {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("category %q not found", name)
	return model.Category{}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnauthenticated(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "", http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ledger.MsgUnauthorized, decodeBody[errorResponse](t, rec).Message)

	rec = ts.do(t, "", http.MethodPost, "/api/transactions", `{"amount":"1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFirstAccessProvisionsUser(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "user_1", http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cats := decodeBody[[]model.Category](t, rec)
	require.Len(t, cats, 1)
	assert.Equal(t, model.IncomeCategoryName, cats[0].Name)
	assert.Equal(t, model.CategoryTypeIncome, cats[0].Type)
}

func TestTransactionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "user_1", http.MethodPost, "/api/categories", `{"name":"Food","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	food := decodeBody[model.Category](t, rec)
	income := ts.category(t, "user_1", model.IncomeCategoryName)

	// Prime the dashboard cache.
	rec = ts.do(t, "user_1", http.MethodGet, "/api/dashboard?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, "user_1", http.MethodGet, "/api/dashboard?month=2024-03", "")
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))

	body := `{"description":"Groceries","amount":"$1,234.5","transactionDate":"2024-03-15","type":"expense","categoryId":` +
		jsonID(food.ID) + `}`
	rec = ts.do(t, "user_1", http.MethodPost, "/api/transactions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[ledger.Result](t, rec)
	assert.True(t, created.Success)
	assert.Equal(t, ledger.MsgCreated, created.Message)

	rec = ts.do(t, "user_1", http.MethodPost, "/api/transactions",
		`{"description":"Pay","amount":"3000","transactionDate":"2024-03-01","type":"income","categoryId":"`+jsonID(income.ID)+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, "user_1", http.MethodGet, "/api/dashboard?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))
	dash := decodeBody[model.Dashboard](t, rec)
	assert.Equal(t, "1234.5", dash.Summary.TotalSpending.String())
	assert.Equal(t, "3000", dash.Summary.TotalIncome.String())
	assert.Equal(t, "1765.5", dash.Summary.NetSavings.String())
	assert.Len(t, dash.Recent, 2)

	rec = ts.do(t, "user_1", http.MethodPatch, "/api/transactions/"+jsonID(created.ID), `{"amount":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, "user_1", http.MethodGet, "/api/history?month=2024-03&type=expense", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[historyResponse](t, rec)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, "10", history.Transactions[0].Amount.String())
	assert.Equal(t, "March 2024", history.Label)
	require.Len(t, history.Months, 1)
	assert.Equal(t, "2024-03", history.Months[0].Value)

	rec = ts.do(t, "user_1", http.MethodDelete, "/api/transactions/"+jsonID(created.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "user_1", http.MethodGet, "/api/cash", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3000", decodeBody[cashResponse](t, rec).TotalCash.String())
}

func TestMutationStatusCodes(t *testing.T) {
	ts := newTestServer(t)
	income := ts.category(t, "user_1", model.IncomeCategoryName)
	theirs := ts.category(t, "user_2", model.IncomeCategoryName)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"validation", http.MethodPost, "/api/transactions", `{"amount":"0","type":"expense","categoryId":"1"}`, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/api/transactions", `{`, http.StatusUnprocessableEntity},
		{"type mismatch", http.MethodPost, "/api/transactions",
			`{"amount":"5","transactionDate":"2024-03-01","type":"expense","categoryId":"` + jsonID(income.ID) + `"}`, http.StatusConflict},
		{"foreign category", http.MethodPost, "/api/transactions",
			`{"amount":"5","transactionDate":"2024-03-01","type":"income","categoryId":"` + jsonID(theirs.ID) + `"}`, http.StatusUnprocessableEntity},
		{"missing transaction", http.MethodPatch, "/api/transactions/999", `{"description":"x"}`, http.StatusNotFound},
		{"partial bulk", http.MethodPost, "/api/transactions/recategorize", `{"ids":[999],"categoryId":"` + jsonID(income.ID) + `"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/transactions/999", "", http.StatusNotFound},
		{"duplicate category", http.MethodPost, "/api/categories", `{"name":"Income","type":"expense"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "user_1", tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "sql")
		})
	}
}

func TestTrends(t *testing.T) {
	ts := newTestServer(t)
	ts.category(t, "user_1", model.IncomeCategoryName)

	rec := ts.do(t, "user_1", http.MethodGet, "/api/trends/monthly?months=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	points := decodeBody[[]model.TrendPoint](t, rec)
	require.Len(t, points, 3)
	assert.Equal(t, "2024-03", points[2].Key)

	rec = ts.do(t, "user_1", http.MethodGet, "/api/trends/monthly.svg?months=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))

	rec = ts.do(t, "user_1", http.MethodGet, "/api/trends/categories?year=2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024", decodeBody[breakdownResponse](t, rec).Period)

	rec = ts.do(t, "user_1", http.MethodGet, "/api/trends/categories?month=bogus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-03", decodeBody[breakdownResponse](t, rec).Period)

	rec = ts.do(t, "user_1", http.MethodGet, "/api/summary/year?year=2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2024, decodeBody[yearSummaryResponse](t, rec).Year)
}

func TestRecoverPanics(t *testing.T) {
	h := recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestFlexString(t *testing.T) {
	var req transactionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"amount":12.5,"categoryId":7}`), &req))
	assert.Equal(t, flexString("12.5"), req.Amount)
	assert.Equal(t, flexString("7"), req.CategoryID)
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
