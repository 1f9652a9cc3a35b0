package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/backend"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/middleware/ratelimit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  []core.FieldError `json:"errors"`
}

type testAPI struct {
	t   *testing.T
	srv *Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	result, err := backend.NewFactory(nil).CreateBackend(context.Background(), backend.Config{
		Type:           backend.MemoryBackend,
		RateProvider:   currency.StaticRates{"EUR": decimal.RequireFromString("0.5")},
		StatsCacheSize: 16,
	})
	require.NoError(t, err)

	srv := NewServer(result.Backend, Options{
		Addr:      ":0",
		RateLimit: ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000},
	})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = result.Cleanup()
	})
	return &testAPI{t: t, srv: srv}
}

func (a *testAPI) do(method, path, owner, body string) (int, apiResponse) {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec.Code, resp
}

func (a *testAPI) createdID(method, path, owner, body string) string {
	a.t.Helper()
	code, resp := a.do(method, path, owner, body)
	require.Equal(a.t, http.StatusCreated, code, resp.Message)
	var v createdView
	require.NoError(a.t, json.Unmarshal(resp.Data, &v))
	require.NotEmpty(a.t, v.ID)
	return v.ID
}

func (a *testAPI) account(path, owner string) accountView {
	a.t.Helper()
	code, resp := a.do(http.MethodGet, path, owner, "")
	require.Equal(a.t, http.StatusOK, code, resp.Message)
	var v accountView
	require.NoError(a.t, json.Unmarshal(resp.Data, &v))
	return v
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		code, resp := api.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, code, path)
		assert.True(t, resp.Status)
	}
}

func TestRequiresIdentity(t *testing.T) {
	api := newTestAPI(t)
	code, resp := api.do(http.MethodGet, "/api/goals", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Status)
	assert.Equal(t, "Authentication required", resp.Message)
}

func TestGoalLifecycle(t *testing.T) {
	api := newTestAPI(t)
	const owner = "user-1"

	code, resp := api.do(http.MethodGet, "/api/goals", owner, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No goals found", resp.Message)

	id := api.createdID(http.MethodPost, "/api/goals", owner, `{"title":"Holiday","amount":"100","unit":"USD"}`)

	code, resp = api.do(http.MethodPost, "/api/goals", owner, `{"title":" Holiday ","amount":5,"unit":"USD"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Goal already exists", resp.Message)

	entries := "/api/goals/saved-amount/" + id
	entryID := api.createdID(http.MethodPost, entries, owner, `{"amount":40,"unit":"USD"}`)

	code, resp = api.do(http.MethodPost, entries, owner, `{"amount":70,"unit":"USD"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "The amount exceeds the remaining balance", resp.Message)

	code, _ = api.do(http.MethodPut, entries+"/"+entryID, owner, `{"amount":"90","unit":"USD"}`)
	require.Equal(t, http.StatusOK, code)

	goal := api.account("/api/goals/"+id, owner)
	assert.Equal(t, "Holiday", goal.Title)
	assert.Equal(t, "100.00", goal.Amount)
	assert.Equal(t, "90.00", goal.Total)
	assert.Equal(t, "10.00", goal.Remaining)

	code, resp = api.do(http.MethodPut, entries+"/missing", owner, `{"amount":1,"unit":"USD"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Saved amount not found", resp.Message)

	code, resp = api.do(http.MethodPost, entries, owner, `{"amount":1,"unit":"XYZ"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid currency unit", resp.Message)

	code, resp = api.do(http.MethodGet, entries, owner, "")
	require.Equal(t, http.StatusOK, code)
	var listed []entryView
	require.NoError(t, json.Unmarshal(resp.Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "90.00", listed[0].Amount)

	code, _ = api.do(http.MethodDelete, entries+"/"+entryID, owner, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0.00", api.account("/api/goals/"+id, owner).Total)

	code, _ = api.do(http.MethodGet, "/api/goals/"+id, "someone-else", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(http.MethodDelete, "/api/goals/"+id, owner, "")
	require.Equal(t, http.StatusOK, code)
	code, resp = api.do(http.MethodGet, "/api/goals/"+id, owner, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Goal not found", resp.Message)
}

func TestGoalValidation(t *testing.T) {
	api := newTestAPI(t)

	code, resp := api.do(http.MethodPost, "/api/goals", "user-1", `{"title":"ab","amount":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", resp.Message)
	paths := make([]string, 0, len(resp.Errors))
	for _, f := range resp.Errors {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"title", "amount", "unit"}, paths)

	code, _ = api.do(http.MethodPost, "/api/goals", "user-1", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, "/api/goals", "user-1", `{"title":"Holiday","amount":"abc","unit":"USD"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDebtNormalizesAmount(t *testing.T) {
	api := newTestAPI(t)
	const owner = "user-2"

	id := api.createdID(http.MethodPost, "/api/debts", owner, `{"forWhom":"Alice","amount":"50,5","unit":"eur"}`)
	debt := api.account("/api/debts/"+id, owner)
	assert.Equal(t, "Alice", debt.ForWhom)
	assert.Equal(t, "101.00", debt.Amount)

	api.createdID(http.MethodPost, "/api/debts/paid/"+id, owner, `{"amount":10,"unit":"EUR"}`)
	assert.Equal(t, "20.00", api.account("/api/debts/"+id, owner).Total)

	code, resp := api.do(http.MethodDelete, "/api/debts/paid/"+id+"/nope", owner, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Paid amount not found", resp.Message)
}

func TestTransactionsAndStats(t *testing.T) {
	api := newTestAPI(t)
	const owner = "user-3"

	code, resp := api.do(http.MethodGet, "/api/cat", owner, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "No categories found", resp.Message)

	catID := api.createdID(http.MethodPost, "/api/cat", owner, `{"name":"Groceries"}`)

	code, resp = api.do(http.MethodPost, "/api/transaction", owner,
		`{"title":"Market","amount":20,"unit":"USD","type":"expense","categoryId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Category not found", resp.Message)

	txID := api.createdID(http.MethodPost, "/api/transaction", owner,
		`{"title":"Market","amount":20,"unit":"EUR","type":"expense","categoryId":"`+catID+`"}`)
	api.createdID(http.MethodPost, "/api/transaction", owner,
		`{"title":"Salary","amount":1000,"unit":"USD","type":"income","categoryId":"`+catID+`"}`)

	code, resp = api.do(http.MethodGet, "/api/transaction?type=expense&filterBy=thisYear", owner, "")
	require.Equal(t, http.StatusOK, code, resp.Message)
	var txs []transactionView
	require.NoError(t, json.Unmarshal(resp.Data, &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, txID, txs[0].ID)
	assert.Equal(t, "40.00", txs[0].Amount)
	require.NotNil(t, txs[0].Category)
	assert.Equal(t, catID, txs[0].Category.ID)
	assert.Equal(t, "Groceries", txs[0].Category.Name)

	code, _ = api.do(http.MethodGet, "/api/transaction?filterBy=lastCentury", owner, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = api.do(http.MethodGet, "/api/transaction/monthlystats", owner, "")
	require.Equal(t, http.StatusOK, code)
	var months []core.MonthlyStat
	require.NoError(t, json.Unmarshal(resp.Data, &months))
	require.Len(t, months, 1)
	assert.Equal(t, "1000.00", months[0].Income)
	assert.Equal(t, "40.00", months[0].Expenses)

	code, resp = api.do(http.MethodGet, "/api/transaction/bycategory?type=income", owner, "")
	require.Equal(t, http.StatusOK, code)
	var cats []categoryStatView
	require.NoError(t, json.Unmarshal(resp.Data, &cats))
	require.Len(t, cats, 1)
	require.NotNil(t, cats[0].Category)
	assert.Equal(t, "Groceries", *cats[0].Category)
	assert.Equal(t, "1000.00", cats[0].TotalIncome)

	code, _ = api.do(http.MethodDelete, "/api/transaction/"+txID, owner, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodGet, "/api/transaction?type=expense", owner, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(http.MethodGet, "/api/transaction/monthlystats?year=abc", owner, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)
	code, resp := api.do(http.MethodGet, "/nothing-here", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Status)
}
