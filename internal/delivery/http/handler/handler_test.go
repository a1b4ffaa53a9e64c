package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainBilling "drayage-tms/internal/domain/billing"
	"drayage-tms/internal/testutil/memstore"
	"drayage-tms/internal/usecase/accrual"
	"drayage-tms/internal/usecase/automation"
	"drayage-tms/internal/usecase/billing"
	"drayage-tms/internal/usecase/propagation"
	"drayage-tms/internal/usecase/query"
	"drayage-tms/internal/usecase/settlement"
	appErrors "drayage-tms/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testAPI struct {
	router *gin.Engine
	store  *memstore.Store
	h      memstore.Hierarchy
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	customer := uuid.New()
	h := store.SeedHierarchy(&customer, "MSC", 1, 1)
	store.AddLaneRate(domainBilling.LaneRate{
		ID:            uuid.New(),
		CustomerID:    &customer,
		ContainerSize: "40",
		BaseRate:      decimal.NewFromInt(400),
		EffectiveDate: now.AddDate(0, -1, 0),
	})

	graph, err := propagation.NewHierarchy(store)
	require.NoError(t, err)
	cal, err := accrual.NewCalendar(time.UTC, nil)
	require.NoError(t, err)
	calc := accrual.NewCalculator(cal, 5, decimal.NewFromInt(150), 4, decimal.NewFromInt(35))

	engine := automation.NewEngine(automation.Deps{
		Tx:        store,
		Shipments: store,
		Trips:     store,
		Outbox:    store,
		Graph:     graph,
		Accruals:  accrual.NewService(store, store, calc),
		Billing: billing.NewGenerator(store, store, store, calc, billing.Policy{
			FuelSurchargePct: decimal.NewFromInt(8),
			InvoiceDueDays:   30,
			Currency:         "USD",
		}),
		Settlements: settlement.NewCalculator(store, store, settlement.Defaults{}),
	}, automation.Options{MaxRetries: 1, RetryBaseDelay: time.Millisecond}).
		WithClock(func() time.Time { return now })
	queries := query.NewService(store, store, store, store).WithClock(func() time.Time { return now })

	router := gin.New()
	v1 := router.Group("/api/v1")
	NewAutomationHandler(engine).RegisterRoutes(v1)
	NewQueryHandler(queries).RegisterRoutes(v1)

	return &testAPI{router: router, store: store, h: h}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestOrderStatusRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	orderID := api.h.Orders[0][0].ID.String()

	code, env := api.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/status", gin.H{"status": "dispatched"})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var out query.OutcomeResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.False(t, out.NoOp)
	assert.Len(t, out.ChargeLines, 2)
	assert.NotZero(t, out.EventsAppended)

	code, env = api.do(t, http.MethodGet, "/api/v1/orders/"+orderID+"/charges", nil)
	require.Equal(t, http.StatusOK, code)
	var charges query.ChargesResponse
	require.NoError(t, json.Unmarshal(env.Data, &charges))
	assert.Equal(t, "432.00", charges.Total.StringFixed(2))

	code, env = api.do(t, http.MethodGet, "/api/v1/shipments/"+api.h.Shipment.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var sh query.ShipmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &sh))
	assert.Equal(t, "IN_PROGRESS", string(sh.Status))
}

func TestInvoiceAvailableAfterCompletion(t *testing.T) {
	api := newTestAPI(t)
	orderID := api.h.Orders[0][0].ID.String()

	code, env := api.do(t, http.MethodGet, "/api/v1/orders/"+orderID+"/invoice", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, appErrors.CodeNotFound, env.Error.Code)

	for _, s := range []string{"DISPATCHED", "COMPLETED"} {
		code, _ = api.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/status", gin.H{"status": s})
		require.Equal(t, http.StatusOK, code)
	}

	code, env = api.do(t, http.MethodGet, "/api/v1/orders/"+orderID+"/invoice", nil)
	require.Equal(t, http.StatusOK, code)
	var inv query.InvoiceResponse
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	assert.Equal(t, "432.00", inv.TotalAmount.StringFixed(2))
	assert.Len(t, inv.Lines, 2)
}

func TestErrorStatusMapping(t *testing.T) {
	api := newTestAPI(t)
	orderID := api.h.Orders[0][0].ID.String()
	containerID := api.h.Containers[0].ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed id", http.MethodPost, "/api/v1/orders/nope/status", gin.H{"status": "READY"}, http.StatusBadRequest, appErrors.CodeValidation},
		{"missing body field", http.MethodPost, "/api/v1/orders/" + orderID + "/status", gin.H{}, http.StatusBadRequest, appErrors.CodeValidation},
		{"unknown status", http.MethodPost, "/api/v1/orders/" + orderID + "/status", gin.H{"status": "LOST"}, http.StatusBadRequest, appErrors.CodeValidation},
		{"invalid transition", http.MethodPost, "/api/v1/orders/" + orderID + "/status", gin.H{"status": "COMPLETED"}, http.StatusUnprocessableEntity, appErrors.CodeInvalidTransition},
		{"unknown order", http.MethodPost, "/api/v1/orders/" + uuid.NewString() + "/status", gin.H{"status": "READY"}, http.StatusNotFound, appErrors.CodeNotFound},
		{"gate-in before gate-out", http.MethodPost, "/api/v1/containers/" + containerID + "/gate-in", gin.H{"at": now}, http.StatusBadRequest, appErrors.CodeValidation},
		{"unknown container", http.MethodGet, "/api/v1/containers/" + uuid.NewString(), nil, http.StatusNotFound, appErrors.CodeNotFound},
		{"no settlement yet", http.MethodGet, "/api/v1/drivers/" + uuid.NewString() + "/settlements/current", nil, http.StatusNotFound, appErrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestGateOutThenDemurrageView(t *testing.T) {
	api := newTestAPI(t)
	containerID := api.h.Containers[0].ID.String()

	code, _ := api.do(t, http.MethodPost, "/api/v1/containers/"+containerID+"/gate-out", gin.H{"at": now})
	require.Equal(t, http.StatusOK, code)

	code, env := api.do(t, http.MethodGet, "/api/v1/containers/"+containerID+"/demurrage", nil)
	require.Equal(t, http.StatusOK, code)
	var d query.DemurrageResponse
	require.NoError(t, json.Unmarshal(env.Data, &d))
	require.NotNil(t, d.Accrual)
	assert.Equal(t, "OPEN", string(d.Accrual.Status))
	require.NotNil(t, d.FreeTimeExpiresAt)
	assert.True(t, d.FreeTimeExpiresAt.Equal(now.AddDate(0, 0, 5)))

	code, env = api.do(t, http.MethodPost, "/api/v1/demurrage/reevaluate", gin.H{"as_of": now.AddDate(0, 0, 6)})
	require.Equal(t, http.StatusOK, code)
	var report automation.ReevaluationReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Escalated)
}

func TestStatusForCodes(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(appErrors.CodeConflict))
	assert.Equal(t, http.StatusConflict, statusFor(appErrors.CodeInconsistentParent))
	assert.Equal(t, http.StatusInternalServerError, statusFor(appErrors.CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}
