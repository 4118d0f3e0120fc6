package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/config"
	"github.com/example/drivethru/pkg/models"
	"github.com/example/drivethru/pkg/orders"
	"github.com/example/drivethru/pkg/repository"
	"go.uber.org/zap"
)

func newTestGateway(t *testing.T, storeOpts []orders.Option, opts ...Option) (*Gateway, *board.Board) {
	t.Helper()

	system := actor.NewActorSystem()
	b, err := board.New(system, orders.NewStore(storeOpts...), board.Config{UndoWindow: 5 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("board.New() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Stop() })

	cfg := &config.GatewayConfig{
		Host:         "127.0.0.1",
		Port:         0,
		Mode:         "test",
		AllowOrigins: []string{"*"},
		PingInterval: time.Second,
		WriteTimeout: time.Second,
		Swagger:      true,
	}
	g := NewGateway(cfg, b, zap.NewNop(), opts...)
	g.SetupRoutes()
	return g, b
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	w := doJSON(t, g.Handler(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAgentCallbacks(t *testing.T) {
	g, _ := newTestGateway(t, []orders.Option{orders.WithValidator(orders.RejectNegative())})
	h := g.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"start", http.MethodPost, "/api/sessions", map[string]string{"sessionId": "s1"}, http.StatusCreated},
		{"duplicate", http.MethodPost, "/api/sessions", map[string]string{"sessionId": "s1"}, http.StatusConflict},
		{"missingId", http.MethodPost, "/api/sessions", map[string]string{}, http.StatusBadRequest},
		{"update", http.MethodPost, "/api/sessions/s1/order",
			`{"items":[{"name":"Cheeseburger","quantity":2,"price":6.49,"modifiers":["no onions"],"size":null}],"total":12.98,"status":"in_progress"}`,
			http.StatusOK},
		{"unknownSession", http.MethodPost, "/api/sessions/ghost/order", `{"items":[],"total":0}`, http.StatusNotFound},
		{"badStatus", http.MethodPost, "/api/sessions/s1/order", `{"items":[],"total":0,"status":"abandoned"}`, http.StatusUnprocessableEntity},
		{"rejected", http.MethodPost, "/api/sessions/s1/order", `{"items":[],"total":-3}`, http.StatusUnprocessableEntity},
		{"malformed", http.MethodPost, "/api/sessions/s1/order", `{"items":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := doJSON(t, h, http.MethodGet, "/api/orders/s1", nil)
	order := decode[models.Order](t, w)
	if len(order.Items) != 1 || order.Items[0].UnitPrice != 6.49 || order.Total != 12.98 {
		t.Fatalf("order after rejected updates = %+v", order)
	}
	if order.Items[0].Modifiers[0] != "no onions" {
		t.Errorf("modifiers = %v", order.Items[0].Modifiers)
	}
}

func TestReceiveOrderWithoutSession(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	h := g.Handler()

	first := decode[receiveOrderResponse](t, doJSON(t, h, http.MethodPost, "/api/order",
		`{"items":[{"name":"Fries","quantity":1,"price":3.49}],"total":3.49,"status":"in_progress"}`))
	if !first.Success || first.OrderID != 1 {
		t.Fatalf("first = %+v", first)
	}

	second := decode[receiveOrderResponse](t, doJSON(t, h, http.MethodPost, "/api/order",
		`{"items":[{"name":"Fries","quantity":1,"price":3.49},{"name":"Coke","quantity":1,"price":1.99}],"total":5.48,"status":"complete"}`))
	if second.OrderID != 1 || second.Order.ID != first.Order.ID || len(second.Order.Items) != 2 {
		t.Fatalf("second update did not target the open order: %+v", second)
	}

	third := decode[receiveOrderResponse](t, doJSON(t, h, http.MethodPost, "/api/order",
		`{"items":[{"name":"Shake","quantity":1,"price":4.29}],"total":4.29}`))
	if third.OrderID != 2 {
		t.Fatalf("update after completion should open order 2, got %d", third.OrderID)
	}

	if w := doJSON(t, h, http.MethodPost, "/api/order", `{"sessionId":"lane-1","items":[],"total":0}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown named session = %d, want 404 (%s)", w.Code, w.Body.String())
	}
	if w := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{"sessionId": "lane-1"}); w.Code != http.StatusCreated {
		t.Fatalf("start lane-1 = %d", w.Code)
	}
	named := decode[receiveOrderResponse](t, doJSON(t, h, http.MethodPost, "/api/order",
		`{"sessionId":"lane-1","items":[],"total":0}`))
	if named.Order.ID != "lane-1" || named.OrderID != 3 {
		t.Fatalf("named session = %+v", named)
	}
}

func TestReceiveOrderFollowsAgentNotKitchen(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	h := g.Handler()

	done := decode[receiveOrderResponse](t, doJSON(t, h, http.MethodPost, "/api/order",
		`{"items":[{"name":"Fries","quantity":1,"price":3.49}],"total":3.49,"status":"complete"}`))
	open := decode[receiveOrderResponse](t, doJSON(t, h, http.MethodPost, "/api/order",
		`{"items":[{"name":"Shake","quantity":1,"price":4.29}],"total":4.29,"status":"in_progress"}`))
	if done.OrderID != 1 || open.OrderID != 2 {
		t.Fatalf("order numbers = %d, %d, want 1, 2", done.OrderID, open.OrderID)
	}

	// The kitchen picks up the finished order while the agent is mid-conversation.
	if w := doJSON(t, h, http.MethodPut, "/api/orders/"+done.Order.ID+"/status",
		map[string]string{"kitchenStatus": "preparing"}); w.Code != http.StatusOK {
		t.Fatalf("kitchen status = %d (%s)", w.Code, w.Body.String())
	}

	next := decode[receiveOrderResponse](t, doJSON(t, h, http.MethodPost, "/api/order",
		`{"items":[{"name":"Shake","quantity":2,"price":4.29}],"total":8.58,"status":"in_progress"}`))
	if next.OrderID != 2 || next.Order.ID != open.Order.ID || next.Order.Items[0].Quantity != 2 {
		t.Fatalf("update went to %+v, want the open order 2", next)
	}

	active := decode[[]models.Order](t, doJSON(t, h, http.MethodGet, "/api/orders", nil))
	if len(active) != 2 {
		t.Fatalf("active = %d orders, want 2", len(active))
	}
}

func TestReceiveOrderDoesNotReviveDeletedSession(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	h := g.Handler()

	if w := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{"sessionId": "s1"}); w.Code != http.StatusCreated {
		t.Fatalf("start = %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodDelete, "/api/orders/s1", nil); w.Code != http.StatusAccepted {
		t.Fatalf("delete = %d", w.Code)
	}

	// A late agent callback for the deleted session.
	w := doJSON(t, h, http.MethodPost, "/api/order", `{"sessionId":"s1","items":[{"name":"Coke","quantity":1,"price":1.99}],"total":1.99}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("late update = %d, want 404 (%s)", w.Code, w.Body.String())
	}
	if w := doJSON(t, h, http.MethodGet, "/api/orders/s1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after late update = %d, want 404", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/orders/s1/undo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("undo = %d (%s)", w.Code, w.Body.String())
	}
	restored := decode[models.Order](t, w)
	if restored.ID != "s1" || restored.OrderNumber != 1 || len(restored.Items) != 0 {
		t.Fatalf("restored = %+v", restored)
	}
}

func TestKitchenRoutes(t *testing.T) {
	g, b := newTestGateway(t, []orders.Option{orders.WithStrictTransitions()})
	h := g.Handler()
	ctx := context.Background()

	if w := doJSON(t, h, http.MethodGet, "/api/orders/latest", nil); w.Code != http.StatusNotFound {
		t.Fatalf("latest on empty board = %d", w.Code)
	}

	b.StartSession(ctx, "s1")
	b.StartSession(ctx, "s2")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"preparing", http.MethodPut, "/api/orders/s1/status", map[string]string{"kitchenStatus": "preparing"}, http.StatusOK},
		{"invalid", http.MethodPut, "/api/orders/s1/status", map[string]string{"kitchenStatus": "burnt"}, http.StatusBadRequest},
		{"skip", http.MethodPut, "/api/orders/s1/status", map[string]string{"kitchenStatus": "completed"}, http.StatusConflict},
		{"unknown", http.MethodPut, "/api/orders/ghost/status", map[string]string{"kitchenStatus": "ready"}, http.StatusNotFound},
		{"deleteUnknown", http.MethodDelete, "/api/orders/ghost", nil, http.StatusNotFound},
		{"undoNothing", http.MethodPost, "/api/orders/s2/undo", nil, http.StatusNotFound},
		{"getUnknown", http.MethodGet, "/api/orders/ghost", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(t, h, tt.method, tt.path, tt.body); w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := doJSON(t, h, http.MethodDelete, "/api/orders/s2", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("delete = %d", w.Code)
	}
	del := decode[deleteResponse](t, w)
	if del.UndoWindowMs != 5000 || del.OrderNumber != 2 {
		t.Errorf("delete response = %+v", del)
	}

	active := decode[[]models.Order](t, doJSON(t, h, http.MethodGet, "/api/orders", nil))
	if len(active) != 1 || active[0].ID != "s1" {
		t.Fatalf("active after delete = %+v", active)
	}

	if w := doJSON(t, h, http.MethodPost, "/api/orders/s2/undo", nil); w.Code != http.StatusOK {
		t.Fatalf("undo = %d", w.Code)
	}
	active = decode[[]models.Order](t, doJSON(t, h, http.MethodGet, "/api/orders", nil))
	if len(active) != 2 || active[1].OrderNumber != 2 {
		t.Fatalf("active after undo = %+v", active)
	}

	latest := decode[models.Order](t, doJSON(t, h, http.MethodGet, "/api/orders/latest", nil))
	if latest.ID != "s1" {
		t.Errorf("latest = %s, want s1", latest.ID)
	}
}

type fakeHistory struct{}

func (fakeHistory) History(ctx context.Context, sessionID string, limit int) ([]models.Order, error) {
	if sessionID == "broken" {
		return nil, errors.New("archive offline")
	}
	return []models.Order{{ID: sessionID, OrderNumber: limit}}, nil
}

type fakeAudit struct{}

func (fakeAudit) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error) {
	return []*repository.AuditLog{{ID: "a1", EntityID: entityID, Action: "order:new"}}, nil
}

func TestHistoryRoutes(t *testing.T) {
	g, _ := newTestGateway(t, nil, WithHistory(fakeHistory{}), WithAudit(fakeAudit{}))
	h := g.Handler()

	hist := decode[[]models.Order](t, doJSON(t, h, http.MethodGet, "/api/orders/s1/history?limit=5", nil))
	if len(hist) != 1 || hist[0].OrderNumber != 5 {
		t.Errorf("history = %+v", hist)
	}
	if w := doJSON(t, h, http.MethodGet, "/api/orders/broken/history", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("broken history = %d", w.Code)
	}
	logs := decode[[]repository.AuditLog](t, doJSON(t, h, http.MethodGet, "/api/orders/s1/audit", nil))
	if len(logs) != 1 || logs[0].EntityID != "s1" {
		t.Errorf("audit = %+v", logs)
	}
}

func TestHistoryRoutesDisabled(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	if w := doJSON(t, g.Handler(), http.MethodGet, "/api/orders/s1/history", nil); w.Code != http.StatusNotFound {
		t.Errorf("history without archive = %d, want 404", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", orders.ErrNotFound), http.StatusNotFound},
		{board.ErrNothingToUndo, http.StatusNotFound},
		{orders.ErrDuplicateSession, http.StatusConflict},
		{orders.ErrIllegalTransition, http.StatusConflict},
		{orders.ErrInvalidSession, http.StatusBadRequest},
		{orders.ErrInvalidStatus, http.StatusUnprocessableEntity},
		{orders.ErrRejectedState, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: timeout", board.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCORS(t *testing.T) {
	g, _ := newTestGateway(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://kds.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	g.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
