package repository

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeJSONStore struct {
	values map[string][]byte
	ttls   map[string]time.Duration
}

func newFakeJSONStore() *fakeJSONStore {
	return &fakeJSONStore{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeJSONStore) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = data
	f.ttls[key] = expiration
	return nil
}

func (f *fakeJSONStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, ok := f.values[key]
	if !ok {
		return errors.New("redis: nil")
	}
	return json.Unmarshal(data, dest)
}

func (f *fakeJSONStore) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func sampleOrder(id string, number int) models.Order {
	size := "large"
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return models.Order{
		ID:          id,
		OrderNumber: number,
		Items: []models.LineItem{
			{Name: "Cheeseburger", Quantity: 2, UnitPrice: 6.49, Modifiers: []string{"no onions"}},
			{Name: "Fries", Quantity: 1, UnitPrice: 3.49, Size: &size},
		},
		Total:              16.47,
		ConversationStatus: models.ConversationComplete,
		KitchenStatus:      models.KitchenReady,
		CreatedAt:          at,
		UpdatedAt:          at.Add(time.Minute),
		CompletedAt:        &at,
	}
}

func TestOrderMirror(t *testing.T) {
	ctx := context.Background()
	store := newFakeJSONStore()
	mirror := NewOrderMirror(store, time.Hour)

	s1 := sampleOrder("s1", 1)
	s2 := sampleOrder("s2", 2)

	steps := []board.Event{
		{Type: board.EventInit, Seq: 4, Orders: []models.Order{s1}},
		{Type: board.EventNew, Seq: 5, Order: &s2},
		{Type: board.EventDelete, Seq: 6, ID: "s1"},
	}
	for _, ev := range steps {
		if err := mirror.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("HandleEvent(%s) error = %v", ev.Type, err)
		}
	}

	if _, err := mirror.Lookup(ctx, "s1"); err == nil {
		t.Error("deleted order still mirrored")
	}
	got, err := mirror.Lookup(ctx, "s2")
	if err != nil {
		t.Fatalf("Lookup(s2) error = %v", err)
	}
	if got.OrderNumber != 2 || len(got.Items) != 2 || got.Items[1].Size == nil || *got.Items[1].Size != "large" {
		t.Errorf("mirrored order = %+v", got)
	}
	if store.ttls[OrderKey("s2")] != time.Hour {
		t.Errorf("ttl = %s, want 1h", store.ttls[OrderKey("s2")])
	}
	if string(store.values[seqKey]) != "6" {
		t.Errorf("seq = %s, want 6", store.values[seqKey])
	}
}

type fakeAuditWriter struct {
	logs []*AuditLog
}

func (f *fakeAuditWriter) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	writer := &fakeAuditWriter{}
	trail := NewAuditTrail(writer, "kiosk")
	order := sampleOrder("s1", 3)
	at := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)

	events := []board.Event{
		{Type: board.EventInit, Seq: 0},
		{Type: board.EventUpdate, Seq: 1, OccurredAt: at, Order: &order},
		{Type: board.EventDelete, Seq: 2, OccurredAt: at, ID: "s1"},
	}
	for _, ev := range events {
		if err := trail.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("HandleEvent(%s) error = %v", ev.Type, err)
		}
	}
	if err := trail.Archive(ctx, order, "undo window expired"); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	if len(writer.logs) != 3 {
		t.Fatalf("audit entries = %d, want 3", len(writer.logs))
	}
	update := writer.logs[0]
	if update.Action != "order:update" || update.EntityID != "s1" || update.Seq != 1 || !update.CreatedAt.Equal(at) {
		t.Errorf("update entry = %+v", update)
	}
	if update.Data["order_number"] != 3 || update.Data["kitchen_status"] != "ready" {
		t.Errorf("update data = %v", update.Data)
	}
	items, ok := update.Data["items"].(bson.A)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v", update.Data["items"])
	}
	if _, ok := items[0].(bson.M)["modifiers"]; !ok {
		t.Error("modifiers missing from audit item")
	}

	if del := writer.logs[1]; del.Action != "order:delete" || del.Data != nil {
		t.Errorf("delete entry = %+v", del)
	}
	if arch := writer.logs[2]; arch.Action != "order:archive" || arch.Data["reason"] != "undo window expired" {
		t.Errorf("archive entry = %+v", arch)
	}
	if writer.logs[0].ID == writer.logs[1].ID {
		t.Error("audit ids not unique")
	}
}

func TestArchivedRoundTrip(t *testing.T) {
	order := sampleOrder("s1", 9)
	at := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

	row, err := toArchived(order, "retention expired", at)
	if err != nil {
		t.Fatalf("toArchived() error = %v", err)
	}
	if row.SessionID != "s1" || row.Reason != "retention expired" || !row.ArchivedAt.Equal(at) {
		t.Errorf("row = %+v", row)
	}

	back, err := fromArchived(row)
	if err != nil {
		t.Fatalf("fromArchived() error = %v", err)
	}
	if !reflect.DeepEqual(back, order) {
		t.Errorf("round trip = %+v, want %+v", back, order)
	}
}

func TestArchivedEmptyItems(t *testing.T) {
	row, err := toArchived(models.Order{ID: "s2"}, "session restarted", time.Now())
	if err != nil {
		t.Fatalf("toArchived() error = %v", err)
	}
	if row.Items != "[]" {
		t.Errorf("items = %s, want []", row.Items)
	}
	if _, err := fromArchived(&models.ArchivedOrder{SessionID: "bad", Items: "{"}); err == nil {
		t.Error("fromArchived accepted corrupt items")
	}
}
