package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/models"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, msg []byte) error {
	f.msgs = append(f.msgs, published{subject: subject, data: msg})
	return nil
}

func TestBoardPublisher(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	sink := NewBoardPublisher(pub, "kiosk.orders.")
	order := models.Order{ID: "s1", OrderNumber: 4, Items: []models.LineItem{}}

	events := []board.Event{
		{Type: board.EventInit, Orders: []models.Order{order}},
		{Type: board.EventNew, Seq: 1, Order: &order},
		{Type: board.EventUpdate, Seq: 2, Order: &order},
		{Type: board.EventDelete, Seq: 3, ID: "s1"},
	}
	for _, ev := range events {
		if err := sink.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("HandleEvent(%s) error = %v", ev.Type, err)
		}
	}

	want := []string{"kiosk.orders.new", "kiosk.orders.update", "kiosk.orders.delete"}
	if len(pub.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(pub.msgs), len(want))
	}
	for i, subject := range want {
		if pub.msgs[i].subject != subject {
			t.Errorf("message %d subject = %s, want %s", i, pub.msgs[i].subject, subject)
		}
	}

	var decoded struct {
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(pub.msgs[2].data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != "order:delete" || decoded.Seq != 3 || decoded.ID != "s1" {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestSubjects(t *testing.T) {
	if got := Subject("kiosk.orders", board.EventUpdate); got != "kiosk.orders.update" {
		t.Errorf("Subject() = %s", got)
	}
	if got := Wildcard("kiosk.orders."); got != "kiosk.orders.*" {
		t.Errorf("Wildcard() = %s", got)
	}
}
