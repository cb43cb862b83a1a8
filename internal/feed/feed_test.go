package feed

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

func newHub(buffer int) *Hub {
	return NewHub(buffer, log.New(io.Discard))
}

func TestHub(t *testing.T) {
	t.Run("delivers matching events only", func(t *testing.T) {
		h := newHub(4)
		sub, err := h.Subscribe(context.Background(), models.Topic{Table: models.TableLists, ParentID: "b1"})
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}

		h.Publish(models.Inserted[models.List]{Row: models.List{ID: "l1", BoardID: "b1"}})
		h.Publish(models.Inserted[models.List]{Row: models.List{ID: "l2", BoardID: "b2"}})
		h.Publish(models.Inserted[models.Card]{Row: models.Card{ID: "c1", ListID: "l1"}})

		if got := len(sub.Events()); got != 1 {
			t.Fatalf("expected 1 queued event, got %d", got)
		}
		if ev := <-sub.Events(); ev.EntityID() != "l1" {
			t.Errorf("unexpected event %#v", ev)
		}
	})

	t.Run("drops slow subscribers", func(t *testing.T) {
		h := newHub(1)
		slow, _ := h.Subscribe(context.Background(), models.Topic{Table: models.TableCards})
		fast, _ := h.Subscribe(context.Background(), models.Topic{Table: models.TableCards})

		h.Publish(models.Deleted[models.Card]{ID: "c1"})
		<-fast.Events()
		h.Publish(models.Deleted[models.Card]{ID: "c2"})

		<-slow.Events()
		if _, ok := <-slow.Events(); ok {
			t.Fatal("expected slow subscriber channel to be closed")
		}
		if !errors.Is(slow.Err(), shared.ErrSubscriptionClosed) {
			t.Errorf("expected ErrSubscriptionClosed, got %v", slow.Err())
		}
		if fast.Err() != nil || h.Len() != 1 {
			t.Errorf("fast subscriber should stay registered, len=%d err=%v", h.Len(), fast.Err())
		}
	})

	t.Run("Close is clean and idempotent", func(t *testing.T) {
		h := newHub(1)
		sub, _ := h.Subscribe(context.Background(), models.Topic{Table: models.TableBoards})
		sub.Close()
		sub.Close()

		if _, ok := <-sub.Events(); ok {
			t.Error("expected closed channel")
		}
		if sub.Err() != nil {
			t.Errorf("expected nil error after Close, got %v", sub.Err())
		}
		if h.Len() != 0 {
			t.Errorf("expected no subscribers, got %d", h.Len())
		}
		h.Publish(models.Deleted[models.Board]{ID: "b1"})
	})

	t.Run("context cancellation ends subscription", func(t *testing.T) {
		h := newHub(1)
		ctx, cancel := context.WithCancel(context.Background())
		sub, _ := h.Subscribe(ctx, models.Topic{Table: models.TableBoards})
		cancel()

		select {
		case _, ok := <-sub.Events():
			if ok {
				t.Fatal("expected closed channel")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for cancellation")
		}
		if !errors.Is(sub.Err(), context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", sub.Err())
		}
	})

	t.Run("Subscribe with done context fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := newHub(1).Subscribe(ctx, models.Topic{Table: models.TableBoards}); err == nil {
			t.Error("expected error for cancelled context")
		}
	})

	t.Run("owner scoped subscribers", func(t *testing.T) {
		h := newHub(4)
		mine, _ := h.SubscribeAs(context.Background(), "u1", models.Topic{Table: models.TableCards})
		all, _ := h.Subscribe(context.Background(), models.Topic{Table: models.TableCards})

		h.PublishAs("u2", models.Inserted[models.Card]{Row: models.Card{ID: "c1", ListID: "l1"}})
		h.PublishAs("u1", models.Inserted[models.Card]{Row: models.Card{ID: "c2", ListID: "l2"}})
		h.Publish(models.Inserted[models.Card]{Row: models.Card{ID: "c3", ListID: "l3"}})

		if got := <-mine.Events(); got.EntityID() != "c2" {
			t.Errorf("expected c2, got %s", got.EntityID())
		}
		select {
		case ev := <-mine.Events():
			t.Errorf("unexpected event %s for u1", ev.EntityID())
		default:
		}
		for _, want := range []string{"c1", "c2", "c3"} {
			if got := <-all.Events(); got.EntityID() != want {
				t.Errorf("expected %s, got %s", want, got.EntityID())
			}
		}
	})

	t.Run("hub Close ends everything", func(t *testing.T) {
		h := newHub(1)
		a, _ := h.Subscribe(context.Background(), models.Topic{Table: models.TableBoards})
		b, _ := h.Subscribe(context.Background(), models.Topic{Table: models.TableCards})
		h.Close()
		for _, s := range []models.Subscription{a, b} {
			if _, ok := <-s.Events(); ok || !errors.Is(s.Err(), shared.ErrSubscriptionClosed) {
				t.Errorf("expected ended subscription, err=%v", s.Err())
			}
		}
	})
}
