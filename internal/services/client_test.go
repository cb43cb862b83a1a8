package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
	tu "github.com/desertthunder/kbx/internal/testing"
)

func TestClient(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			c := NewClient("", "", nil, nil)
			if c.baseURL != "http://127.0.0.1:3000" {
				t.Errorf("expected default baseURL, got %s", c.baseURL)
			}
			if c.httpClient.Timeout != defaultTimeout {
				t.Errorf("expected default timeout, got %v", c.httpClient.Timeout)
			}
		})

		t.Run("Trims trailing slash", func(t *testing.T) {
			c := NewClient("http://kbx.example/", "", nil, nil)
			if c.baseURL != "http://kbx.example" {
				t.Errorf("unexpected baseURL %s", c.baseURL)
			}
		})
	})

	t.Run("Sends bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
				t.Errorf("expected bearer token, got %q", got)
			}
			if r.URL.Path != "/api/boards" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode([]models.Board{{ID: "b1", Title: "Board", UserID: "u1"}})
		}))
		defer server.Close()

		c := NewClient(server.URL, "secret-token", nil, tu.DiscardLogger())
		boards, err := c.ListBoards(context.Background())
		if err != nil {
			t.Fatalf("ListBoards() error = %v", err)
		}
		if len(boards) != 1 || boards[0].ID != "b1" {
			t.Errorf("unexpected boards %+v", boards)
		}
	})

	t.Run("ListCards encodes list ids", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ids := r.URL.Query()["list_id"]
			if !slices.Equal(ids, []string{"l1", "l2"}) {
				t.Errorf("unexpected list ids %v", ids)
			}
			json.NewEncoder(w).Encode([]models.Card{{ID: "c1", ListID: "l1"}})
		}))
		defer server.Close()

		c := NewClient(server.URL, "", nil, tu.DiscardLogger())
		cards, err := c.ListCards(context.Background(), []string{"l1", "l2"})
		if err != nil || len(cards) != 1 {
			t.Fatalf("ListCards() = %v, %v", cards, err)
		}

		empty, err := c.ListCards(context.Background(), nil)
		if err != nil || len(empty) != 0 {
			t.Errorf("expected no request for no lists, got %v, %v", empty, err)
		}
	})

	t.Run("UpdateCard sends partial patch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPatch || r.URL.Path != "/api/cards/c1" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"list_id":"l2","position":0}` {
				t.Errorf("unexpected body %s", body)
			}
			json.NewEncoder(w).Encode(models.Card{ID: "c1", ListID: "l2"})
		}))
		defer server.Close()

		c := NewClient(server.URL, "", nil, tu.DiscardLogger())
		card, err := c.UpdateCard(context.Background(), "c1", models.Move("l2", 0))
		if err != nil || card.ListID != "l2" {
			t.Errorf("UpdateCard() = %+v, %v", card, err)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		tc := []struct {
			name   string
			status int
			target error
		}{
			{name: "not found", status: http.StatusNotFound, target: shared.ErrNotFound},
			{name: "unauthorized", status: http.StatusUnauthorized, target: shared.ErrNotAuthenticated},
			{name: "bad request", status: http.StatusBadRequest, target: shared.ErrInvalidInput},
			{name: "server error", status: http.StatusInternalServerError, target: shared.ErrAPIRequest},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
				}))
				defer server.Close()

				c := NewClient(server.URL, "", nil, tu.DiscardLogger())
				err := c.DeleteList(context.Background(), "l1")
				if !errors.Is(err, tt.target) || !errors.Is(err, shared.ErrAPIRequest) {
					t.Errorf("expected %v, got %v", tt.target, err)
				}

				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
					t.Errorf("expected APIError with message, got %v", err)
				}
			})
		}

		t.Run("transport failure", func(t *testing.T) {
			base := &http.Client{Transport: tu.NewRoundTripper(nil, errors.New("connection refused"))}
			c := NewClient("http://kbx.invalid", "", base, tu.DiscardLogger())
			if _, err := c.ListBoards(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("malformed body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			}))
			defer server.Close()

			c := NewClient(server.URL, "", nil, tu.DiscardLogger())
			if _, err := c.ListBoards(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})
}

func TestRealtime(t *testing.T) {
	t.Run("TopicQuery", func(t *testing.T) {
		topic := models.Topic{Table: models.TableLists, ParentID: "b1"}
		back, err := ParseTopicQuery(TopicQuery(topic))
		if err != nil || back != topic {
			t.Errorf("ParseTopicQuery() = %+v, %v", back, err)
		}

		q := TopicQuery(topic)
		q.Set("table", "widgets")
		if _, err := ParseTopicQuery(q); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Subscribe streams events and reports drops", func(t *testing.T) {
		upgrader := websocket.Upgrader{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != RealtimePath || r.URL.Query().Get("table") != "cards" {
				t.Errorf("unexpected realtime request %s", r.URL)
			}
			if r.Header.Get("Authorization") != "Bearer tok" {
				t.Errorf("missing bearer token on websocket upgrade")
			}
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				t.Errorf("upgrade: %v", err)
				return
			}
			defer conn.Close()

			data, _ := models.EncodeEvent(models.Inserted[models.Card]{Row: models.Card{ID: "c1", Title: "Card", ListID: "l1"}})
			conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
			conn.WriteMessage(websocket.TextMessage, data)
		}))
		defer server.Close()

		c := NewClient(server.URL, "tok", nil, tu.DiscardLogger())
		sub, err := c.Subscribe(context.Background(), models.Topic{Table: models.TableCards})
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		defer sub.Close()

		select {
		case ev := <-sub.Events():
			if ev.EntityID() != "c1" || ev.Op() != models.OpInsert {
				t.Errorf("unexpected event %#v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}

		select {
		case _, ok := <-sub.Events():
			if ok {
				t.Fatal("expected channel to close after server hangs up")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for close")
		}

		if !errors.Is(sub.Err(), shared.ErrSubscriptionClosed) {
			t.Errorf("expected ErrSubscriptionClosed, got %v", sub.Err())
		}
	})

	t.Run("Close ends subscription without error", func(t *testing.T) {
		upgrader := websocket.Upgrader{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer server.Close()

		c := NewClient(server.URL, "", nil, tu.DiscardLogger())
		sub, err := c.Subscribe(context.Background(), models.Topic{Table: models.TableBoards})
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if err := sub.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		for range sub.Events() {
		}
		if sub.Err() != nil {
			t.Errorf("expected nil Err after Close, got %v", sub.Err())
		}
		if err := sub.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})
}
