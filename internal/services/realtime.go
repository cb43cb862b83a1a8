package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

// RealtimePath is the websocket route serving change feeds.
const RealtimePath = "/api/realtime"

// TopicQuery encodes a topic as realtime query parameters.
func TopicQuery(topic models.Topic) url.Values {
	q := url.Values{}
	q.Set("table", string(topic.Table))
	if topic.ParentID != "" {
		q.Set("parent", topic.ParentID)
	}
	return q
}

// ParseTopicQuery is the inverse of [TopicQuery].
func ParseTopicQuery(q url.Values) (models.Topic, error) {
	topic := models.Topic{Table: models.Table(q.Get("table")), ParentID: q.Get("parent")}
	switch topic.Table {
	case models.TableBoards, models.TableLists, models.TableCards:
		return topic, nil
	default:
		return topic, fmt.Errorf("%w: unknown table %q", shared.ErrInvalidInput, topic.Table)
	}
}

// Subscribe dials the server's realtime websocket for topic.
func (c *Client) Subscribe(ctx context.Context, topic models.Topic) (models.Subscription, error) {
	u, err := url.Parse(c.baseURL + RealtimePath)
	if err != nil {
		return nil, fmt.Errorf("%w: realtime url: %v", shared.ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = TopicQuery(topic).Encode()

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Method: http.MethodGet, Path: RealtimePath, StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("%w: dial realtime: %v", shared.ErrAPIRequest, err)
	}

	c.logger.Debug("subscribed", "topic", topic)
	return newSocketSubscription(conn, c.logger.With("topic", topic.String())), nil
}

// socketSubscription adapts a websocket connection to [models.Subscription].
type socketSubscription struct {
	conn   *websocket.Conn
	events chan models.Event
	done   chan struct{}
	logger *log.Logger

	mu     sync.Mutex
	err    error
	closed bool
}

func newSocketSubscription(conn *websocket.Conn, logger *log.Logger) *socketSubscription {
	s := &socketSubscription{conn: conn, events: make(chan models.Event, 64), done: make(chan struct{}), logger: logger}
	go s.readPump()
	return s
}

func (s *socketSubscription) readPump() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = fmt.Errorf("%w: %v", shared.ErrSubscriptionClosed, err)
			}
			s.mu.Unlock()
			return
		}

		ev, err := models.ParseEvent(data)
		if err != nil {
			s.logger.Warn("skipping malformed event", "error", err)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *socketSubscription) Events() <-chan models.Event { return s.events }

func (s *socketSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *socketSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
	close(s.done)
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
