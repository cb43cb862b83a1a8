// HTTP implementation of [Backend] for a remote kbx server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Is lets callers match on the shared sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case shared.ErrAPIRequest:
		return true
	case shared.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case shared.ErrNotAuthenticated:
		return e.StatusCode == http.StatusUnauthorized
	case shared.ErrInvalidInput:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

// errorBody is the JSON shape of server errors.
type errorBody struct {
	Error string `json:"error"`
}

// Client implements [Backend] against the kbx HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a client for baseURL. When token is set, requests carry it as a
// bearer token through an [oauth2.Transport] layered over base.
//
// base defaults to an [http.Client] with a 10 second timeout.
func NewClient(baseURL, token string, base *http.Client, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	if base == nil {
		base = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	httpClient := base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(ctx, src)
		httpClient.Timeout = base.Timeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
		logger:     shared.WithLogger(logger, "component", "client"),
	}
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Error
		}
		c.logger.Debug("request failed", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

func (c *Client) ListBoards(ctx context.Context) ([]models.Board, error) {
	var boards []models.Board
	err := c.do(ctx, http.MethodGet, "/api/boards", nil, &boards)
	return boards, err
}

func (c *Client) ListLists(ctx context.Context, boardID string) ([]models.List, error) {
	var lists []models.List
	err := c.do(ctx, http.MethodGet, "/api/boards/"+url.PathEscape(boardID)+"/lists", nil, &lists)
	return lists, err
}

func (c *Client) ListCards(ctx context.Context, listIDs []string) ([]models.Card, error) {
	if len(listIDs) == 0 {
		return []models.Card{}, nil
	}
	q := url.Values{}
	for _, id := range listIDs {
		q.Add("list_id", id)
	}
	var cards []models.Card
	err := c.do(ctx, http.MethodGet, "/api/cards?"+q.Encode(), nil, &cards)
	return cards, err
}

func (c *Client) InsertBoard(ctx context.Context, in models.NewBoard) (models.Board, error) {
	var b models.Board
	err := c.do(ctx, http.MethodPost, "/api/boards", in, &b)
	return b, err
}

func (c *Client) UpdateBoard(ctx context.Context, id string, patch models.BoardPatch) (models.Board, error) {
	var b models.Board
	err := c.do(ctx, http.MethodPatch, "/api/boards/"+url.PathEscape(id), patch, &b)
	return b, err
}

func (c *Client) DeleteBoard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/boards/"+url.PathEscape(id), nil, nil)
}

func (c *Client) InsertList(ctx context.Context, in models.NewList) (models.List, error) {
	var l models.List
	err := c.do(ctx, http.MethodPost, "/api/lists", in, &l)
	return l, err
}

func (c *Client) UpdateList(ctx context.Context, id string, patch models.ListPatch) (models.List, error) {
	var l models.List
	err := c.do(ctx, http.MethodPatch, "/api/lists/"+url.PathEscape(id), patch, &l)
	return l, err
}

func (c *Client) DeleteList(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/lists/"+url.PathEscape(id), nil, nil)
}

func (c *Client) InsertCard(ctx context.Context, in models.NewCard) (models.Card, error) {
	var card models.Card
	err := c.do(ctx, http.MethodPost, "/api/cards", in, &card)
	return card, err
}

func (c *Client) UpdateCard(ctx context.Context, id string, patch models.CardPatch) (models.Card, error) {
	var card models.Card
	err := c.do(ctx, http.MethodPatch, "/api/cards/"+url.PathEscape(id), patch, &card)
	return card, err
}

func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/cards/"+url.PathEscape(id), nil, nil)
}
