package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/repositories"
	"github.com/desertthunder/kbx/internal/shared"
)

const maxBodyBytes = 1 << 20

// API serves the REST endpoints of [services.Client].
type API struct {
	backend *repositories.Backend
	logger  *log.Logger
}

// NewAPI creates the REST handlers over backend.
func NewAPI(backend *repositories.Backend, logger *log.Logger) *API {
	return &API{backend: backend, logger: logger}
}

// Register adds every endpoint to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/api/boards", http.HandlerFunc(a.listBoards))
	r.Handle(http.MethodPost, "/api/boards", http.HandlerFunc(a.createBoard))
	r.Handle(http.MethodPatch, "/api/boards/{id}", http.HandlerFunc(a.updateBoard))
	r.Handle(http.MethodDelete, "/api/boards/{id}", http.HandlerFunc(a.deleteBoard))
	r.Handle(http.MethodGet, "/api/boards/{id}/lists", http.HandlerFunc(a.listLists))
	r.Handle(http.MethodGet, "/api/boards/{id}/search", http.HandlerFunc(a.searchCards))

	r.Handle(http.MethodPost, "/api/lists", http.HandlerFunc(a.createList))
	r.Handle(http.MethodPatch, "/api/lists/{id}", http.HandlerFunc(a.updateList))
	r.Handle(http.MethodDelete, "/api/lists/{id}", http.HandlerFunc(a.deleteList))

	r.Handle(http.MethodGet, "/api/cards", http.HandlerFunc(a.listCards))
	r.Handle(http.MethodPost, "/api/cards", http.HandlerFunc(a.createCard))
	r.Handle(http.MethodPatch, "/api/cards/{id}", http.HandlerFunc(a.updateCard))
	r.Handle(http.MethodDelete, "/api/cards/{id}", http.HandlerFunc(a.deleteCard))
}

// backendFor scopes the shared backend to the request's user.
func (a *API) backendFor(r *http.Request) *repositories.Backend {
	return a.backend.WithUser(UserFrom(r.Context()))
}

func (a *API) listBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := a.backendFor(r).ListBoards(r.Context())
	respond(w, a.logger, http.StatusOK, nonNil(boards), err)
}

func (a *API) createBoard(w http.ResponseWriter, r *http.Request) {
	var in models.NewBoard
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	board, err := a.backendFor(r).InsertBoard(r.Context(), in)
	respond(w, a.logger, http.StatusCreated, board, err)
}

func (a *API) updateBoard(w http.ResponseWriter, r *http.Request) {
	var patch models.BoardPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	board, err := a.backendFor(r).UpdateBoard(r.Context(), mux.Vars(r)["id"], patch)
	respond(w, a.logger, http.StatusOK, board, err)
}

func (a *API) deleteBoard(w http.ResponseWriter, r *http.Request) {
	err := a.backendFor(r).DeleteBoard(r.Context(), mux.Vars(r)["id"])
	respond(w, a.logger, http.StatusNoContent, nil, err)
}

func (a *API) listLists(w http.ResponseWriter, r *http.Request) {
	lists, err := a.backendFor(r).ListLists(r.Context(), mux.Vars(r)["id"])
	respond(w, a.logger, http.StatusOK, nonNil(lists), err)
}

func (a *API) searchCards(w http.ResponseWriter, r *http.Request) {
	be := a.backendFor(r)
	boardID := mux.Vars(r)["id"]
	if _, err := be.ListLists(r.Context(), boardID); err != nil {
		writeError(w, err)
		return
	}
	cards, err := be.Cards().Search(r.Context(), boardID, r.URL.Query().Get("q"))
	respond(w, a.logger, http.StatusOK, nonNil(cards), err)
}

func (a *API) createList(w http.ResponseWriter, r *http.Request) {
	var in models.NewList
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	list, err := a.backendFor(r).InsertList(r.Context(), in)
	respond(w, a.logger, http.StatusCreated, list, err)
}

func (a *API) updateList(w http.ResponseWriter, r *http.Request) {
	var patch models.ListPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	list, err := a.backendFor(r).UpdateList(r.Context(), mux.Vars(r)["id"], patch)
	respond(w, a.logger, http.StatusOK, list, err)
}

func (a *API) deleteList(w http.ResponseWriter, r *http.Request) {
	err := a.backendFor(r).DeleteList(r.Context(), mux.Vars(r)["id"])
	respond(w, a.logger, http.StatusNoContent, nil, err)
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
	cards, err := a.backendFor(r).ListCards(r.Context(), r.URL.Query()["list_id"])
	respond(w, a.logger, http.StatusOK, nonNil(cards), err)
}

func (a *API) createCard(w http.ResponseWriter, r *http.Request) {
	var in models.NewCard
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	card, err := a.backendFor(r).InsertCard(r.Context(), in)
	respond(w, a.logger, http.StatusCreated, card, err)
}

func (a *API) updateCard(w http.ResponseWriter, r *http.Request) {
	var patch models.CardPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}
	card, err := a.backendFor(r).UpdateCard(r.Context(), mux.Vars(r)["id"], patch)
	respond(w, a.logger, http.StatusOK, card, err)
}

func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) {
	err := a.backendFor(r).DeleteCard(r.Context(), mux.Vars(r)["id"])
	respond(w, a.logger, http.StatusNoContent, nil, err)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func respond(w http.ResponseWriter, logger *log.Logger, status int, v any, err error) {
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			logger.Error("request failed", "error", err)
		}
		writeError(w, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// nonNil keeps empty collections encoding as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
