// Package session wires the board engine together: the store, the mutation
// coordinator, the drag controller and the live change feeds of the selected board.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kbx/internal/coordinator"
	"github.com/desertthunder/kbx/internal/drag"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/notify"
	"github.com/desertthunder/kbx/internal/reconciler"
	"github.com/desertthunder/kbx/internal/services"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/desertthunder/kbx/internal/store"
	"github.com/desertthunder/kbx/internal/tasks"
	"golang.org/x/time/rate"
)

// Options tunes a [Session].
type Options struct {
	UserID          string
	Resubscribe     bool          // reopen dropped feeds and reload the board
	Backoff         time.Duration // minimum spacing between resubscribe attempts
	RestoreOnCancel bool          // abandoned drags put the old order back
	Workers         int
	RateLimit       float64
	Progress        chan<- tasks.ProgressUpdate
}

// OptionsFromConfig maps configuration onto session options.
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		UserID:          cfg.User.ID,
		Resubscribe:     cfg.Realtime.Resubscribe,
		Backoff:         cfg.Realtime.Backoff,
		RestoreOnCancel: cfg.Drag.RestoreOnCancel,
		Workers:         cfg.Writes.Workers,
		RateLimit:       cfg.Writes.RateLimit,
	}
}

// Session is one user's view of their boards.
type Session struct {
	Store       *store.Store
	Coordinator *coordinator.Coordinator
	Drag        *drag.Controller

	backend    services.Backend
	reconciler *reconciler.Reconciler
	loader     *tasks.Loader
	notifier   notify.Notifier
	opts       Options
	logger     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	stopBoard  context.CancelFunc
	stopBoards context.CancelFunc
}

// New creates a session over backend. Nothing is fetched until [Session.Start].
func New(backend services.Backend, notifier notify.Notifier, opts Options, logger *log.Logger) *Session {
	if notifier == nil {
		notifier = notify.Logger{L: logger}
	}
	st := store.New()
	positions := tasks.NewPositionWriter(backend, opts.Workers, opts.RateLimit, shared.WithLogger(logger, "component", "positions"))
	coord := coordinator.New(st, backend, positions, notifier, shared.WithLogger(logger, "component", "coordinator"))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Store:       st,
		Coordinator: coord,
		Drag:        drag.New(st, coord, opts.RestoreOnCancel, shared.WithLogger(logger, "component", "drag")),
		backend:     backend,
		reconciler:  reconciler.New(st, shared.WithLogger(logger, "component", "reconciler")),
		loader:      tasks.NewLoader(backend, logger),
		notifier:    notifier,
		opts:        opts,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}

	coord.OnResync(func(ctx context.Context) {
		if err := s.reloadSelected(ctx); err == nil {
			s.notifier.Notify(notify.Infof("Board reloaded"))
		}
	})
	coord.OnBoardCreated(func(ctx context.Context, b models.Board) {
		_ = s.SelectBoard(ctx, b.ID)
	})
	return s
}

// Start fetches the user's boards and follows changes to them.
func (s *Session) Start(ctx context.Context) error {
	topic := models.Topic{Table: models.TableBoards, ParentID: s.opts.UserID}
	watchCtx, stop := context.WithCancel(s.ctx)
	sub := s.subscribe(watchCtx, topic)

	if err := s.loadBoards(ctx); err != nil {
		stop()
		closeSub(sub)
		return err
	}

	s.mu.Lock()
	if s.stopBoards != nil {
		s.stopBoards()
	}
	s.stopBoards = stop
	s.mu.Unlock()

	s.watch(watchCtx, topic, sub)
	return nil
}

// SelectBoard loads a board's lists and cards and follows changes to them.
// On a failed read the previous selection stays in place.
func (s *Session) SelectBoard(ctx context.Context, boardID string) error {
	if _, ok := s.Store.Snapshot().Board(boardID); !ok {
		err := fmt.Errorf("%w: %s", shared.ErrBoardNotFound, boardID)
		s.notifier.Notify(notify.Failed(err, "Cannot open board"))
		return err
	}
	s.Drag.Cancel()

	listsTopic := models.Topic{Table: models.TableLists, ParentID: boardID}
	cardsTopic := models.Topic{Table: models.TableCards}
	watchCtx, stop := context.WithCancel(s.ctx)
	listsSub := s.subscribe(watchCtx, listsTopic)
	cardsSub := s.subscribe(watchCtx, cardsTopic)

	data, err := s.loader.BoardData(ctx, s.opts.Progress, boardID)
	if err != nil {
		stop()
		closeSub(listsSub)
		closeSub(cardsSub)
		s.notifier.Notify(notify.Failed(err, "Failed to load board"))
		return err
	}

	s.mu.Lock()
	if s.stopBoard != nil {
		s.stopBoard()
	}
	s.stopBoard = stop
	s.mu.Unlock()

	s.Store.Update(func(st *store.State) {
		st.Select(boardID)
		st.Load(data.Lists, data.Cards)
	})
	s.logger.Info("board selected", "board", boardID, "lists", len(data.Lists), "cards", len(data.Cards))

	s.watch(watchCtx, listsTopic, listsSub)
	s.watch(watchCtx, cardsTopic, cardsSub)
	return nil
}

// Refresh reloads the boards and the selected board.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.loadBoards(ctx); err != nil {
		return err
	}
	return s.reloadSelected(ctx)
}

// Search filters the visible cards by title and description.
func (s *Session) Search(query string) {
	s.Store.Update(func(st *store.State) {
		st.Query = strings.TrimSpace(query)
	})
}

// Close stops the live feeds and waits for in-flight writes.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
	s.Coordinator.Wait()
}

func (s *Session) loadBoards(ctx context.Context) error {
	boards, err := s.loader.Boards(ctx, s.opts.Progress)
	if err != nil {
		s.notifier.Notify(notify.Failed(err, "Failed to load boards"))
		return err
	}
	s.Store.Update(func(st *store.State) { st.SetBoards(boards) })
	return nil
}

// reloadSelected replaces the selected board's contents with a fresh read.
func (s *Session) reloadSelected(ctx context.Context) error {
	boardID := s.Store.Snapshot().Selected
	if boardID == "" {
		return nil
	}
	data, err := s.loader.BoardData(ctx, s.opts.Progress, boardID)
	if err != nil {
		s.notifier.Notify(notify.Failed(err, "Failed to reload board"))
		return err
	}
	s.Store.Update(func(st *store.State) {
		if st.Selected == boardID {
			st.Load(data.Lists, data.Cards)
		}
	})
	return nil
}

// subscribe opens a feed, logging failures. The watch loop retries a nil result.
func (s *Session) subscribe(ctx context.Context, topic models.Topic) models.Subscription {
	sub, err := s.backend.Subscribe(ctx, topic)
	if err != nil {
		s.logger.Warn("subscribe failed", "topic", topic, "error", err)
		return nil
	}
	return sub
}

func closeSub(sub models.Subscription) {
	if sub != nil {
		_ = sub.Close()
	}
}

// watch applies events from sub until ctx ends. A dropped feed is reopened at
// most once per backoff interval and followed by a full reload, unless
// resubscribing is disabled.
func (s *Session) watch(ctx context.Context, topic models.Topic, sub models.Subscription) {
	limiter := rate.NewLimiter(rate.Every(s.opts.Backoff), 1)
	_ = limiter.Allow()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for attempt := 0; ; attempt++ {
			if sub == nil && attempt > 0 {
				sub = s.subscribe(ctx, topic)
				if sub != nil {
					s.logger.Info("resubscribed", "topic", topic, "attempt", attempt)
					_ = s.Refresh(ctx)
				}
			}

			var err error
			if sub != nil {
				err = s.reconciler.Consume(ctx, sub)
				closeSub(sub)
				sub = nil
			} else {
				err = fmt.Errorf("%w: %s", shared.ErrSubscriptionClosed, topic)
			}
			if ctx.Err() != nil {
				return
			}

			s.logger.Warn("subscription dropped", "topic", topic, "error", err)
			if !s.opts.Resubscribe {
				s.notifier.Notify(notify.Failed(err, "Live updates stopped"))
				return
			}
			tasks.SendProgress(s.opts.Progress, tasks.ResubscribeUpdate(attempt+1, topic))
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}
	}()
}
