package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/services"
	"github.com/desertthunder/kbx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers   = 4
	MaxWorkers       = 16
	DefaultRateLimit = 20.0
)

// BoardData is everything needed to render a selected board.
type BoardData struct {
	BoardID string
	Lists   []models.List // Ordered by position
	Cards   []models.Card // Ordered by position within each list
}

// WriteFailure records a single rejected positional write.
type WriteFailure struct {
	Kind models.Table
	ID   string
	Err  error
}

// WriteResult summarizes a bulk positional write.
type WriteResult struct {
	Total    int
	Written  int
	Failures []WriteFailure
}

// Failed reports whether any write was rejected or skipped.
func (r *WriteResult) Failed() bool {
	return len(r.Failures) > 0 || r.Written < r.Total
}

// positionJob is one row whose position (and, for cards, parent) is written.
type positionJob struct {
	kind     models.Table
	id       string
	parentID string
	position int
}

// SendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func SendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Loader performs the read side of board synchronization.
type Loader struct {
	reader services.Reader
	logger *log.Logger
}

// NewLoader creates a Loader over the given reader.
func NewLoader(reader services.Reader, logger *log.Logger) *Loader {
	return &Loader{reader: reader, logger: logger}
}

// Boards fetches the current user's boards.
func (l *Loader) Boards(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Board, error) {
	if l.reader == nil {
		return nil, fmt.Errorf("%w: reader not initialized", shared.ErrServiceUnavailable)
	}
	SendProgress(progress, fetchingBoardsUpdate())

	boards, err := l.reader.ListBoards(ctx)
	if err != nil {
		l.logger.Error("failed to fetch boards", "error", err)
		return nil, fmt.Errorf("failed to fetch boards: %w", err)
	}

	SendProgress(progress, fetchedBoardsUpdate(boards))
	return boards, nil
}

// BoardData fetches the lists of a board and the cards of those lists.
func (l *Loader) BoardData(ctx context.Context, progress chan<- ProgressUpdate, boardID string) (*BoardData, error) {
	if l.reader == nil {
		return nil, fmt.Errorf("%w: reader not initialized", shared.ErrServiceUnavailable)
	}
	if boardID == "" {
		return nil, fmt.Errorf("%w: board id", shared.ErrMissingArgument)
	}

	SendProgress(progress, fetchingListsUpdate(boardID))
	lists, err := l.reader.ListLists(ctx, boardID)
	if err != nil {
		l.logger.Error("failed to fetch lists", "board", boardID, "error", err)
		return nil, fmt.Errorf("failed to fetch lists: %w", err)
	}

	data := &BoardData{BoardID: boardID, Lists: lists, Cards: []models.Card{}}
	if len(lists) == 0 {
		return data, nil
	}

	ids := make([]string, len(lists))
	for i, list := range lists {
		ids[i] = list.ID
	}

	SendProgress(progress, fetchingCardsUpdate(len(ids)))
	cards, err := l.reader.ListCards(ctx, ids)
	if err != nil {
		l.logger.Error("failed to fetch cards", "board", boardID, "error", err)
		return nil, fmt.Errorf("failed to fetch cards: %w", err)
	}
	data.Cards = cards

	l.logger.Debug("loaded board", "board", boardID, "lists", len(lists), "cards", len(cards))
	return data, nil
}

// PositionWriter persists positions one row per write, concurrently,
// with the request rate bounded by a token bucket.
type PositionWriter struct {
	writer  services.Writer
	workers int
	limit   rate.Limit
	logger  *log.Logger
}

// NewPositionWriter creates a PositionWriter. Non-positive workers or
// perSecond fall back to the defaults.
func NewPositionWriter(writer services.Writer, workers int, perSecond float64, logger *log.Logger) *PositionWriter {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	if perSecond <= 0 {
		perSecond = DefaultRateLimit
	}
	return &PositionWriter{
		writer:  writer,
		workers: workers,
		limit:   rate.Limit(perSecond),
		logger:  logger,
	}
}

// WriteCards writes list_id and position of every card.
func (w *PositionWriter) WriteCards(ctx context.Context, progress chan<- ProgressUpdate, cards []models.Card) (*WriteResult, error) {
	jobs := make([]positionJob, len(cards))
	for i, c := range cards {
		jobs[i] = positionJob{kind: models.TableCards, id: c.ID, parentID: c.ListID, position: c.Position}
	}
	return w.run(ctx, progress, jobs)
}

// WriteLists writes the position of every list.
func (w *PositionWriter) WriteLists(ctx context.Context, progress chan<- ProgressUpdate, lists []models.List) (*WriteResult, error) {
	jobs := make([]positionJob, len(lists))
	for i, l := range lists {
		jobs[i] = positionJob{kind: models.TableLists, id: l.ID, parentID: l.BoardID, position: l.Position}
	}
	return w.run(ctx, progress, jobs)
}

// run fans jobs out to a worker pool. Every job is attempted; the returned
// error wraps [shared.ErrPartialWrite] when any of them failed.
func (w *PositionWriter) run(ctx context.Context, progress chan<- ProgressUpdate, jobs []positionJob) (*WriteResult, error) {
	if w.writer == nil {
		return nil, fmt.Errorf("%w: writer not initialized", shared.ErrServiceUnavailable)
	}

	result := &WriteResult{Total: len(jobs)}
	if len(jobs) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(w.limit, 1)
	queue := make(chan positionJob, len(jobs))
	failures := make(chan WriteFailure, len(jobs))
	done := make(chan positionJob, len(jobs))

	var wg sync.WaitGroup
	for range min(w.workers, len(jobs)) {
		wg.Add(1)
		go w.worker(ctx, &wg, limiter, queue, done, failures)
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	go func() {
		wg.Wait()
		close(done)
		close(failures)
	}()

	completed := 0
	for job := range done {
		completed++
		result.Written++
		SendProgress(progress, positionWrittenUpdate(completed, len(jobs), job.kind, job.id))
	}
	for f := range failures {
		completed++
		result.Failures = append(result.Failures, f)
		SendProgress(progress, positionFailedUpdate(completed, len(jobs), f.Kind, f.ID, f.Err))
	}

	if result.Failed() {
		w.logger.Warn("positional writes failed", "failed", len(result.Failures), "total", result.Total)
		first := "skipped"
		if len(result.Failures) > 0 {
			first = result.Failures[0].Err.Error()
		}
		return result, fmt.Errorf("%w: %d of %d writes failed: %s",
			shared.ErrPartialWrite, result.Total-result.Written, result.Total, first)
	}
	return result, nil
}

// worker drains the queue, waiting on the shared limiter before every write.
func (w *PositionWriter) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	queue <-chan positionJob,
	done chan<- positionJob,
	failures chan<- WriteFailure,
) {
	defer wg.Done()

	for job := range queue {
		if err := limiter.Wait(ctx); err != nil {
			failures <- WriteFailure{Kind: job.kind, ID: job.id, Err: err}
			continue
		}
		if err := w.write(ctx, job); err != nil {
			w.logger.Debug("position write rejected", "kind", job.kind, "id", job.id, "error", err)
			failures <- WriteFailure{Kind: job.kind, ID: job.id, Err: err}
			continue
		}
		done <- job
	}
}

func (w *PositionWriter) write(ctx context.Context, job positionJob) error {
	switch job.kind {
	case models.TableCards:
		_, err := w.writer.UpdateCard(ctx, job.id, models.Move(job.parentID, job.position))
		return err
	case models.TableLists:
		position := job.position
		_, err := w.writer.UpdateList(ctx, job.id, models.ListPatch{Position: &position})
		return err
	default:
		return fmt.Errorf("%w: no positional writes for %s", shared.ErrInvalidArgument, job.kind)
	}
}
