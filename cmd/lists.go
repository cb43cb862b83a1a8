package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/urfave/cli/v3"
)

// ListAdd appends a list to a board.
func (r *Runner) ListAdd(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	return r.withBoard(ctx, cmd.StringArg("board"), func(run *boardRun) error {
		run.Coordinator.CreateList(title)
		if err := run.settle(); err != nil {
			return err
		}
		st := run.Store.Snapshot()
		last := st.Lists[len(st.Lists)-1]
		return r.writePlain("✓ Added list %q to %q (%s)\n", last.Row.Title, run.board.Title, last.ID())
	})
}

// ListRename changes a list's title.
func (r *Runner) ListRename(ctx context.Context, cmd *cli.Command) error {
	title := cmd.StringArg("title")
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	return r.withBoard(ctx, cmd.StringArg("board"), func(run *boardRun) error {
		l, err := findList(run.Store.Snapshot(), cmd.StringArg("list"))
		if err != nil {
			return err
		}
		run.Coordinator.UpdateList(l.ID(), models.ListPatch{Title: &title})
		if err := run.settle(); err != nil {
			return err
		}
		return r.writePlain("✓ Renamed list %q to %q\n", l.Row.Title, title)
	})
}

// ListRemove deletes a list and its cards. Later lists close the gap.
func (r *Runner) ListRemove(ctx context.Context, cmd *cli.Command) error {
	return r.withBoard(ctx, cmd.StringArg("board"), func(run *boardRun) error {
		st := run.Store.Snapshot()
		l, err := findList(st, cmd.StringArg("list"))
		if err != nil {
			return err
		}
		cards := len(st.ListCards(l.ID()))
		run.Coordinator.DeleteList(l.ID())
		if err := run.settle(); err != nil {
			return err
		}
		return r.writePlain("✓ Deleted list %q and %d cards\n", l.Row.Title, cards)
	})
}

// ListMove moves a list to a zero-based position on its board.
func (r *Runner) ListMove(ctx context.Context, cmd *cli.Command) error {
	return r.withBoard(ctx, cmd.StringArg("board"), func(run *boardRun) error {
		st := run.Store.Snapshot()
		l, err := findList(st, cmd.StringArg("list"))
		if err != nil {
			return err
		}
		index, err := parseIndex(cmd.StringArg("position"), len(st.Lists)-1)
		if err != nil {
			return err
		}
		run.Coordinator.MoveList(l.ID(), index)
		if err := run.settle(); err != nil {
			return err
		}
		after := run.Store.Snapshot()
		return r.writePlain("✓ Moved list %q to position %d\n", l.Row.Title, after.ListIndex(l.ID()))
	})
}
