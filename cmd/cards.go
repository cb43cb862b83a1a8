package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/urfave/cli/v3"
)

// CardAdd appends a card to a list.
func (r *Runner) CardAdd(ctx context.Context, cmd *cli.Command) error {
	title := strings.TrimSpace(cmd.StringArg("title"))
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}
	due, err := parseDue(cmd.String("due"))
	if err != nil {
		return err
	}

	return r.withBoard(ctx, cmd.StringArg("board"), func(run *boardRun) error {
		l, err := findList(run.Store.Snapshot(), cmd.StringArg("list"))
		if err != nil {
			return err
		}
		run.Coordinator.CreateCard(l.Identity, models.NewCard{
			Title:       title,
			Description: cmd.String("description"),
			DueDate:     due,
			Labels:      cmd.StringSlice("label"),
		})
		if err := run.settle(); err != nil {
			return err
		}
		cards := run.Store.Snapshot().ListCards(l.ID())
		last := cards[len(cards)-1]
		return r.writePlain("✓ Added card %q to %q (%s)\n", last.Row.Title, l.Row.Title, last.ID())
	})
}

// CardEdit changes the fields given as flags.
func (r *Runner) CardEdit(ctx context.Context, cmd *cli.Command) error {
	patch, err := cardPatch(cmd)
	if err != nil {
		return err
	}
	if patch.Empty() {
		return fmt.Errorf("%w: nothing to change, pass --title, --description, --due, --clear-due or --label", shared.ErrMissingArgument)
	}

	return r.withBoard(ctx, cmd.StringArg("board"), func(run *boardRun) error {
		c, err := findCard(run.Store.Snapshot(), cmd.StringArg("card"))
		if err != nil {
			return err
		}
		run.Coordinator.UpdateCard(c.ID(), patch)
		if err := run.settle(); err != nil {
			return err
		}
		updated, _ := run.Store.Snapshot().Card(c.ID())
		return r.writePlain("✓ Updated card %q\n", updated.Row.Title)
	})
}

func cardPatch(cmd *cli.Command) (models.CardPatch, error) {
	var patch models.CardPatch
	if cmd.IsSet("title") {
		title := cmd.String("title")
		patch.Title = &title
	}
	if cmd.IsSet("description") {
		desc := cmd.String("description")
		patch.Description = &desc
	}
	if cmd.IsSet("due") {
		due, err := parseDue(cmd.String("due"))
		if err != nil {
			return patch, err
		}
		patch.DueDate = due
	}
	if cmd.Bool("clear-due") {
		if patch.DueDate != nil {
			return patch, fmt.Errorf("%w: --due and --clear-due are exclusive", shared.ErrInvalidArgument)
		}
		patch.ClearDue = true
	}
	if cmd.IsSet("label") {
		labels := cmd.StringSlice("label")
		patch.Labels = &labels
	}
	return patch, nil
}

// CardRemove deletes a card. Later cards in its list close the gap.
func (r *Runner) CardRemove(ctx context.Context, cmd *cli.Command) error {
	return r.withBoard(ctx, cmd.StringArg("board"), func(run *boardRun) error {
		c, err := findCard(run.Store.Snapshot(), cmd.StringArg("card"))
		if err != nil {
			return err
		}
		run.Coordinator.DeleteCard(c.ID())
		if err := run.settle(); err != nil {
			return err
		}
		return r.writePlain("✓ Deleted card %q\n", c.Row.Title)
	})
}

// CardMove moves a card to a zero-based position in a list, the end by default.
func (r *Runner) CardMove(ctx context.Context, cmd *cli.Command) error {
	return r.withBoard(ctx, cmd.StringArg("board"), func(run *boardRun) error {
		st := run.Store.Snapshot()
		c, err := findCard(st, cmd.StringArg("card"))
		if err != nil {
			return err
		}
		to, err := findList(st, cmd.StringArg("list"))
		if err != nil {
			return err
		}

		end := len(st.ListCards(to.ID()))
		if c.Row.ListID == to.ID() {
			end--
		}
		index, err := parseIndex(cmd.StringArg("position"), end)
		if err != nil {
			return err
		}

		run.Coordinator.MoveCard(c.ID(), to.ID(), index)
		if err := run.settle(); err != nil {
			return err
		}
		_, at, _ := run.Store.Snapshot().LocateCard(c.ID())
		return r.writePlain("✓ Moved card %q to %q at position %d\n", c.Row.Title, to.Row.Title, at)
	})
}
