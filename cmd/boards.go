package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/kbx/internal/formatter"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
	"github.com/desertthunder/kbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// BoardList prints the user's boards, newest first.
func (r *Runner) BoardList(ctx context.Context, cmd *cli.Command) error {
	return r.withBoard(ctx, "", func(run *boardRun) error {
		boards := run.Store.Snapshot().Boards
		if cmd.Bool("json") {
			return r.writeJSON(boards, true)
		}
		if len(boards) == 0 {
			return r.writePlain("No boards yet. Create one with 'kbx board create <title>'.\n")
		}
		for _, b := range boards {
			r.writePlain("%-36s  %-32s  %s\n", b.ID, shared.Truncate(b.Title, 32), b.CreatedAt.Format("2006-01-02"))
		}
		return nil
	})
}

// BoardCreate creates a board.
func (r *Runner) BoardCreate(ctx context.Context, cmd *cli.Command) error {
	title := cmd.StringArg("title")
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	return r.withBoard(ctx, "", func(run *boardRun) error {
		run.Coordinator.CreateBoard(models.NewBoard{Title: title, Description: cmd.String("description")})
		if err := run.settle(); err != nil {
			return err
		}
		board, ok := run.Store.Snapshot().SelectedBoard()
		if !ok {
			return fmt.Errorf("%w: created board was not loaded", shared.ErrBoardNotFound)
		}
		r.logger.Info("board created", "board", board.ID)
		return r.writePlain("✓ Created board %q (%s)\n", board.Title, board.ID)
	})
}

// BoardRename changes a board's title and, optionally, its description.
func (r *Runner) BoardRename(ctx context.Context, cmd *cli.Command) error {
	ref, title := cmd.StringArg("board"), cmd.StringArg("title")
	if title == "" {
		return fmt.Errorf("%w: title", shared.ErrMissingArgument)
	}

	return r.withBoard(ctx, ref, func(run *boardRun) error {
		patch := models.BoardPatch{Title: &title}
		if cmd.IsSet("description") {
			desc := cmd.String("description")
			patch.Description = &desc
		}
		run.Coordinator.UpdateBoard(run.board.ID, patch)
		if err := run.settle(); err != nil {
			return err
		}
		return r.writePlain("✓ Renamed board to %q\n", title)
	})
}

// BoardRemove deletes a board with its lists and cards.
func (r *Runner) BoardRemove(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("board")
	return r.withBoard(ctx, "", func(run *boardRun) error {
		board, err := findBoard(run.Session, ref)
		if err != nil {
			return err
		}
		run.Coordinator.DeleteBoard(board.ID)
		if err := run.settle(); err != nil {
			return err
		}
		return r.writePlain("✓ Deleted board %q\n", board.Title)
	})
}

// BoardShow prints a board in the chosen format.
func (r *Runner) BoardShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	export, err := r.exportBoard(ctx, cmd.StringArg("board"))
	if err != nil {
		return err
	}
	data, err := formatter.Export(export, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// BoardExport writes a board snapshot to a file, or to the S3 archive with --s3.
func (r *Runner) BoardExport(ctx context.Context, cmd *cli.Command) error {
	export, err := r.exportBoard(ctx, cmd.StringArg("board"))
	if err != nil {
		return err
	}

	if cmd.Bool("s3") {
		arc, err := r.openArchive(ctx)
		if err != nil {
			return err
		}
		key, err := arc.Save(ctx, export)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Archived %q to s3://%s/%s\n", export.Board.Title, r.config.S3.Bucket, key)
	}

	output := cmd.String("output")
	format := formatter.FormatJSON
	switch {
	case cmd.IsSet("format"):
		if format, err = formatter.ParseFormat(cmd.String("format")); err != nil {
			return err
		}
	case output != "":
		if format, err = formatter.FormatFromPath(output); err != nil {
			return err
		}
	}

	path, err := formatter.WriteExport(export, format, output)
	if err != nil {
		return err
	}
	r.writePlainHeader(export.Board.Title)
	r.writePlain("Lists: %d\nCards: %d\n", len(export.Lists), export.CardCount())
	return r.writePlain("✓ Exported to %s\n", path)
}

// BoardImport recreates a snapshot as a new board. The source is a file path, or an
// archive key or board id with --s3.
func (r *Runner) BoardImport(ctx context.Context, cmd *cli.Command) error {
	source := cmd.StringArg("source")
	if source == "" {
		return fmt.Errorf("%w: source", shared.ErrMissingArgument)
	}

	var (
		export *models.BoardExport
		err    error
	)
	if cmd.Bool("s3") {
		arc, aerr := r.openArchive(ctx)
		if aerr != nil {
			return aerr
		}
		export, err = arc.Load(ctx, source)
	} else {
		if _, serr := os.Stat(source); serr != nil {
			return fmt.Errorf("%w: %s", shared.ErrNotFound, source)
		}
		export, err = formatter.ReadExport(source)
	}
	if err != nil {
		return err
	}
	if title := cmd.String("title"); title != "" {
		export.Board.Title = title
	}

	backend, err := r.openBackend()
	if err != nil {
		return err
	}
	progress, stop := r.progress()
	board, err := tasks.Restore(ctx, backend, progress, r.config.User.ID, export)
	stop()
	if err != nil {
		if board.ID != "" {
			r.logger.Warn("import stopped part way", "board", board.ID, "error", err)
		}
		return err
	}

	r.logger.Info("board imported", "board", board.ID, "lists", len(export.Lists), "cards", export.CardCount())
	return r.writePlain("✓ Imported %q (%s): %d lists, %d cards\n", board.Title, board.ID, len(export.Lists), export.CardCount())
}

// exportBoard resolves ref and fetches the board as a snapshot.
func (r *Runner) exportBoard(ctx context.Context, ref string) (*models.BoardExport, error) {
	var export *models.BoardExport
	err := r.withBoard(ctx, "", func(run *boardRun) error {
		board, err := findBoard(run.Session, ref)
		if err != nil {
			return err
		}
		backend, err := r.openBackend()
		if err != nil {
			return err
		}

		progress, stop := r.progress()
		defer stop()
		export, err = tasks.NewLoader(backend, r.logger).Export(ctx, progress, board.ID)
		return err
	})
	return export, err
}
