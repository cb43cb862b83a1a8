package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/kbx/internal/formatter"
	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/shared"
	tu "github.com/desertthunder/kbx/internal/testing"
	"github.com/urfave/cli/v3"
)

// harness runs the CLI against an in-memory database.
type harness struct {
	r   *Runner
	out *bytes.Buffer
}

func newHarness(t *testing.T, opts RunnerOpts) *harness {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = ":memory:"
	config.Server.JWTSecret = "test-secret"
	config.S3.Bucket = "boards"

	out := &bytes.Buffer{}
	opts.Config = config
	opts.Output = out
	opts.Logger = tu.DiscardLogger()

	r := NewRunner(opts)
	t.Cleanup(r.Close)
	return &harness{r: r, out: out}
}

func (h *harness) exec(args ...string) (string, error) {
	h.out.Reset()
	err := newApp(h.r).Run(context.Background(), append([]string{"kbx"}, args...))
	return h.out.String(), err
}

func (h *harness) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.exec(args...)
	if err != nil {
		t.Fatalf("kbx %s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func (h *harness) board(t *testing.T, ref string) *models.BoardExport {
	t.Helper()
	export, err := formatter.ParseExport([]byte(h.run(t, "board", "show", "--format", "json", ref)), formatter.FormatJSON)
	if err != nil {
		t.Fatalf("failed to parse board: %v", err)
	}
	return export
}

func titles(l models.ExportedList) []string {
	out := make([]string, 0, len(l.Cards))
	for _, c := range l.Cards {
		out = append(out, c.Title)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			backend := tu.NewFakeBackend()
			objects := tu.NewFakeObjects("boards")

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Backend:    backend,
				Objects:    objects,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.backend != backend {
				t.Error("expected backend to be set")
			}
			if runner.objects != objects {
				t.Error("expected objects to be set")
			}
		})

		t.Run("with nil logger and output uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected stdout to be the default output")
			}
		})
	})

	t.Run("loadConfig", func(t *testing.T) {
		ctx := context.Background()

		t.Run("reads the config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			conf := "backend = \"local\"\n\n[database]\npath = \":memory:\"\n\n[log]\nlevel = \"debug\"\n"
			if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
				t.Fatal(err)
			}

			r := NewRunner(RunnerOpts{ConfigPath: path, Logger: tu.DiscardLogger()})
			if _, err := r.loadConfig(ctx, &cli.Command{}); err != nil {
				t.Fatalf("loadConfig failed: %v", err)
			}
			if r.config.Database.Path != ":memory:" {
				t.Errorf("expected :memory:, got %s", r.config.Database.Path)
			}
			if r.config.Writes.Workers != 4 {
				t.Errorf("expected defaults for missing keys, got %d workers", r.config.Writes.Workers)
			}
		})

		t.Run("missing file falls back to defaults", func(t *testing.T) {
			r := NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), Logger: tu.DiscardLogger()})
			if _, err := r.loadConfig(ctx, &cli.Command{}); err != nil {
				t.Fatalf("loadConfig failed: %v", err)
			}
			if r.config == nil || r.config.Backend != shared.BackendLocal {
				t.Errorf("expected default config, got %+v", r.config)
			}
		})

		t.Run("rejects an invalid config", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("backend = \"carrier-pigeon\"\n"), 0644); err != nil {
				t.Fatal(err)
			}

			r := NewRunner(RunnerOpts{ConfigPath: path, Logger: tu.DiscardLogger()})
			if _, err := r.loadConfig(ctx, &cli.Command{}); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("injected config is kept", func(t *testing.T) {
			config := shared.DefaultConfig()
			r := NewRunner(RunnerOpts{Config: config, ConfigPath: "does-not-matter.toml"})
			if _, err := r.loadConfig(ctx, &cli.Command{}); err != nil {
				t.Fatalf("loadConfig failed: %v", err)
			}
			if r.config != config {
				t.Error("expected injected config to be kept")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("compact and pretty", func(t *testing.T) {
			var buf bytes.Buffer
			r := NewRunner(RunnerOpts{Output: &buf})

			if err := r.writeJSON(map[string]int{"cards": 2}, false); err != nil {
				t.Fatalf("writeJSON failed: %v", err)
			}
			if buf.String() != "{\"cards\":2}\n" {
				t.Errorf("unexpected output %q", buf.String())
			}

			buf.Reset()
			if err := r.writeJSON(map[string]int{"cards": 2}, true); err != nil {
				t.Fatalf("writeJSON failed: %v", err)
			}
			if !strings.Contains(buf.String(), "\n  \"cards\": 2\n") {
				t.Errorf("expected indented output, got %q", buf.String())
			}
		})

		t.Run("unmarshalable data", func(t *testing.T) {
			r := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := r.writeJSON(make(chan int), false); err == nil {
				t.Error("expected marshal error")
			}
		})

		t.Run("write failures", func(t *testing.T) {
			r := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := r.writeJSON([]string{"a"}, false); err == nil {
				t.Error("expected write error")
			}

			var buf bytes.Buffer
			lw := tu.NewLimitedWriter(1, 0, &buf)
			r = NewRunner(RunnerOpts{Output: &lw})
			err := r.writeJSON([]string{"a"}, false)
			if err == nil || !strings.Contains(err.Error(), "newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
			if buf.String() != "[\"a\"]" {
				t.Errorf("expected the body before the failure, got %q", buf.String())
			}
		})

		t.Run("writePlain reports failures", func(t *testing.T) {
			r := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := r.writePlain("hello %s", "world"); err == nil {
				t.Error("expected write error")
			}
		})
	})
}

func TestBoardCommands(t *testing.T) {
	h := newHarness(t, RunnerOpts{})

	t.Run("empty board list", func(t *testing.T) {
		out := h.run(t, "board", "ls")
		if !strings.Contains(out, "No boards yet") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("create and list", func(t *testing.T) {
		out := h.run(t, "board", "create", "--description", "Next quarter", "Roadmap")
		if !strings.Contains(out, `Created board "Roadmap"`) {
			t.Errorf("unexpected output %q", out)
		}

		var boards []models.Board
		if err := json.Unmarshal([]byte(h.run(t, "board", "ls", "--json")), &boards); err != nil {
			t.Fatalf("failed to parse boards: %v", err)
		}
		if len(boards) != 1 || boards[0].Title != "Roadmap" || boards[0].Description != "Next quarter" {
			t.Errorf("unexpected boards %+v", boards)
		}
	})

	t.Run("lists and cards", func(t *testing.T) {
		h.run(t, "list", "add", "Roadmap", "Todo")
		h.run(t, "list", "add", "Roadmap", "Done")
		h.run(t, "card", "add", "--label", "docs", "Roadmap", "Todo", "write docs")
		out := h.run(t, "card", "add", "--due", "2025-02-15", "Roadmap", "todo", "ship")
		if !strings.Contains(out, `Added card "ship" to "Todo"`) {
			t.Errorf("unexpected output %q", out)
		}

		export := h.board(t, "Roadmap")
		if len(export.Lists) != 2 {
			t.Fatalf("expected 2 lists, got %d", len(export.Lists))
		}
		if got := titles(export.Lists[0]); strings.Join(got, ",") != "write docs,ship" {
			t.Errorf("unexpected Todo cards %v", got)
		}
		ship := export.Lists[0].Cards[1]
		if ship.DueDate == nil || ship.DueDate.Format(dueLayout) != "2025-02-15" {
			t.Errorf("expected due date, got %v", ship.DueDate)
		}
	})

	t.Run("move cards and lists", func(t *testing.T) {
		out := h.run(t, "card", "move", "Roadmap", "ship", "Done", "0")
		if !strings.Contains(out, `Moved card "ship" to "Done" at position 0`) {
			t.Errorf("unexpected output %q", out)
		}
		h.run(t, "card", "move", "Roadmap", "write docs", "Done", "0")
		h.run(t, "list", "move", "Roadmap", "Done", "0")

		export := h.board(t, "Roadmap")
		if export.Lists[0].Title != "Done" || export.Lists[1].Title != "Todo" {
			t.Fatalf("unexpected list order %s, %s", export.Lists[0].Title, export.Lists[1].Title)
		}
		if got := titles(export.Lists[0]); strings.Join(got, ",") != "write docs,ship" {
			t.Errorf("unexpected Done cards %v", got)
		}
		if len(export.Lists[1].Cards) != 0 {
			t.Errorf("expected Todo to be empty, got %v", titles(export.Lists[1]))
		}
	})

	t.Run("edit and remove cards", func(t *testing.T) {
		h.run(t, "card", "edit", "--title", "write the docs", "--label", "docs", "--label", "v1", "Roadmap", "write docs")
		h.run(t, "card", "edit", "--clear-due", "Roadmap", "ship")

		export := h.board(t, "Roadmap")
		docs, ship := export.Lists[0].Cards[0], export.Lists[0].Cards[1]
		if docs.Title != "write the docs" || strings.Join(docs.Labels, ",") != "docs,v1" {
			t.Errorf("unexpected card %+v", docs)
		}
		if ship.DueDate != nil {
			t.Errorf("expected due date cleared, got %v", ship.DueDate)
		}

		h.run(t, "card", "rm", "Roadmap", "ship")
		out := h.run(t, "board", "show", "Roadmap")
		if !strings.HasPrefix(out, "# Roadmap") {
			t.Errorf("expected markdown, got %q", out)
		}
		if strings.Contains(out, "ship") {
			t.Errorf("expected ship to be deleted, got %q", out)
		}
	})

	t.Run("rename and remove lists", func(t *testing.T) {
		h.run(t, "list", "rename", "Roadmap", "Todo", "Later")
		out := h.run(t, "list", "rm", "Roadmap", "Later")
		if !strings.Contains(out, `Deleted list "Later" and 0 cards`) {
			t.Errorf("unexpected output %q", out)
		}
		if export := h.board(t, "Roadmap"); len(export.Lists) != 1 {
			t.Errorf("expected 1 list, got %d", len(export.Lists))
		}
	})

	t.Run("export and import", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "roadmap.yaml")
		out := h.run(t, "board", "export", "--output", path, "Roadmap")
		if !strings.Contains(out, "Exported to "+path) {
			t.Errorf("unexpected output %q", out)
		}

		out = h.run(t, "board", "import", "--title", "Roadmap copy", path)
		if !strings.Contains(out, `Imported "Roadmap copy"`) || !strings.Contains(out, "1 lists, 1 cards") {
			t.Errorf("unexpected output %q", out)
		}
		copied := h.board(t, "roadmap copy")
		if copied.Board.ID == "" || titles(copied.Lists[0])[0] != "write the docs" {
			t.Errorf("unexpected copy %+v", copied)
		}
	})

	t.Run("rename and remove boards", func(t *testing.T) {
		h.run(t, "board", "rename", "Roadmap copy", "Archive")
		out := h.run(t, "board", "rm", "Archive")
		if !strings.Contains(out, `Deleted board "Archive"`) {
			t.Errorf("unexpected output %q", out)
		}
		if out := h.run(t, "board", "ls"); strings.Contains(out, "Archive") {
			t.Errorf("expected Archive to be gone, got %q", out)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := h.exec("board", "show", "Nope"); !errors.Is(err, shared.ErrBoardNotFound) {
			t.Errorf("expected ErrBoardNotFound, got %v", err)
		}
		if _, err := h.exec("card", "add", "--due", "tomorrow", "Roadmap", "Done", "x"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if _, err := h.exec("card", "edit", "Roadmap", "ship"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := h.exec("board", "show", "--format", "pdf", "Roadmap"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if _, err := h.exec("list", "move", "Roadmap", "Done", "first"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestArchiveCommands(t *testing.T) {
	objects := tu.NewFakeObjects("boards")
	h := newHarness(t, RunnerOpts{Objects: objects})

	h.run(t, "board", "create", "Roadmap")
	h.run(t, "list", "add", "Roadmap", "Todo")
	h.run(t, "card", "add", "Roadmap", "Todo", "ship")

	t.Run("check", func(t *testing.T) {
		if out := h.run(t, "archive", "check"); !strings.Contains(out, "reachable") {
			t.Errorf("unexpected output %q", out)
		}
	})

	var key string
	t.Run("export to s3", func(t *testing.T) {
		out := h.run(t, "board", "export", "--s3", "Roadmap")
		if !strings.Contains(out, "s3://boards/boards/") {
			t.Errorf("unexpected output %q", out)
		}

		var keys []string
		if err := json.Unmarshal([]byte(h.run(t, "archive", "ls", "--json")), &keys); err != nil {
			t.Fatalf("failed to parse keys: %v", err)
		}
		if len(keys) != 1 || !strings.HasPrefix(keys[0], "boards/") {
			t.Fatalf("unexpected keys %v", keys)
		}
		key = keys[0]
	})

	t.Run("import from s3", func(t *testing.T) {
		out := h.run(t, "board", "import", "--s3", "--title", "Restored", key)
		if !strings.Contains(out, `Imported "Restored"`) {
			t.Errorf("unexpected output %q", out)
		}
		if got := titles(h.board(t, "Restored").Lists[0]); len(got) != 1 || got[0] != "ship" {
			t.Errorf("unexpected cards %v", got)
		}
	})

	t.Run("missing snapshot", func(t *testing.T) {
		if _, err := h.exec("board", "import", "--s3", "nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	h := newHarness(t, RunnerOpts{})

	out := h.run(t, "setup", "database")
	if !strings.Contains(out, "2 migrations applied") {
		t.Errorf("unexpected output %q", out)
	}

	if out := h.run(t, "setup", "migrations", "--json"); out != "[0,1]\n" {
		t.Errorf("unexpected migrations %q", out)
	}

	out = h.run(t, "setup", "rollback")
	if !strings.Contains(out, "Rolled back migration 001") {
		t.Errorf("unexpected output %q", out)
	}
	if out := h.run(t, "setup", "migrations"); out != "000\n" {
		t.Errorf("unexpected migrations %q", out)
	}
}

func TestTokenCommands(t *testing.T) {
	h := newHarness(t, RunnerOpts{})

	token := strings.TrimSpace(h.run(t, "token"))
	if token == "" {
		t.Fatal("expected a token")
	}

	out := h.run(t, "token", "verify", token)
	if !strings.Contains(out, "Valid token for user local-user") {
		t.Errorf("unexpected output %q", out)
	}

	other := strings.TrimSpace(h.run(t, "token", "--user", "u2"))
	if out := h.run(t, "token", "verify", other); !strings.Contains(out, "user u2") {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := h.exec("token", "verify", token+"x"); !errors.Is(err, shared.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSeed(t *testing.T) {
	h := newHarness(t, RunnerOpts{})

	out := h.run(t, "seed")
	if !strings.Contains(out, "Seeded 3 boards") {
		t.Errorf("unexpected output %q", out)
	}

	var boards []models.Board
	if err := json.Unmarshal([]byte(h.run(t, "board", "ls", "--json")), &boards); err != nil {
		t.Fatalf("failed to parse boards: %v", err)
	}
	if len(boards) != 3 {
		t.Fatalf("expected 3 boards, got %d", len(boards))
	}

	web := h.board(t, "Web Development Project")
	if len(web.Lists) != 5 || web.CardCount() != 5 {
		t.Errorf("expected 5 lists and 5 cards, got %d and %d", len(web.Lists), web.CardCount())
	}
	design := web.Lists[0].Cards[0]
	if design.Title != "Design Homepage Mockup" || design.DueDate == nil || strings.Join(design.Labels, ",") != "design,high" {
		t.Errorf("unexpected card %+v", design)
	}

	if out := h.run(t, "seed"); !strings.Contains(out, "already exist") {
		t.Errorf("expected a second seed to skip, got %q", out)
	}
}
