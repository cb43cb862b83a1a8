package main

import (
	"context"
	"strings"
	"time"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/tasks"
	"github.com/urfave/cli/v3"
)

type seedCard struct {
	title, description, due string
	labels                  []string
}

type seedList struct {
	title string
	cards []seedCard
}

type seedBoard struct {
	title, description string
	lists              []seedList
}

var sampleBoards = []seedBoard{
	{
		title:       "Web Development Project",
		description: "Main project board for our new website redesign",
		lists: []seedList{
			{"Backlog", []seedCard{{
				"Design Homepage Mockup",
				"Create wireframes and high-fidelity mockups for the new homepage design",
				"2025-02-15", []string{"design", "high"},
			}}},
			{"To Do", []seedCard{{
				"Set up Development Environment",
				"Configure local development environment with all necessary tools and dependencies",
				"2025-02-10", []string{"setup", "urgent"},
			}}},
			{"In Progress", []seedCard{{
				"Implement User Authentication",
				"Build login, signup, and password reset functionality",
				"2025-02-20", []string{"backend", "important"},
			}}},
			{"Review", []seedCard{{
				"Code Review - Navigation Component",
				"Review the navigation component implementation for accessibility and performance",
				"2025-02-12", []string{"review", "medium"},
			}}},
			{"Done", []seedCard{{
				"Deploy to Production",
				"Successfully deployed the initial version to production environment",
				"", []string{"deployment", "completed"},
			}}},
		},
	},
	{
		title:       "Marketing Campaign Q1",
		description: "Planning and execution of Q1 marketing initiatives",
		lists: []seedList{
			{"Ideas", []seedCard{{
				"Social Media Strategy",
				"Develop comprehensive social media strategy for Q1 campaign",
				"2025-02-14", []string{"strategy", "high"},
			}}},
			{"Planning", []seedCard{{
				"Content Calendar",
				"Create detailed content calendar for all marketing channels",
				"2025-02-16", []string{"content", "important"},
			}}},
			{"In Progress", nil},
			{"Completed", nil},
		},
	},
	{
		title:       "Personal Tasks",
		description: "Personal productivity and goal tracking",
		lists: []seedList{
			{"To Do", []seedCard{{
				"Learn TypeScript",
				"Complete TypeScript fundamentals course and build a small project",
				"2025-03-01", []string{"learning", "personal"},
			}}},
			{"Doing", []seedCard{{
				"Plan Weekend Trip",
				"Research and book accommodations for weekend getaway",
				"2025-02-28", []string{"travel", "personal"},
			}}},
			{"Done", []seedCard{{
				"Organize Home Office",
				"Successfully reorganized and optimized home office workspace",
				"", []string{"organization", "completed"},
			}}},
		},
	},
}

// export converts the sample into a snapshot so seeding shares the import path.
func (b seedBoard) export(now time.Time) *models.BoardExport {
	export := &models.BoardExport{
		Version:    models.ExportVersion,
		ExportedAt: now,
		Board:      models.ExportedBoard{Title: b.title, Description: b.description},
	}
	for _, l := range b.lists {
		el := models.ExportedList{Title: l.title, Cards: []models.ExportedCard{}}
		for _, c := range l.cards {
			ec := models.ExportedCard{Title: c.title, Description: c.description, Labels: c.labels}
			ec.DueDate, _ = parseDue(c.due)
			el.Cards = append(el.Cards, ec)
		}
		export.Lists = append(export.Lists, el)
	}
	return export
}

// Seed creates the sample boards that are not already present, matched by title.
func (r *Runner) Seed(ctx context.Context, cmd *cli.Command) error {
	existing := map[string]bool{}
	err := r.withBoard(ctx, "", func(run *boardRun) error {
		for _, b := range run.Store.Snapshot().Boards {
			existing[strings.ToLower(b.Title)] = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	backend, err := r.openBackend()
	if err != nil {
		return err
	}

	created := 0
	now := time.Now().UTC()
	for _, sample := range sampleBoards {
		if existing[strings.ToLower(sample.title)] {
			r.logger.Info("skipping sample board", "title", sample.title)
			continue
		}

		progress, stop := r.progress()
		board, err := tasks.Restore(ctx, backend, progress, r.config.User.ID, sample.export(now))
		stop()
		if err != nil {
			return err
		}
		created++
		r.writePlain("✓ Created %q (%s)\n", board.Title, board.ID)
	}

	if created == 0 {
		return r.writePlain("Sample boards already exist.\n")
	}
	return r.writePlain("Seeded %d boards. Open them with 'kbx tui'.\n", created)
}
