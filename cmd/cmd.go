// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func boardArg() cli.Argument { return &cli.StringArg{Name: "board", UsageText: "board id or title"} }

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "migrations",
				Usage: "Show applied migrations",
				Flags: []cli.Flag{
					jsonFlag(),
				},
				Action: r.SetupMigrations,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the local database over HTTP with a realtime change feed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
			},
		},
		Action: r.Serve,
	}
}

func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint an API token for the configured user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User id to mint the token for (defaults to user.id)",
			},
		},
		Action: r.Token,
		Commands: []*cli.Command{
			{
				Name:  "verify",
				Usage: "Check a token against the configured secret",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "token"},
				},
				Action: r.TokenVerify,
			},
		},
	}
}

func boardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "board",
		Aliases: []string{"boards", "b"},
		Usage:   "Board operations",
		Commands: []*cli.Command{
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List boards",
				Flags: []cli.Flag{
					jsonFlag(),
				},
				Action: r.BoardList,
			},
			{
				Name:  "create",
				Usage: "Create a board",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Board description",
					},
				},
				Action: r.BoardCreate,
			},
			{
				Name:  "rename",
				Usage: "Rename a board",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Replace the board description",
					},
				},
				Action: r.BoardRename,
			},
			{
				Name:      "rm",
				Aliases:   []string{"delete"},
				Usage:     "Delete a board with all of its lists and cards",
				Arguments: []cli.Argument{boardArg()},
				Action:    r.BoardRemove,
			},
			{
				Name:      "show",
				Usage:     "Print a board",
				Arguments: []cli.Argument{boardArg()},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (md, txt, csv, json, yaml)",
						Value:   "md",
					},
				},
				Action: r.BoardShow,
			},
			{
				Name:      "export",
				Usage:     "Export a board snapshot to a file or the S3 archive",
				Arguments: []cli.Argument{boardArg()},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (md, txt, csv, json, yaml); inferred from --output",
					},
					&cli.BoolFlag{
						Name:  "s3",
						Usage: "Upload the snapshot to the configured bucket",
					},
				},
				Action: r.BoardExport,
			},
			{
				Name:  "import",
				Usage: "Recreate a board from a JSON or YAML snapshot",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "source", UsageText: "file path, or archive key with --s3"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title for the imported board",
					},
					&cli.BoolFlag{
						Name:  "s3",
						Usage: "Read the snapshot from the configured bucket",
					},
				},
				Action: r.BoardImport,
			},
		},
	}
}

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"lists", "l"},
		Usage:   "List operations",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Append a list to a board",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "title"},
				},
				Action: r.ListAdd,
			},
			{
				Name:  "rename",
				Usage: "Rename a list",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "title"},
				},
				Action: r.ListRename,
			},
			{
				Name:    "rm",
				Aliases: []string{"delete"},
				Usage:   "Delete a list with its cards",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "list"},
				},
				Action: r.ListRemove,
			},
			{
				Name:  "move",
				Usage: "Move a list to a zero-based position",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "position"},
				},
				Action: r.ListMove,
			},
		},
	}
}

func cardFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "description",
			Aliases: []string{"d"},
			Usage:   "Card description (markdown)",
		},
		&cli.StringFlag{
			Name:  "due",
			Usage: "Due date as YYYY-MM-DD",
		},
		&cli.StringSliceFlag{
			Name:    "label",
			Aliases: []string{"L"},
			Usage:   "Card label, repeatable",
		},
	}
}

func cardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "card",
		Aliases: []string{"cards", "c"},
		Usage:   "Card operations",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Append a card to a list",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "title"},
				},
				Flags:  cardFlags(),
				Action: r.CardAdd,
			},
			{
				Name:  "edit",
				Usage: "Change a card's fields",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "card"},
				},
				Flags: append(cardFlags(),
					&cli.StringFlag{
						Name:    "title",
						Aliases: []string{"t"},
						Usage:   "Card title",
					},
					&cli.BoolFlag{
						Name:  "clear-due",
						Usage: "Remove the due date",
					},
				),
				Action: r.CardEdit,
			},
			{
				Name:    "rm",
				Aliases: []string{"delete"},
				Usage:   "Delete a card",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "card"},
				},
				Action: r.CardRemove,
			},
			{
				Name:  "move",
				Usage: "Move a card to a zero-based position in a list",
				Arguments: []cli.Argument{
					boardArg(),
					&cli.StringArg{Name: "card"},
					&cli.StringArg{Name: "list"},
					&cli.StringArg{Name: "position"},
				},
				Action: r.CardMove,
			},
		},
	}
}

func archiveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "S3 snapshot archive operations",
		Commands: []*cli.Command{
			{
				Name:    "ls",
				Aliases: []string{"list"},
				Usage:   "List archived snapshots",
				Flags: []cli.Flag{
					jsonFlag(),
				},
				Action: r.ArchiveList,
			},
			{
				Name:   "check",
				Usage:  "Check the configured bucket is reachable",
				Action: r.ArchiveCheck,
			},
		},
	}
}

func seedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "seed",
		Usage:  "Create sample boards for trying things out",
		Action: r.Seed,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the interactive board view",
		Action: r.TUI,
	}
}
