// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// outputFlags are shared by the generation commands.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output the result as JSON",
		},
		&cli.BoolFlag{
			Name:  "open",
			Usage: "Open generated images in the browser",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Show progress in an interactive view",
		},
		&cli.StringFlag{
			Name:  "save",
			Usage: "Download generated images into this directory",
		},
		&cli.IntFlag{
			Name:    "n",
			Aliases: []string{"count"},
			Usage:   "Number of images to generate (1-4, default from config)",
		},
	}
}

// serveCommand runs the HTTP proxy
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP proxy and web front end",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// convertCommand restyles a source image
func convertCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Convert an image into anime style",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Aliases:  []string{"i"},
				Usage:    "Source image URL or data:image/...;base64 reference",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "prompt",
				Usage: "Style description",
				Value: "anime style, high quality, detailed",
			},
			&cli.StringFlag{
				Name:  "function",
				Usage: "Edit function (default from config)",
			},
		}, outputFlags()...),
		Action: r.Convert,
	}
}

// text2ImgCommand synthesizes images from a prompt
func text2ImgCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "text2img",
		Aliases: []string{"t2i"},
		Usage:   "Generate images from a text prompt",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "prompt",
				Usage:    "Text prompt",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "size",
				Usage: "Output size, e.g. 1024*1024 (default from config)",
			},
		}, outputFlags()...),
		Action: r.Text2Img,
	}
}

// taskCommand inspects provider tasks
func taskCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Inspect provider tasks",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Query a task once and print its state",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TaskStatus,
			},
		},
	}
}

// batchCommand runs text2img for every line of a file
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Generate one image per prompt line of a file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "File with one prompt per line (# starts a comment)",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent generations (max 8)",
				Value: 2,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Task submissions per second",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "size",
				Usage: "Output size (default from config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output results as JSON",
			},
		},
		Action: r.Batch,
	}
}

// userCommand manages accounts directly against the auth backend
func userCommand(r *Runner) *cli.Command {
	credentials := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "Account name",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Account password",
				Sources: cli.EnvVars("ANIMX_PASSWORD"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		}
	}

	return &cli.Command{
		Name:  "user",
		Usage: "Manage web front end accounts",
		Commands: []*cli.Command{
			{
				Name:   "register",
				Usage:  "Create an account",
				Flags:  credentials(),
				Action: r.UserRegister,
			},
			{
				Name:   "login",
				Usage:  "Check credentials and print a token",
				Flags:  credentials(),
				Action: r.UserLogin,
			},
			{
				Name:  "vip",
				Usage: "Grant or revoke VIP status",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Account name",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "revoke",
						Usage: "Remove VIP status instead of granting it",
					},
				},
				Action: r.UserVIP,
			},
		},
	}
}

// historyCommand reads stored generations
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse and export past generations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent generations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of generations to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "tui",
						Usage: "Browse interactively",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "export",
				Usage: "Export generations as CSV, Markdown or JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "csv, markdown or json",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default history.<ext>)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of generations to export",
						Value: 1000,
					},
				},
				Action: r.HistoryExport,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest applied migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
