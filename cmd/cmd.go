// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
}

// processCommand uploads a file and follows its progress to completion
func processCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "process",
		Aliases:   []string{"p"},
		Usage:     "Upload an audio file and extract its vocals",
		ArgsUsage: "<file>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory for the downloaded result and report (default: download.dir)",
			},
			&cli.BoolFlag{
				Name:    "download",
				Aliases: []string{"d"},
				Usage:   "Download the result when processing completes",
			},
			&cli.BoolFlag{
				Name:  "play",
				Usage: "Play the result when processing completes",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format (text, json, markdown, csv)",
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:  "save-report",
				Usage: "Write the report to the output directory instead of stdout",
			},
		},
		Action: r.Process,
	}
}

// downloadCommand fetches a processed file by token
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a processed file",
		ArgsUsage: "<token>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "token"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Original file name used to build the saved name",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory to save into (default: download.dir)",
			},
			&cli.BoolFlag{
				Name:  "browser",
				Usage: "Open the download URL in the browser instead",
			},
		},
		Action: r.Download,
	}
}

// playCommand plays a processed file through the configured player
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a processed file",
		ArgsUsage: "<token>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "token"},
		},
		Action: r.Play,
	}
}

// themeCommand manages the persisted theme preference
func themeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "theme",
		Usage: "Show or change the TUI theme",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Print the saved theme",
				Action: r.ThemeGet,
			},
			{
				Name:      "set",
				Usage:     "Save a theme (dark or light)",
				ArgsUsage: "<dark|light>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "theme"},
				},
				Action: r.ThemeSet,
			},
			{
				Name:   "toggle",
				Usage:  "Switch between dark and light",
				Action: r.ThemeToggle,
			},
			{
				Name:   "reset",
				Usage:  "Forget the saved theme and use ui.default_theme",
				Action: r.ThemeReset,
			},
		},
	}
}

// preferencesCommand lists every stored preference
func preferencesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "preferences",
		Aliases: []string{"prefs"},
		Usage:   "List stored preferences",
		Action:  r.Preferences,
	}
}

// setupCommand creates the config file and initializes the database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml from the template and run database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recently applied migration",
			},
		},
		Action: r.Setup,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive terminal UI",
		Action:  r.TUI,
	}
}

// serveCommand runs the local processing API emulator
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a local emulation of the processing API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on (default: devserver.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (default: devserver.port)",
			},
		},
		Action: r.Serve,
	}
}
