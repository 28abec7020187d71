package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tracekit/pktvis/internal/config"
	"github.com/tracekit/pktvis/internal/errors"
	"github.com/tracekit/pktvis/internal/ops"
	"github.com/tracekit/pktvis/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "pktvis",
		Usage:   "Kernel packet-path trace visualizer",
		Version: Version,
		Commands: []*cli.Command{
			parseCmd(db, cfg),
			resolveCmd(db, cfg),
			fetchCmd(db),
			listCmd(db),
			deleteCmd(db),
			purgeCmd(db),
			exportCmd(db, cfg),
			sourceCmd(db),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// parseCmd creates the parse command.
func parseCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Parse a function_graph trace into a timeline (reads trace text from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Timeline name (optional)"},
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Free-form label"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("trace text must be piped via stdin"))
			}

			traceText, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if traceText == "" {
				return outputError(errors.NewInvalidRequest("trace_text is required"))
			}

			input := ops.ParseInput{
				TraceText: traceText,
				Mode:      ops.ParseMode(c.String("mode")),
			}
			if name := c.String("name"); name != "" {
				input.Name = &name
			}
			if label := c.String("label"); label != "" {
				input.Label = &label
			}

			output, err := ops.Parse(db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// resolveCmd creates the resolve command.
func resolveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve timeline functions against a kernel source tree",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Timeline name"},
			&cli.StringFlag{Name: "source-root", Aliases: []string{"s"}, Required: true, Usage: "Kernel source tree root"},
			&cli.StringFlag{Name: "dirs", Usage: "Comma-separated subdirectories to search"},
			&cli.IntFlag{Name: "workers", Usage: "Concurrent resolution workers"},
			&cli.IntFlag{Name: "timeout-ms", Usage: "Per-function timeout in milliseconds"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ResolveInput{
				SourceRoot: c.String("source-root"),
				Workers:    c.Int("workers"),
				TimeoutMs:  c.Int("timeout-ms"),
			}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Name = c.String("name")
			}
			if dirs := c.String("dirs"); dirs != "" {
				input.Dirs = splitList(dirs)
			}

			output, err := ops.Resolve(context.Background(), db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a timeline by ID or name",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Timeline name"},
			&cli.BoolFlag{Name: "no-entries", Usage: "Exclude entries from output"},
			&cli.BoolFlag{Name: "locations", Usage: "Include per-function resolution details"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted timelines"},
		},
		Action: func(c *cli.Context) error {
			input := ops.FetchInput{
				IncludeLocations: c.Bool("locations"),
				IncludeDeleted:   c.Bool("include-deleted"),
			}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Name = c.String("name")
			}

			if c.Bool("no-entries") {
				includeEntries := false
				input.IncludeEntries = &includeEntries
			}

			output, err := ops.Fetch(db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored timelines",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted timelines"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(db, ops.ListInput{
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a timeline",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Timeline name"},
		},
		Action: func(c *cli.Context) error {
			input := ops.DeleteInput{}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Name = c.String("name")
			}

			output, err := ops.Delete(db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted timelines",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "older-than-days", Usage: "Only purge if deleted more than N days ago (0 purges all)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}

			if c.IsSet("older-than-days") {
				days := c.Int("older-than-days")
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a timeline to a JSON file",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Timeline name"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.pktvis/exports/<name>-<timestamp>.json)"},
			&cli.BoolFlag{Name: "locations", Usage: "Include resolved bodies in the export"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{
				Path:             c.String("path"),
				IncludeLocations: c.Bool("locations"),
			}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Name = c.String("name")
			}

			output, err := ops.Export(db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// sourceCmd creates the source command.
func sourceCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "source",
		Usage:     "Show the resolved definition site and body of one function",
		ArgsUsage: "<function>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Timeline ID"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Timeline name"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Source(db, ops.SourceInput{
				ID:       c.String("id"),
				Name:     c.String("name"),
				Function: c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Value: "127.0.0.1:8321", Usage: "Listen address"},
		},
		Action: func(c *cli.Context) error {
			return web.Run(db, cfg, c.String("addr"), Version)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if pErr, ok := err.(*errors.PktvisError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", pErr.Code, pErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// splitList splits a comma-separated string into trimmed items.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			items = append(items, t)
		}
	}
	return items
}
