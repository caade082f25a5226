package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List databases, most recently modified first",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			records, err := rt.Store.List(c.Context)
			if err != nil {
				return err
			}
			return rt.Printer.Records(records)
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create an empty database",
		ArgsUsage: "[NAME]",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			record, err := rt.Workspace.Create(c.Context, strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return err
			}
			return rt.Printer.Record(record)
		},
	}
}

func execCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Execute SQL statements and save the database",
		ArgsUsage: "DATABASE_ID SQL...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read statements from a file ('-' for stdin)",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if c.NArg() < 1 {
				return cli.Exit("exec: DATABASE_ID is required", 2)
			}
			text := strings.Join(c.Args().Tail(), " ")
			if path := c.String("file"); path != "" {
				data, err := readSource(rt, path)
				if err != nil {
					return err
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return cli.Exit("exec: no statements given", 2)
			}
			session, err := rt.Workspace.Open(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			defer session.Close()
			outcome, err := session.Run(c.Context, text)
			if outcome != nil {
				if perr := rt.Printer.Results(outcome.Results); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if n := outcome.Failures(); n > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d statements failed", n, len(outcome.Results)), 1)
			}
			return nil
		},
	}
}

func readSource(rt *Runtime, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(rt.In)
	}
	return os.ReadFile(path)
}

func tablesCommand() *cli.Command {
	return &cli.Command{
		Name:      "tables",
		Usage:     "List the tables of a database",
		ArgsUsage: "DATABASE_ID",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("tables: DATABASE_ID is required", 2)
			}
			session, err := rt.Workspace.Open(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			defer session.Close()
			tables, err := session.Tables(c.Context)
			if err != nil {
				return err
			}
			return rt.Printer.Names("TABLE", tables)
		},
	}
}

func columnsCommand() *cli.Command {
	return &cli.Command{
		Name:      "columns",
		Usage:     "Describe the columns of a table",
		ArgsUsage: "DATABASE_ID TABLE",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if c.NArg() != 2 {
				return cli.Exit("columns: DATABASE_ID and TABLE are required", 2)
			}
			session, err := rt.Workspace.Open(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			defer session.Close()
			columns, err := session.Columns(c.Context, c.Args().Get(1))
			if err != nil {
				return err
			}
			return rt.Printer.Columns(columns)
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a SQLite database file",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("import: FILE is required", 2)
			}
			path := c.Args().First()
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			record, err := rt.Workspace.Import(c.Context, filepath.Base(path), f)
			if err != nil {
				return err
			}
			return rt.Printer.Record(record)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a database to a SQLite file",
		ArgsUsage: "DATABASE_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output path (defaults to the database name in the current directory)",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("export: DATABASE_ID is required", 2)
			}
			id := c.Args().First()
			blob, err := rt.Store.ExportBlob(c.Context, id)
			if err != nil {
				return err
			}
			if blob == nil {
				return cli.Exit(fmt.Sprintf("export: database %s not found", id), 1)
			}
			path := c.String("out")
			if path == "" {
				path = blob.Filename
			}
			if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
				return err
			}
			rt.Logger.Info("database exported", "id", id, "path", path, "bytes", len(blob.Data))
			fmt.Fprintln(rt.Out, path)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete databases",
		ArgsUsage: "DATABASE_ID...",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if c.NArg() == 0 {
				return cli.Exit("delete: DATABASE_ID is required", 2)
			}
			for _, id := range c.Args().Slice() {
				if err := rt.Store.Delete(c.Context, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm removal of all databases",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if !c.Bool("yes") {
				return cli.Exit("clear: refusing to delete every database without --yes", 2)
			}
			return rt.Store.Clear(c.Context)
		},
	}
}

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:      "shell",
		Usage:     "Edit a database interactively",
		ArgsUsage: "DATABASE_ID",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return cli.Exit("shell: DATABASE_ID is required", 2)
			}
			session, err := rt.Workspace.Open(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			defer session.Close()
			return NewShell(session, rt.Printer, rt.LogLevel, rt.In, rt.Out).Run(c.Context)
		},
	}
}

func metricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Print store metrics in the Prometheus text format",
		Action: func(c *cli.Context) error {
			rt, err := runtimeOf(c)
			if err != nil {
				return err
			}
			if _, err := rt.Store.List(c.Context); err != nil {
				return err
			}
			families, err := rt.Registry.Gather()
			if err != nil {
				return err
			}
			for _, family := range families {
				if _, err := expfmt.MetricFamilyToText(rt.Out, family); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
