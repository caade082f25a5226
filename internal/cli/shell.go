package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/viant/sqlitebook/internal/logger"
	"github.com/viant/sqlitebook/workspace"
)

const (
	prompt         = "sqlitebook> "
	continuePrompt = "       ...> "
)

// Shell reads statements line by line and runs them once a line ends with a
// semicolon. Lines starting with a dot are shell commands.
type Shell struct {
	session *workspace.Session
	printer *Printer
	level   *slog.LevelVar
	in      io.Reader
	out     io.Writer
	prompt  bool
}

// NewShell creates a shell. Prompts are printed only when in is a terminal.
// level, when set, is adjusted by the .log command.
func NewShell(session *workspace.Session, printer *Printer, level *slog.LevelVar, in io.Reader, out io.Writer) *Shell {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Shell{session: session, printer: printer, level: level, in: in, out: out, prompt: interactive}
}

// Run processes input until EOF or .quit. Pending text at EOF is executed.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var pending strings.Builder

	for {
		s.showPrompt(pending.Len() > 0)
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if pending.Len() == 0 && strings.HasPrefix(trimmed, ".") {
			quit, err := s.command(ctx, trimmed)
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		pending.WriteString(line)
		pending.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			s.run(ctx, pending.String())
			pending.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(pending.String()) != "" {
		s.run(ctx, pending.String())
	}
	if s.prompt {
		fmt.Fprintln(s.out)
	}
	return nil
}

func (s *Shell) showPrompt(continued bool) {
	if !s.prompt {
		return
	}
	if continued {
		fmt.Fprint(s.out, continuePrompt)
		return
	}
	fmt.Fprint(s.out, prompt)
}

func (s *Shell) run(ctx context.Context, text string) {
	outcome, err := s.session.Run(ctx, text)
	if outcome != nil {
		if perr := s.printer.Results(outcome.Results); perr != nil {
			fmt.Fprintf(s.out, "error: %v\n", perr)
		}
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}

func (s *Shell) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return true, nil
	case ".tables":
		tables, err := s.session.Tables(ctx)
		if err != nil {
			return false, err
		}
		return false, s.printer.Names("TABLE", tables)
	case ".columns", ".schema":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: %s TABLE", fields[0])
		}
		columns, err := s.session.Columns(ctx, fields[1])
		if err != nil {
			return false, err
		}
		return false, s.printer.Columns(columns)
	case ".log":
		if s.level == nil {
			return false, fmt.Errorf("log level is not adjustable")
		}
		if len(fields) == 2 {
			s.level.Set(logger.ParseLevel(fields[1]))
		}
		fmt.Fprintf(s.out, "log level: %s\n", s.level.Level())
		return false, nil
	case ".help":
		fmt.Fprintln(s.out, ".tables            list tables")
		fmt.Fprintln(s.out, ".columns TABLE     describe a table")
		fmt.Fprintln(s.out, ".log [LEVEL]       show or set the log level")
		fmt.Fprintln(s.out, ".quit              leave the shell")
		return false, nil
	}
	return false, fmt.Errorf("unknown command %s (try .help)", fields[0])
}
