/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"raedu/internal/config"
	rerrors "raedu/internal/errors"
	"raedu/internal/render"
	"raedu/internal/service"
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	dbStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// keywords are offered by tab completion next to the local commands.
var keywords = []string{
	"pi", "sigma", "rho", "join", "product", "union", "minus", "intersect", "div",
	"π", "σ", "ρ", "⋈", "×", "∪", "−", "∩", "÷",
	"and", "or", "not",
}

// errQuit ends the REPL.
var errQuit = errors.New("quit")

// shell holds the REPL state.
type shell struct {
	svc     *service.Service
	out     io.Writer
	db      string
	preview int
	json    bool
}

func newShell(svc *service.Service, out io.Writer) *shell {
	return &shell{svc: svc, out: out, preview: svc.PreviewLimit()}
}

// pickDefault selects the database when exactly one is imported.
func (s *shell) pickDefault() {
	dbs, err := s.svc.Databases()
	if err == nil && len(dbs) == 1 {
		s.db = dbs[0].Name
	}
}

func (s *shell) prompt() string {
	p := promptStyle.Render("raedu")
	if s.db != "" {
		p += dimStyle.Render(":") + dbStyle.Render(s.db)
	}
	return p + dimStyle.Render(">") + " "
}

// execute runs one complete input line. It returns errQuit for \q.
func (s *shell) execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, `\`) {
		return s.command(line)
	}
	return s.evaluate(ctx, line)
}

func (s *shell) evaluate(ctx context.Context, expr string) error {
	trace, err := s.svc.Evaluate(ctx, s.db, expr, service.WithPreview(s.preview))
	if err != nil {
		return err
	}
	if s.json {
		enc := json.NewEncoder(s.out)
		enc.SetIndent("", "  ")
		return enc.Encode(trace)
	}
	_, err = io.WriteString(s.out, render.Text(trace))
	return err
}

func (s *shell) command(line string) error {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case `\q`, `\quit`:
		return errQuit
	case `\h`, `\help`, `\?`:
		s.printHelp()
		return nil
	case `\use`, `\c`:
		if len(args) != 1 {
			return rerrors.MissingRequired("database").WithHint(`Usage: \use <db>`)
		}
		if err := s.use(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Switched to database %s\n", s.db)
		return nil
	case `\d`, `\l`:
		return s.listDatabases()
	case `\dt`:
		db := s.db
		if len(args) > 0 {
			db = args[0]
		}
		return s.listTables(db)
	case `\drop`:
		if len(args) != 1 {
			return rerrors.MissingRequired("database").WithHint(`Usage: \drop <db>`)
		}
		if err := s.svc.DropDatabase(args[0]); err != nil {
			return err
		}
		dropped := strings.ToLower(args[0])
		if s.db == dropped {
			s.db = ""
			s.pickDefault()
		}
		fmt.Fprintf(s.out, "Dropped database %s\n", dropped)
		return nil
	case `\preview`:
		if len(args) != 1 {
			fmt.Fprintf(s.out, "Preview limit is %d\n", s.preview)
			return nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n > config.MaxPreviewLimit {
			return rerrors.ValueOutOfRange("preview", n, 0, config.MaxPreviewLimit).
				WithHint(`Usage: \preview <n>`)
		}
		s.preview = n
		fmt.Fprintf(s.out, "Preview limit set to %d\n", n)
		return nil
	case `\json`:
		s.json = !s.json
		mode := "text"
		if s.json {
			mode = "JSON"
		}
		fmt.Fprintf(s.out, "Output format: %s\n", mode)
		return nil
	}
	return rerrors.InvalidValue("command", fmt.Sprintf("unknown command %s", name)).
		WithHint(`Type \h for help`)
}

// use switches to database db after checking that it exists.
func (s *shell) use(db string) error {
	dbs, err := s.svc.Databases()
	if err != nil {
		return err
	}
	names := make([]string, len(dbs))
	for i, d := range dbs {
		names[i] = d.Name
		if strings.EqualFold(d.Name, db) {
			s.db = d.Name
			return nil
		}
	}
	return rerrors.DatabaseNotFound(db, names)
}

func (s *shell) listDatabases() error {
	dbs, err := s.svc.Databases()
	if err != nil {
		return err
	}
	if len(dbs) == 0 {
		fmt.Fprintln(s.out, warningStyle.Render("No databases imported yet. Run 'raedu import' first."))
		return nil
	}
	for _, d := range dbs {
		marker := "  "
		if d.Name == s.db {
			marker = dbStyle.Render("* ")
		}
		fmt.Fprintf(s.out, "%s%s %s\n", marker, d.Name, dimStyle.Render(fmt.Sprintf("(%s)", strings.Join(d.Tables, ", "))))
	}
	return nil
}

func (s *shell) listTables(db string) error {
	schema, err := s.svc.Schema(db)
	if err != nil {
		return err
	}
	for _, t := range schema.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
		}
		fmt.Fprintf(s.out, "%s(%s) %s\n", t.Name, strings.Join(cols, ", "), dimStyle.Render(fmt.Sprintf("%d rows", t.RowCount)))
	}
	return nil
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, `Type a relational algebra expression to evaluate it, e.g.
  π{name}(σ{major = 'CS'}(students))
  pi{name}(sigma{major = 'CS'}(students))
End a line with \ to continue on the next one.

Commands:
  \q, \quit        exit
  \h, \help        show this help
  \use <db>        switch database
  \d               list databases
  \dt [db]         list tables
  \drop <db>       remove a database from the catalog
  \preview <n>     rows shown per step
  \json            toggle JSON output`)
}

// report prints err for the user.
func (s *shell) report(err error) {
	fmt.Fprintln(s.out, errorStyle.Render(rerrors.FormatError(err)))
}

// lineBuffer joins lines ending with a backslash continuation.
type lineBuffer struct {
	sb strings.Builder
}

// add appends line and returns the complete input once a line does not
// end with a continuation.
func (b *lineBuffer) add(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasSuffix(trimmed, `\`) && !strings.HasPrefix(trimmed, `\`) {
		b.sb.WriteString(strings.TrimSuffix(trimmed, `\`))
		b.sb.WriteString(" ")
		return "", false
	}
	b.sb.WriteString(trimmed)
	input := b.sb.String()
	b.sb.Reset()
	return input, true
}

func (b *lineBuffer) pending() bool { return b.sb.Len() > 0 }

func (b *lineBuffer) reset() { b.sb.Reset() }

// runSimple reads lines from r without prompts or line editing.
func (s *shell) runSimple(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var buf lineBuffer
	for scanner.Scan() {
		input, done := buf.add(scanner.Text())
		if !done {
			continue
		}
		if err := s.execute(ctx, input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			s.report(err)
		}
	}
	return scanner.Err()
}

// runInteractive runs the readline REPL with history and completion.
func (s *shell) runInteractive(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:              s.prompt(),
		HistoryFile:         historyFilePath(),
		AutoComplete:        s.completer(),
		InterruptPrompt:     "^C",
		EOFPrompt:           `\q`,
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		fmt.Fprintln(s.out, warningStyle.Render(fmt.Sprintf("Advanced line editing unavailable: %v", err)))
		return s.runSimple(ctx, os.Stdin)
	}
	defer rl.Close()

	fmt.Fprintf(s.out, "raedu shell. Type %s for help, %s to quit.\n\n", `\h`, `\q`)

	var buf lineBuffer
	for {
		if buf.pending() {
			rl.SetPrompt(dimStyle.Render("    -> "))
		} else {
			rl.SetPrompt(s.prompt())
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if buf.pending() {
				buf.reset()
				continue
			}
			fmt.Fprintln(s.out, dimStyle.Render(`(Use \q to quit or Ctrl+D to exit)`))
			continue
		}
		if err != nil {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}

		input, done := buf.add(line)
		if !done {
			continue
		}
		if err := s.execute(ctx, input); err != nil {
			if errors.Is(err, errQuit) {
				fmt.Fprintln(s.out, "Goodbye!")
				return nil
			}
			s.report(err)
		}
	}
}

// completer offers local commands, operator keywords and, after \use
// or \dt, database names.
func (s *shell) completer() *readline.PrefixCompleter {
	dbNames := readline.PcItemDynamic(func(string) []string {
		dbs, err := s.svc.Databases()
		if err != nil {
			return nil
		}
		names := make([]string, len(dbs))
		for i, d := range dbs {
			names[i] = d.Name
		}
		return names
	})

	items := []readline.PrefixCompleterInterface{
		readline.PcItem(`\q`),
		readline.PcItem(`\quit`),
		readline.PcItem(`\h`),
		readline.PcItem(`\help`),
		readline.PcItem(`\use`, dbNames),
		readline.PcItem(`\d`),
		readline.PcItem(`\dt`, dbNames),
		readline.PcItem(`\drop`, dbNames),
		readline.PcItem(`\preview`),
		readline.PcItem(`\json`),
	}
	for _, k := range keywords {
		items = append(items, readline.PcItem(k))
	}
	return readline.NewPrefixCompleter(items...)
}

// historyFilePath returns the path to the history file.
func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".raedu_history")
}

// filterInput filters input runes for readline.
func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false // Disable Ctrl+Z
	}
	return r, true
}
