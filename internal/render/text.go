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

package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"raedu/internal/grading"
	"raedu/internal/ra"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#06B6D4")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#94A3B8")
	borderColor    = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	opStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	noteStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Italic(true)

	addedStyle = lipgloss.NewStyle().
			Foreground(successColor)

	removedStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	nullCellStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Faint(true).
			Padding(0, 1)

	indent = lipgloss.NewStyle().MarginLeft(2)
)

// Text renders the whole trace for a terminal.
func Text(t *ra.Trace) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Expression") + " " + t.Expression + "\n")
	if t.Database != "" {
		b.WriteString(labelStyle.Render("Database") + "   " + t.Database + "\n")
	}

	for i, s := range t.Steps {
		b.WriteString("\n")
		b.WriteString(Step(i+1, s))
	}

	b.WriteString("\n")
	b.WriteString(Result(t))
	return b.String()
}

// Step renders one step: header line, schemas, delta, preview and note.
func Step(n int, s ra.Step) string {
	var b strings.Builder

	header := titleStyle.Render(fmt.Sprintf("Step %d", n)) + "  " + opStyle.Render(s.Op)
	if d := s.Detail.String(); d != "" {
		header += "  " + d
	}
	b.WriteString(header + "\n")

	var lines []string
	for i, in := range s.InputSchema {
		label := "input"
		if len(s.InputSchema) > 1 {
			label = fmt.Sprintf("input %d", i+1)
		}
		lines = append(lines, labelStyle.Render(label+":")+" "+schemaText(in))
	}
	lines = append(lines, labelStyle.Render("output:")+" "+schemaText(s.OutputSchema))
	lines = append(lines, labelStyle.Render("rows:")+" "+fmt.Sprint(s.Rows))
	if s.Delta != nil {
		lines = append(lines, deltaText(s.Delta)...)
	}
	b.WriteString(indent.Render(strings.Join(lines, "\n")) + "\n")

	if len(s.Preview) > 0 {
		b.WriteString(indent.Render(Table(s.OutputSchema, s.Preview)) + "\n")
		if s.Rows > len(s.Preview) {
			b.WriteString(indent.Render(labelStyle.Render(fmt.Sprintf("... %d more rows", s.Rows-len(s.Preview)))) + "\n")
		}
	}
	if s.Note != "" {
		b.WriteString(indent.Render(noteStyle.Render("note: "+s.Note)) + "\n")
	}
	return b.String()
}

// Result renders the final schema, row count and preview.
func Result(t *ra.Trace) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Result") + "  " + schemaText(t.FinalSchema) + "  " +
		labelStyle.Render(plural(t.FinalRows, "row")) + "\n")
	if len(t.Preview) == 0 {
		b.WriteString(labelStyle.Render("(no rows)") + "\n")
		return b.String()
	}
	b.WriteString(Table(t.FinalSchema, t.Preview) + "\n")
	if t.FinalRows > len(t.Preview) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("showing %d of %d rows", len(t.Preview), t.FinalRows)) + "\n")
	}
	return b.String()
}

// Table renders rows as a bordered table with schema as the header.
func Table(schema []string, rows []ra.Row) string {
	cells := make([][]string, len(rows))
	nulls := make(map[[2]int]bool)
	for i, r := range rows {
		vals := r.Values()
		cells[i] = make([]string, len(vals))
		for j, v := range vals {
			cells[i][j] = v.String()
			if v.IsNull() {
				nulls[[2]int{i, j}] = true
			}
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers(schema...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerCellStyle
			case nulls[[2]int{row, col}]:
				return nullCellStyle
			}
			return cellStyle
		}).
		String()
}

// Diff renders a grading comparison.
func Diff(d grading.Diff) string {
	var b strings.Builder
	if d.Matches {
		b.WriteString(addedStyle.Bold(true).Render("Correct") + "  the result matches the solution\n")
		return b.String()
	}
	b.WriteString(removedStyle.Bold(true).Render("Incorrect") + "\n")
	if !d.SchemaEqual {
		b.WriteString(indent.Render(labelStyle.Render("your schema:")+"     "+schemaText(d.StudentSchema)) + "\n")
		b.WriteString(indent.Render(labelStyle.Render("expected schema:")+" "+schemaText(d.SolutionSchema)) + "\n")
		return b.String()
	}
	if len(d.MissingRows) > 0 {
		b.WriteString(indent.Render(removedStyle.Render(plural(len(d.MissingRows), "missing row"))) + "\n")
		b.WriteString(indent.Render(Table(d.SolutionSchema, d.MissingRows)) + "\n")
	}
	if len(d.ExtraRows) > 0 {
		b.WriteString(indent.Render(removedStyle.Render(plural(len(d.ExtraRows), "unexpected row"))) + "\n")
		b.WriteString(indent.Render(Table(d.StudentSchema, d.ExtraRows)) + "\n")
	}
	return b.String()
}

func deltaText(d *ra.Delta) []string {
	lines := []string{labelStyle.Render("change:") + fmt.Sprintf(" %d -> %d rows", d.RowsBefore, d.RowsAfter)}
	if len(d.AttributesAdded) > 0 {
		lines = append(lines, addedStyle.Render("+ "+strings.Join(d.AttributesAdded, ", ")))
	}
	if len(d.AttributesRemoved) > 0 {
		lines = append(lines, removedStyle.Render("- "+strings.Join(d.AttributesRemoved, ", ")))
	}
	for _, r := range d.RemovedRows {
		lines = append(lines, removedStyle.Render("- "+r.String()))
	}
	for _, r := range d.AddedRows {
		lines = append(lines, addedStyle.Render("+ "+r.String()))
	}
	return lines
}

func schemaText(schema []string) string {
	return "(" + strings.Join(schema, ", ") + ")"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
