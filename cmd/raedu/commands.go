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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"raedu/internal/render"
	"raedu/internal/service"
	"raedu/internal/storage"
)

var errIncorrect = errors.New("submission does not match the solution")

var (
	dbName     string
	outputPath string
	formatName string
	jsonOutput bool
	showTrace  bool
	importName string
	importZip  string
)

func init() {
	evalCmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression and print its trace",
		Long: `Evaluate a relational algebra expression against an imported database
and print every intermediate step. Use "-" to read the expression from stdin.

Examples:
  raedu eval --db school "π{name}(σ{major = 'CS'}(students))"
  raedu eval --db school --format html --out trace.html "students ⋈ enrolled"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runEval,
	}
	evalCmd.Flags().StringVarP(&dbName, "db", "d", "", "Database to evaluate against (default: the only one)")
	evalCmd.Flags().StringVarP(&formatName, "format", "f", "text", "Output format: text, json, msgpack, html")
	evalCmd.Flags().StringVarP(&outputPath, "out", "o", "", "Write output to a file instead of stdout")

	importCmd := &cobra.Command{
		Use:   "import [dir]",
		Short: "Import CSV datasets into the catalog",
		Long: `Import every dataset folder under dir (default: the data directory).
Each sub-directory is a database and each CSV file in it a table.
With --name, dir itself is imported as a single database. With --zip,
the CSV files of a zip archive are imported as one database named by
--name or, by default, after the archive.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runImport,
	}
	importCmd.Flags().StringVar(&importName, "name", "", "Import dir as one database with this name")
	importCmd.Flags().StringVar(&importZip, "zip", "", "Import a zip archive of CSV files as one database")
	importCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	databasesCmd := &cobra.Command{
		Use:     "databases",
		Aliases: []string{"dbs"},
		Short:   "List imported databases",
		Args:    cobra.NoArgs,
		RunE:    runDatabases,
	}
	databasesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the tables, columns and sample rows of a database",
		Args:  cobra.NoArgs,
		RunE:  runSchema,
	}
	schemaCmd.Flags().StringVarP(&dbName, "db", "d", "", "Database (default: the only one)")
	schemaCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	exercisesCmd := &cobra.Command{
		Use:   "exercises [id]",
		Short: "List exercises, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExercises,
	}
	exercisesCmd.Flags().StringVarP(&dbName, "db", "d", "", "Database (default: the only one)")
	exercisesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	gradeCmd := &cobra.Command{
		Use:   "grade <id> <expression>",
		Short: "Grade an expression against an exercise solution",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runGrade,
	}
	gradeCmd.Flags().StringVarP(&dbName, "db", "d", "", "Database (default: the only one)")
	gradeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	gradeCmd.Flags().BoolVar(&showTrace, "trace", false, "Also print the trace of the submission")

	dropCmd := &cobra.Command{
		Use:   "drop <database>",
		Short: "Remove a database from the catalog",
		Long: `Remove a database and its tables from the catalog. The dataset folder
is left untouched, so a later 'raedu import' brings the database back.`,
		Args: cobra.ExactArgs(1),
		RunE: runDrop,
	}

	rootCmd.AddCommand(evalCmd, importCmd, databasesCmd, schemaCmd, exercisesCmd, gradeCmd, dropCmd)
}

// expressionArg joins args into one expression, reading stdin for "-".
func expressionArg(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read expression: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

func runEval(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(formatName)
	if err != nil {
		return err
	}
	expr, err := expressionArg(args)
	if err != nil {
		return err
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	trace, err := svc.Evaluate(cmd.Context(), dbName, expr)
	if err != nil {
		return err
	}

	if outputPath == "" {
		return render.Encode(cmd.OutOrStdout(), trace, format)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	if err := render.Encode(f, trace, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printSuccess("Wrote %s trace to %s", format, outputPath)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	dir := svc.DataDir()
	if len(args) == 1 {
		dir = args[0]
	}

	var results []storage.ImportResult
	switch {
	case importZip != "":
		if len(args) == 1 {
			return fmt.Errorf("--zip cannot be combined with a directory argument")
		}
		dir = importZip
		name := importName
		if name == "" {
			name = storage.TableName(importZip)
		}
		results, err = svc.ImportArchive(cmd.Context(), name, importZip)
	case importName != "":
		results, err = svc.ImportDatabase(cmd.Context(), importName, dir)
	default:
		results, err = svc.Import(cmd.Context(), dir)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), results)
	}
	if len(results) == 0 {
		printWarning("No CSV files found under %s", dir)
		return nil
	}

	rows := make([][]string, len(results))
	changed := 0
	for i, r := range results {
		status := "unchanged"
		if r.Changed {
			status = "imported"
			changed++
		}
		rows[i] = []string{r.Database, r.Table, fmt.Sprint(r.Rows), status}
	}
	printTable(cmd.OutOrStdout(), []string{"database", "table", "rows", "status"}, rows)
	printSuccess("%d of %d tables updated", changed, len(results))
	return nil
}

func runDrop(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.DropDatabase(args[0]); err != nil {
		return err
	}
	printSuccess("Dropped database %s", args[0])
	return nil
}

func runDatabases(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	dbs, err := svc.Databases()
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), dbs)
	}
	if len(dbs) == 0 {
		printWarning("No databases imported yet. Run 'raedu import' first.")
		return nil
	}
	rows := make([][]string, len(dbs))
	for i, db := range dbs {
		rows[i] = []string{db.Name, fmt.Sprint(len(db.Tables)), strings.Join(db.Tables, ", ")}
	}
	printTable(cmd.OutOrStdout(), []string{"database", "tables", "names"}, rows)
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	schema, err := svc.Schema(dbName)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), schema)
	}

	out := cmd.OutOrStdout()
	printInfo("Database %s", schema.Name)
	for _, t := range schema.Tables {
		fmt.Fprintln(out)
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name + " " + dimStyle.Render(string(c.Type))
		}
		fmt.Fprintf(out, "%s (%s)  %s\n", successStyle.Render(t.Name), strings.Join(cols, ", "), dimStyle.Render(fmt.Sprintf("%d rows", t.RowCount)))

		if len(t.SampleRows) == 0 {
			continue
		}
		headers := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			headers[i] = c.Name
		}
		rows := make([][]string, len(t.SampleRows))
		for i, sample := range t.SampleRows {
			rows[i] = make([]string, len(headers))
			for j, h := range headers {
				if v := sample[h]; v != nil {
					rows[i][j] = fmt.Sprint(v)
				} else {
					rows[i][j] = "NULL"
				}
			}
		}
		printTable(out, headers, rows)
	}
	return nil
}

func runExercises(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		q, err := svc.Exercise(dbName, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out, q)
		}
		fmt.Fprintf(out, "%s  %s\n", successStyle.Render(q.ID), q.Title)
		if q.Difficulty != "" {
			fmt.Fprintln(out, dimStyle.Render("difficulty: "+q.Difficulty))
		}
		fmt.Fprintf(out, "\n%s\n", q.Prompt)
		for i, h := range q.Hints {
			fmt.Fprintf(out, "%s %s\n", dimStyle.Render(fmt.Sprintf("hint %d:", i+1)), h)
		}
		return nil
	}

	list, err := svc.Exercises(dbName)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(out, list)
	}
	if len(list) == 0 {
		printWarning("No exercises found")
		return nil
	}
	rows := make([][]string, len(list))
	for i, q := range list {
		rows[i] = []string{q.ID, q.Title, q.Difficulty, strings.Join(q.Tags, ", ")}
	}
	printTable(out, []string{"id", "title", "difficulty", "tags"}, rows)
	return nil
}

func runGrade(cmd *cobra.Command, args []string) error {
	expr, err := expressionArg(args[1:])
	if err != nil {
		return err
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Grade(cmd.Context(), dbName, args[0], expr)
	if err != nil {
		return err
	}
	return printGrade(cmd.OutOrStdout(), res)
}

func printGrade(w io.Writer, res *service.GradeResult) error {
	if jsonOutput {
		if err := printJSON(w, res); err != nil {
			return err
		}
	} else {
		if showTrace {
			fmt.Fprintln(w, render.Text(res.Trace))
		}
		fmt.Fprint(w, render.Diff(res.Diff))
	}
	if !res.Diff.Matches {
		return errIncorrect
	}
	return nil
}
