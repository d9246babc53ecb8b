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

/*
Command raedu-shell is an interactive relational algebra REPL.

Expressions typed at the prompt are evaluated against the current
database and their traces printed. Lines ending with \ continue on the
next line.

Local commands:

	\q, \quit           exit
	\h, \help           show help
	\use <db>           switch database
	\d                  list databases
	\dt [db]            list tables with columns and row counts
	\drop <db>          remove a database from the catalog
	\preview <n>        rows shown per step
	\json               toggle JSON output

Example session:

	raedu:school> π{name}(σ{major = 'CS'}(students))
	Step 1  relation  students
	...
	raedu:school> \use zoo
	Switched to database zoo

When stdin is not a terminal, lines are read without prompts, so
scripts can be piped in.
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"raedu/internal/banner"
	"raedu/internal/config"
	rerrors "raedu/internal/errors"
	"raedu/internal/logging"
	"raedu/internal/service"
)

var opts struct {
	configFile string
	dataDir    string
	database   string
	preview    int
	json       bool
	execute    string
}

var rootCmd = &cobra.Command{
	Use:           "raedu-shell",
	Short:         "Interactive relational algebra shell",
	Version:       banner.Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "Path to configuration file")
	f.StringVar(&opts.dataDir, "data-dir", "", "Directory holding dataset folders")
	f.StringVarP(&opts.database, "db", "d", "", "Database to start in")
	f.IntVar(&opts.preview, "preview", 0, "Rows shown per trace step")
	f.BoolVar(&opts.json, "json", false, "Print traces as JSON")
	f.StringVarP(&opts.execute, "execute", "e", "", "Evaluate one expression and exit")
}

// isTerminal returns true if stdin is a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(rerrors.FormatError(err)))
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	mgr := config.Global()
	if err := mgr.Load(opts.configFile); err != nil {
		return err
	}
	cfg := mgr.Get()
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = opts.dataDir
	}
	if cmd.Flags().Changed("preview") {
		cfg.PreviewLimit = opts.preview
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	sh := newShell(svc, os.Stdout)
	sh.json = opts.json
	if opts.database != "" {
		if err := sh.use(opts.database); err != nil {
			return err
		}
	} else {
		sh.pickDefault()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.execute != "" {
		return sh.evaluate(ctx, opts.execute)
	}

	if !isTerminal() {
		return sh.runSimple(ctx, os.Stdin)
	}
	return sh.runInteractive(ctx)
}
