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
Command raedu evaluates relational algebra expressions step by step.

Usage:

	raedu import [dir]                      load CSV datasets into the catalog
	raedu import --zip file [--name db]     load a zipped dataset as one database
	raedu databases                         list imported databases
	raedu drop <db>                         remove a database from the catalog
	raedu schema [--db name]                show tables, columns and sample rows
	raedu eval [--db name] <expression>     evaluate and print the trace
	raedu exercises [--db name] [id]        list exercises, or show one
	raedu grade [--db name] <id> <expr>     grade a submission
	raedu serve                             start the HTTP API
	raedu discover                          find servers on the local network

Configuration is read from defaults, then the config file, then RAEDU_*
environment variables, then command-line flags.
*/
package main

import (
	"os"

	"github.com/spf13/cobra"

	"raedu/internal/banner"
	"raedu/internal/config"
	rerrors "raedu/internal/errors"
	"raedu/internal/logging"
	"raedu/internal/service"
)

// globalFlags are bound to persistent flags on the root command.
type globalFlags struct {
	configFile   string
	dataDir      string
	catalogPath  string
	previewLimit int
	collation    string
	logLevel     string
	logJSON      bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "raedu",
	Short:         "Step-by-step relational algebra",
	Version:       banner.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Path to configuration file")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Directory holding dataset folders")
	pf.StringVar(&flags.catalogPath, "catalog", "", "Path to the catalog file (default <data-dir>/catalog.db)")
	pf.IntVar(&flags.previewLimit, "preview", 0, "Rows shown per trace step")
	pf.StringVar(&flags.collation, "collation", "", "String ordering: binary, nocase, unicode, unicode:<locale>")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.logJSON, "log-json", false, "Enable JSON log output")

	rootCmd.SetVersionTemplate("raedu version {{.Version}}\n")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(rerrors.FormatError(err))
		os.Exit(1)
	}
}

// loadConfig loads configuration into the global manager, applies the
// flags the user set explicitly, and configures logging.
func loadConfig(cmd *cobra.Command) error {
	mgr := config.Global()
	if err := mgr.Load(flags.configFile); err != nil {
		return err
	}
	cfg := mgr.Get()

	fs := cmd.Flags()
	if fs.Changed("data-dir") {
		cfg.DataDir = flags.dataDir
	}
	if fs.Changed("catalog") {
		cfg.CatalogPath = flags.catalogPath
	}
	if fs.Changed("preview") {
		cfg.PreviewLimit = flags.previewLimit
	}
	if fs.Changed("collation") {
		cfg.Collation = flags.collation
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if fs.Changed("log-json") {
		cfg.LogJSON = flags.logJSON
	}
	applyServeFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	mgr.Set(cfg)

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	if cfg.ConfigFile != "" {
		logging.NewLogger("main").Debug("Configuration loaded", "file", cfg.ConfigFile)
	}
	return nil
}

// openService opens the service for the loaded configuration. The
// caller closes it.
func openService() (*service.Service, error) {
	return service.New(config.Global().Get())
}
