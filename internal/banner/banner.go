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
Package banner provides the startup banner for raedu.

The ASCII logo is embedded from banner.txt at compile time. Colors use
plain ANSI escape sequences (Format: \033[<code>m); callers that write
to a non-terminal should pass color=false.

Usage:

	banner.PrintServerWithConfig(cfg)
*/
package banner

import (
	_ "embed" // Required for the //go:embed directive
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"raedu/internal/config"
)

//go:embed banner.txt
var banner string

// ANSI escape codes for terminal text formatting.
const (
	AnsiRed    = "\033[31m"
	AnsiGreen  = "\033[32m"
	AnsiYellow = "\033[33m"
	AnsiCyan   = "\033[36m"
	AnsiReset  = "\033[0m"
	AnsiBold   = "\033[1m"
	AnsiDim    = "\033[2m"
)

// Version information for raedu.
const (
	Version   = "0.4.0"
	Copyright = "(c)2026 Firefly Software Solutions Inc"
	License   = "Licensed under Apache 2.0"
)

// Print displays the logo with version and copyright information.
func Print() {
	PrintTo(os.Stdout)
}

// PrintTo writes the logo with version and copyright information to w.
func PrintTo(w io.Writer) {
	fmt.Fprintln(w, AnsiCyan+banner+AnsiReset)
	fmt.Fprintln(w, AnsiCyan+AnsiBold+":: raedu ::                     (v"+Version+")"+AnsiReset)
	fmt.Fprintln(w, AnsiGreen+AnsiBold+Copyright+AnsiReset)
	fmt.Fprintln(w, AnsiGreen+AnsiBold+License+AnsiReset)
	fmt.Fprintln(w)
}

// PrintLogSeparator prints a visual separator before logs start.
func PrintLogSeparator() {
	printLogSeparator(os.Stdout)
}

func printLogSeparator(w io.Writer) {
	const lineWidth = 78
	arrow := "v"
	text := " LOGS START HERE "
	padding := (lineWidth - len(text) - 4) / 2 // 4 for arrows on each side
	if padding < 0 {
		padding = 0
	}
	line := strings.Repeat("-", padding)
	fmt.Fprintf(w, "  %s%s %s%s%s %s%s\n",
		AnsiYellow, arrow+arrow+line,
		AnsiBold, text, AnsiReset+AnsiYellow,
		line+arrow+arrow, AnsiReset)
	fmt.Fprintln(w)
}

// PrintServerWithConfig prints the server banner with a summary of cfg.
func PrintServerWithConfig(cfg *config.Config) {
	PrintServerWithConfigTo(os.Stdout, cfg)
}

// PrintServerWithConfigTo writes the server banner with a summary of cfg to w.
func PrintServerWithConfigTo(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, AnsiCyan+banner+AnsiReset)
	fmt.Fprintln(w, AnsiCyan+AnsiBold+":: raedu server ::              (v"+Version+")"+AnsiReset)
	fmt.Fprintln(w, AnsiDim+"  Step-by-step relational algebra"+AnsiReset)
	fmt.Fprintln(w)

	printConfigSource(w, cfg)
	printCompactConfig(w, cfg)

	fmt.Fprintln(w, AnsiDim+"  "+Copyright+AnsiReset)
	fmt.Fprintln(w)

	printLogSeparator(w)
}

func printConfigSource(w io.Writer, cfg *config.Config) {
	fmt.Fprint(w, "  "+AnsiDim+"Config: "+AnsiReset)
	if cfg.ConfigFile != "" {
		fmt.Fprintln(w, AnsiYellow+cfg.ConfigFile+AnsiReset)
	} else {
		fmt.Fprintln(w, AnsiDim+"defaults + environment"+AnsiReset)
	}
	fmt.Fprintln(w)
}

func printCompactConfig(w io.Writer, cfg *config.Config) {
	const lineWidth = 78

	printSectionHeader(w, "Server", lineWidth)
	rate := AnsiYellow + "off" + AnsiReset
	if cfg.RateLimit > 0 {
		rate = fmt.Sprintf("%d/min", cfg.RateLimit)
	}
	cors := cfg.CORSOrigin
	if cors == "" {
		cors = AnsiDim + "off" + AnsiReset
	}
	printRow3(w,
		fmtKV("HTTP", AnsiGreen+cfg.HTTPAddr+AnsiReset),
		fmtKV("Rate", rate),
		fmtKV("CORS", cors))
	printRow2(w, fmtKV("Log", cfg.LogLevel), fmtKV("JSON logs", fmt.Sprint(cfg.LogJSON)))
	fmt.Fprintln(w)

	printSectionHeader(w, "Datasets", lineWidth)
	printRow2(w, fmtKV("Data", cfg.DataDir), fmtKV("Catalog", cfg.CatalogFile()))
	fmt.Fprintln(w)

	printSectionHeader(w, "Evaluation", lineWidth)
	cache := AnsiDim + "off" + AnsiReset
	if cfg.CacheEnabled {
		cache = fmt.Sprintf("%d entries, ttl %s", cfg.CacheMaxEntries, cfg.CacheTTL)
	}
	printRow3(w,
		fmtKV("Preview", fmt.Sprintf("%d rows", cfg.PreviewLimit)),
		fmtKV("Collation", cfg.Collation),
		fmtKV("Cache", cache))
	fmt.Fprintln(w)

	printSectionHeader(w, "Features", lineWidth)
	fmt.Fprintf(w, "  %s  %s  %s\n",
		fmtEnabled("mDNS Discovery", cfg.Advertise),
		fmtEnabled("Trace Cache", cfg.CacheEnabled),
		fmtEnabled("Rate Limiting", cfg.RateLimit > 0))
	printRow2(w,
		fmtKV("CPUs", fmt.Sprintf("%d", runtime.NumCPU())),
		fmtKV("GOMAXPROCS", fmt.Sprintf("%d", runtime.GOMAXPROCS(0))))
	fmt.Fprintln(w)
}

func printSectionHeader(w io.Writer, title string, width int) {
	titleLen := len(title) + 4 // "[ title ]"
	leftPad := 2
	rightPad := width - leftPad - titleLen
	if rightPad < 0 {
		rightPad = 0
	}
	fmt.Fprintf(w, "  %s[ %s%s%s ]%s%s\n",
		AnsiDim+strings.Repeat("-", leftPad),
		AnsiReset+AnsiCyan+AnsiBold, title, AnsiReset+AnsiDim,
		strings.Repeat("-", rightPad),
		AnsiReset)
}

func fmtKV(key, value string) string {
	return fmt.Sprintf("%s%s:%s %s", AnsiDim, key, AnsiReset, value)
}

func fmtEnabled(name string, enabled bool) string {
	if enabled {
		return AnsiGreen + name + AnsiReset
	}
	return AnsiDim + name + AnsiReset
}

func printRow3(w io.Writer, col1, col2, col3 string) {
	fmt.Fprintf(w, "  %-32s %-26s %s\n", col1, col2, col3)
}

func printRow2(w io.Writer, col1, col2 string) {
	fmt.Fprintf(w, "  %-40s %s\n", col1, col2)
}
