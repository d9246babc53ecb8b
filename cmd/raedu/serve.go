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
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"raedu/internal/banner"
	"raedu/internal/config"
	"raedu/internal/discovery"
	"raedu/internal/logging"
	"raedu/internal/server"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

var serveFlags struct {
	addr       string
	advertise  bool
	instance   string
	rateLimit  int
	corsOrigin string
	noBanner   bool
}

var discoverFlags struct {
	timeout time.Duration
	quiet   bool
}

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "HTTP listen address (default :8080)")
	f.BoolVar(&serveFlags.advertise, "advertise", false, "Publish the server over mDNS")
	f.StringVar(&serveFlags.instance, "instance", "", "Instance name used for mDNS (default: hostname)")
	f.IntVar(&serveFlags.rateLimit, "rate-limit", 0, "Evaluations per minute per client, 0 disables")
	f.StringVar(&serveFlags.corsOrigin, "cors-origin", "", "Allowed CORS origin, empty disables CORS headers")
	f.BoolVar(&serveFlags.noBanner, "no-banner", false, "Do not print the startup banner")

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Find raedu servers on the local network",
		Args:  cobra.NoArgs,
		RunE:  runDiscover,
	}
	discoverCmd.Flags().DurationVar(&discoverFlags.timeout, "timeout", discovery.DefaultTimeout, "How long to listen for answers")
	discoverCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	discoverCmd.Flags().BoolVarP(&discoverFlags.quiet, "quiet", "q", false, "Only print server URLs")

	rootCmd.AddCommand(serveCmd, discoverCmd)
}

// applyServeFlags copies explicitly set serve flags into cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("addr") {
		cfg.HTTPAddr = serveFlags.addr
	}
	if fs.Changed("advertise") {
		cfg.Advertise = serveFlags.advertise
	}
	if fs.Changed("instance") {
		cfg.InstanceName = serveFlags.instance
	}
	if fs.Changed("rate-limit") {
		cfg.RateLimit = serveFlags.rateLimit
	}
	if fs.Changed("cors-origin") {
		cfg.CORSOrigin = serveFlags.corsOrigin
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()
	log := logging.NewLogger("main")

	if !serveFlags.noBanner && term.IsTerminal(int(os.Stdout.Fd())) {
		banner.PrintServerWithConfig(cfg)
	}

	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := server.New(svc, server.Options{
		Addr:       cfg.HTTPAddr,
		Version:    banner.Version,
		RateLimit:  cfg.RateLimit,
		CORSOrigin: cfg.CORSOrigin,
	})
	addr, err := srv.Listen()
	if err != nil {
		return err
	}
	log.Info("raedu server starting",
		"version", banner.Version,
		"addr", addr.String(),
		"data_dir", cfg.DataDir,
		"catalog", cfg.CatalogFile(),
	)

	var adv *discovery.Advertiser
	if cfg.Advertise {
		// The mDNS library logs non-critical IPv6 errors through the standard logger.
		stdlog.SetOutput(io.Discard)
		adv = discovery.NewAdvertiser(discovery.Config{
			Instance: cfg.InstanceName,
			HTTPAddr: addr.String(),
			Version:  banner.Version,
		})
		if err := adv.Start(); err != nil {
			log.Warn("mDNS advertisement disabled", "error", err)
			adv = nil
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down raedu server")
		if adv != nil {
			adv.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server error", "error", err)
		return err
	}
	log.Info("raedu server stopped")
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	stdlog.SetOutput(io.Discard)
	out := cmd.OutOrStdout()

	if !discoverFlags.quiet && !jsonOutput {
		printInfo("Scanning for raedu servers (timeout: %s)...", discoverFlags.timeout)
	}
	servers, err := discovery.Discover(cmd.Context(), discoverFlags.timeout)
	if err != nil {
		return err
	}

	switch {
	case jsonOutput:
		return printJSON(out, servers)
	case discoverFlags.quiet:
		for _, s := range servers {
			fmt.Fprintln(out, s.URL())
		}
		return nil
	}

	if len(servers) == 0 {
		printWarning("No raedu servers found on the network.")
		return nil
	}
	rows := make([][]string, len(servers))
	for i, s := range servers {
		rows[i] = []string{s.Instance, s.URL(), s.Version}
	}
	printTable(out, []string{"instance", "url", "version"}, rows)
	printSuccess("Found %d server(s)", len(servers))
	return nil
}
