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
Package server implements the raedu HTTP API.

Server Architecture Overview:
=============================

The server is a thin JSON layer over service.Service built on gin. Every
request passes through the same middleware chain:

 1. Recovery: panics become 500 responses
 2. Request ID: X-Request-ID is taken from the request or generated
 3. Access log and metrics: one log line and one counter per request
 4. CORS: headers for browser front ends (when configured)

Evaluation and grading are additionally rate limited per client.

Routes:
=======

	GET  /health                              summary with cache stats
	GET  /health/live                         liveness check
	GET  /health/ready                        readiness check (catalog and data dir)
	GET  /metrics                             Prometheus metrics
	GET  /api/databases                       imported databases
	GET  /api/databases/:db/schema            tables, types and sample rows
	GET  /api/databases/:db/exercises         exercise summaries
	GET  /api/databases/:db/exercises/:id     one exercise
	POST /api/evaluate                        trace an expression
	POST /api/grade                           grade an expression

Errors:
=======

Errors are returned as {"error": {...}} with the structured fields of
the raedu error. Syntax errors map to 400 and carry the position,
semantic errors to 422, missing databases and exercises to 404.
*/
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"raedu/internal/health"
	"raedu/internal/logging"
	"raedu/internal/metrics"
	"raedu/internal/service"
)

// Options configures the HTTP server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Version is reported by /health.
	Version string

	// RateLimit is the number of evaluations and gradings allowed per
	// client per minute. Zero disables limiting.
	RateLimit int

	// CORSOrigin is sent as Access-Control-Allow-Origin. Empty disables
	// CORS headers.
	CORSOrigin string
}

// Server serves the raedu API over HTTP.
type Server struct {
	opts      Options
	svc       *service.Service
	router    *gin.Engine
	logger    *logging.Logger
	checker   *health.Checker
	startedAt time.Time

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
}

// New creates a server for svc.
func New(svc *service.Service, opts Options) *Server {
	s := &Server{
		opts:      opts,
		svc:       svc,
		logger:    logging.NewLogger("http"),
		checker:   health.NewChecker(opts.Version),
		startedAt: time.Now(),
	}
	s.checker.RegisterCheck("catalog", health.CatalogCheck(func() (int, error) {
		dbs, err := svc.Databases()
		return len(dbs), err
	}))
	s.checker.RegisterCheck("data_dir", health.DirCheck(svc.DataDir()))
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(AccessLog(s.logger))
	if s.opts.CORSOrigin != "" {
		router.Use(CORS(s.opts.CORSOrigin))
	}

	router.GET("/health", s.handleHealth)
	router.GET("/health/live", s.handleLive)
	router.GET("/health/ready", s.handleReady)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.GET("/databases", s.handleDatabases)
	api.GET("/databases/:db/schema", s.handleSchema)
	api.GET("/databases/:db/exercises", s.handleExercises)
	api.GET("/databases/:db/exercises/:id", s.handleExercise)

	limited := api.Group("")
	if s.opts.RateLimit > 0 {
		limited.Use(RateLimit(s.opts.RateLimit, burstFor(s.opts.RateLimit)))
	}
	limited.POST("/evaluate", s.handleEvaluate)
	limited.POST("/grade", s.handleGrade)

	return router
}

// burstFor allows a short burst of a quarter of the per-minute budget.
func burstFor(perMinute int) int {
	if b := perMinute / 4; b > 1 {
		return b
	}
	return 1
}

// Listen binds the listen address. It returns the bound address, which
// differs from Options.Addr when the port is 0.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.logger.Error("Failed to listen", "address", s.opts.Addr, "error", err)
		return nil, err
	}
	s.mu.Lock()
	s.listener = ln
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Serve accepts connections on the bound listener until Stop is called.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, ln := s.http, s.listener
	s.mu.Unlock()
	if srv == nil {
		return errors.New("server: Serve called before Listen")
	}

	s.logger.Info("HTTP API listening", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens and serves. It blocks until the server stops.
func (s *Server) Start() error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP API")
	return srv.Shutdown(ctx)
}
