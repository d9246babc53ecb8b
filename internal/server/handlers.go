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

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	rerrors "raedu/internal/errors"
	"raedu/internal/health"
	"raedu/internal/service"
)

// EvaluateRequest is the body of POST /api/evaluate.
type EvaluateRequest struct {
	Database     string `json:"database"`
	Expression   string `json:"expression"`
	PreviewLimit *int   `json:"preview_limit,omitempty"`
}

// GradeRequest is the body of POST /api/grade.
type GradeRequest struct {
	Database   string `json:"database"`
	ExerciseID string `json:"exercise_id" binding:"required"`
	Expression string `json:"expression"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message  string            `json:"message"`
	Code     int               `json:"code,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	Category string            `json:"category,omitempty"`
	Detail   string            `json:"detail,omitempty"`
	Hint     string            `json:"hint,omitempty"`
	Position *rerrors.Position `json:"position,omitempty"`
}

type databaseResponse struct {
	Name       string   `json:"name"`
	Tables     []string `json:"tables"`
	TableCount int      `json:"table_count"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":         "ok",
		"version":        s.opts.Version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"cache":          s.svc.CacheStats(),
	}
	dbs, err := s.svc.Databases()
	if err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["error"] = err.Error()
	} else {
		body["databases"] = len(dbs)
	}
	c.JSON(status, body)
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, s.checker.Live())
}

// handleReady fails only on unhealthy checks; a degraded server still
// answers requests.
func (s *Server) handleReady(c *gin.Context) {
	resp := s.checker.RunChecks()
	status := http.StatusOK
	if resp.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) handleDatabases(c *gin.Context) {
	dbs, err := s.svc.Databases()
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]databaseResponse, len(dbs))
	for i, db := range dbs {
		out[i] = databaseResponse{Name: db.Name, Tables: db.Tables, TableCount: len(db.Tables)}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSchema(c *gin.Context) {
	schema, err := s.svc.Schema(c.Param("db"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}

func (s *Server) handleExercises(c *gin.Context) {
	list, err := s.svc.Exercises(c.Param("db"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleExercise(c *gin.Context) {
	q, err := s.svc.Exercise(c.Param("db"), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, rerrors.NewValidationError("invalid request body").WithDetail(err.Error()).WithCause(err))
		return
	}
	var opts []service.EvalOption
	if req.PreviewLimit != nil {
		opts = append(opts, service.WithPreview(*req.PreviewLimit))
	}

	trace, err := s.svc.Evaluate(c.Request.Context(), req.Database, req.Expression, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}

func (s *Server) handleGrade(c *gin.Context) {
	var req GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, rerrors.NewValidationError("invalid request body").WithDetail(err.Error()).WithCause(err))
		return
	}

	res, err := s.svc.Grade(c.Request.Context(), req.Database, req.ExerciseID, req.Expression)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail writes err as a JSON error response.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := errorResponse(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// errorResponse maps err to an HTTP status and body.
func errorResponse(err error) (int, ErrorBody) {
	e, ok := rerrors.As(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return http.StatusServiceUnavailable, ErrorBody{Message: "request cancelled"}
		}
		return http.StatusInternalServerError, ErrorBody{Message: "internal error"}
	}

	body := ErrorBody{
		Message:  e.Message,
		Code:     int(e.Code),
		Kind:     e.Kind(),
		Category: string(e.Category),
		Detail:   e.Detail,
		Hint:     e.Hint,
		Position: e.Position,
	}
	return statusFor(e), body
}

func statusFor(e *rerrors.Error) int {
	if rerrors.IsNotFound(e) {
		return http.StatusNotFound
	}
	switch e.Category {
	case rerrors.CategorySyntax, rerrors.CategoryValidation:
		return http.StatusBadRequest
	case rerrors.CategorySemantic:
		return http.StatusUnprocessableEntity
	case rerrors.CategoryDataset:
		if e.Code == rerrors.ErrCodeNoDatabase {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case rerrors.CategoryExercise:
		if e.Code == rerrors.ErrCodeNoSolution {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}
