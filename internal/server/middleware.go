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
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"raedu/internal/logging"
	"raedu/internal/metrics"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID takes the request ID from the request or generates one, and
// echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = logging.GenerateRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog logs one line per request and records HTTP metrics.
func AccessLog(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := logging.NewRequestContext(c.GetString(requestIDKey), c.ClientIP(), c.Request.Method+" "+c.Request.URL.Path)
		c.Next()

		status := c.Writer.Status()
		metrics.RecordRequest(c.Request.Method, c.FullPath(), status, rc.Duration())
		if last := c.Errors.Last(); last != nil && status >= http.StatusInternalServerError {
			rc.LogError(logger, last.Err, "status", status)
			return
		}
		if logger.Enabled(logging.DEBUG) || status >= http.StatusBadRequest {
			rc.LogComplete(logger, status)
		}
	}
}

// CORS sets the CORS headers and answers preflight requests.
func CORS(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// clientLimiters holds one token bucket per client address.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	lastGC   time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(limit rate.Limit, burst int, ttl time.Duration) *clientLimiters {
	return &clientLimiters{
		limiters: make(map[string]*clientLimiter),
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
		lastGC:   time.Now(),
	}
}

// get returns the limiter for client, creating one if needed. Limiters
// idle for longer than ttl are dropped along the way.
func (cl *clientLimiters) get(client string, now time.Time) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if now.Sub(cl.lastGC) > cl.ttl {
		for k, l := range cl.limiters {
			if now.Sub(l.lastSeen) > cl.ttl {
				delete(cl.limiters, k)
			}
		}
		cl.lastGC = now
	}

	l, ok := cl.limiters[client]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.limiters[client] = l
	}
	l.lastSeen = now
	return l.limiter
}

// RateLimit limits requests per client IP to requestsPerMinute with the
// given burst.
func RateLimit(requestsPerMinute, burst int) gin.HandlerFunc {
	limiters := newClientLimiters(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst, 15*time.Minute)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = c.RemoteIP()
		}
		if !limiters.get(ip, time.Now()).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"message": "rate limit exceeded", "category": "RATE_LIMIT"},
			})
			return
		}
		c.Next()
	}
}
