/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package reconciler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"escrow-bot-go/internal/escrow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	WebhookPath         = "/webhooks/payments"
	HealthPath          = "/healthz"
	SignatureHeader     = "Stripe-Signature"
	DefaultMaxBodyBytes = 64 * 1024
	healthCheckTimeout  = 2 * time.Second
)

// HealthChecker reports whether the service's dependencies are reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server exposes the reconciler over HTTP
type Server struct {
	reconciler   *Reconciler
	health       HealthChecker
	maxBodyBytes int64
	router       *gin.Engine
}

// NewServer creates the webhook HTTP server
func NewServer(reconciler *Reconciler, health HealthChecker, maxBodyBytes int64) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		reconciler:   reconciler,
		health:       health,
		maxBodyBytes: maxBodyBytes,
		router:       router,
	}

	router.POST(WebhookPath, s.handleWebhook)
	router.GET(HealthPath, s.handleHealth)

	return s
}

// Handler returns the http.Handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read body"})
		return
	}

	err = s.reconciler.HandleWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, escrow.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "temporary failure"})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			zap.L().Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
