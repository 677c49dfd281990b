// Copyright 2026 The CampusKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuskit/campuskit/internal/audit"
	"github.com/campuskit/campuskit/internal/authz"
	"github.com/campuskit/campuskit/internal/config"
	"github.com/campuskit/campuskit/internal/escalation"
	"github.com/campuskit/campuskit/internal/observability/logger"
	"github.com/campuskit/campuskit/internal/observability/metrics"
	"github.com/campuskit/campuskit/internal/observability/tracing"
	"github.com/campuskit/campuskit/internal/session"
	"github.com/campuskit/campuskit/internal/store/postgres"
	redisstore "github.com/campuskit/campuskit/internal/store/redis"
	"github.com/campuskit/campuskit/internal/token"
	"github.com/campuskit/campuskit/internal/transport/authapi"
	transportHTTP "github.com/campuskit/campuskit/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting campuskit auth core")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	authMetrics, err := metrics.New(cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Audit trail: structured log sink, plus the durable postgres sink
	// when a database password is configured.
	auditSinks := audit.Fanout{audit.NewSlogLogger()}
	var auditHistory transportHTTP.AuditHistory
	if cfg.Database.Password != "" {
		db, err := postgres.New(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
		})
		if err != nil {
			slog.Error("failed to connect to database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx, postgres.AuditSchema); err != nil {
			slog.Error("failed to apply audit schema", logger.Error(err))
			os.Exit(1)
		}
		auditRepo := postgres.NewAuditRepository(db)
		auditSinks = append(auditSinks, auditRepo)
		auditHistory = auditRepo
		slog.Info("audit trail persisted to database")
	}

	// Token store: redis when configured, in-memory otherwise.
	var tokens token.Store = token.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer client.Close()
		tokens = redisstore.NewTokenStore(client, cfg.Redis.KeyPrefix, cfg.Redis.TokenTTL)
		slog.Info("tokens persisted to redis")
	}

	// Auth authority client
	authority := authapi.NewClient(cfg.Authority.BaseURL, tokens, cfg.Authority.Timeout)

	// Session manager and escalation controller
	builder := authz.NewBuilder(authz.DefaultClassification())
	manager := session.NewManager(authority, tokens, builder, auditSinks)
	controller := escalation.NewController(authority, manager, token.NewAdminTokenStore(), auditSinks, escalation.Config{
		Duration:         cfg.Escalation.Duration,
		WarningThreshold: cfg.Escalation.WarningThreshold,
		TickInterval:     cfg.Escalation.TickInterval,
		OnWarning: func(remaining time.Duration) {
			slog.Warn("admin mode expiring soon", "remaining", remaining.String())
		},
		OnExpired: func() {
			slog.Info("admin mode expired")
		},
	})
	defer controller.Close()
	manager.OnLogout(controller.DeEscalate)

	// Restore any stored session before accepting traffic.
	manager.Initialize(ctx)

	// Rate limiter and HTTP surface
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	handler := transportHTTP.NewHandler(manager, controller, authMetrics, auditHistory)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
