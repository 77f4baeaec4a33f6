package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/recordvault/access-api/internal/config"
	"github.com/recordvault/access-api/internal/handler"
	auditHandler "github.com/recordvault/access-api/internal/handler/audit"
	emergencyHandler "github.com/recordvault/access-api/internal/handler/emergency"
	gatewayHandler "github.com/recordvault/access-api/internal/handler/gateway"
	grantHandler "github.com/recordvault/access-api/internal/handler/grant"
	recordHandler "github.com/recordvault/access-api/internal/handler/record"
	requestHandler "github.com/recordvault/access-api/internal/handler/request"
	"github.com/recordvault/access-api/internal/middleware"
	"github.com/recordvault/access-api/internal/repository/postgres"
	"github.com/recordvault/access-api/internal/router"
	auditService "github.com/recordvault/access-api/internal/service/audit"
	emergencyService "github.com/recordvault/access-api/internal/service/emergency"
	eventService "github.com/recordvault/access-api/internal/service/event"
	gatewayService "github.com/recordvault/access-api/internal/service/gateway"
	permissionService "github.com/recordvault/access-api/internal/service/permission"
	recordService "github.com/recordvault/access-api/internal/service/record"
	requestService "github.com/recordvault/access-api/internal/service/request"
	"github.com/recordvault/access-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	baseRepo := postgres.NewBaseRepository(db)
	recordRepo := postgres.NewRecordRepository(baseRepo)
	grantRepo := postgres.NewGrantRepository(baseRepo)
	requestRepo := postgres.NewAccessRequestRepository(baseRepo)
	auditRepo := postgres.NewAuditRepository(baseRepo)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	m := metrics.NewMetrics("access_api")

	permissionSvc := permissionService.NewService(grantRepo)
	auditSvc := auditService.NewService(auditRepo, m)
	emergencySvc := emergencyService.NewService(cfg.Token)
	eventSvc := eventService.NewService(outboxRepo)
	recordSvc := recordService.NewService(recordRepo)
	requestSvc := requestService.NewService(requestRepo, recordRepo, permissionSvc, auditSvc, eventSvc)
	gatewaySvc := gatewayService.NewService(
		recordService.NewCachedStore(recordRepo, 30*time.Second),
		permissionSvc,
		emergencySvc,
		auditSvc,
		m,
	)

	h := handler.NewHandler(db)

	r := router.New(h, router.Config{
		RateLimit:  rate.Limit(cfg.RateLimit.RPS),
		RateBurst:  cfg.RateLimit.Burst,
		Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		CORSConfig: middleware.DefaultCORSConfig(),
	},
		requestHandler.NewHandler(requestSvc),
		grantHandler.NewHandler(permissionSvc, recordSvc, auditSvc, eventSvc),
		recordHandler.NewHandler(recordSvc),
		emergencyHandler.NewHandler(emergencySvc),
		gatewayHandler.NewHandler(gatewaySvc),
		auditHandler.NewHandler(auditSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("access api started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
