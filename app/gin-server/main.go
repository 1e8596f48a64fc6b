package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/config"
	"github.com/yoockh/yoointerview/internal/api/handlers"
	"github.com/yoockh/yoointerview/internal/api/middleware"
	"github.com/yoockh/yoointerview/internal/api/routes"
	"github.com/yoockh/yoointerview/internal/bootstrap"
	"github.com/yoockh/yoointerview/internal/logger"
)

const shutdownGrace = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.NewContainer(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		log.WithError(err).Fatal("failed to initialise back-ends")
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("error while releasing back-ends")
		}
	}()

	// workers stop only after the HTTP server has drained
	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()

	pool := c.WorkerPool()
	if err := pool.Start(workCtx); err != nil {
		log.WithError(err).Fatal("failed to start evaluation workers")
	}
	go c.SweepSessions(workCtx, cfg.SessionMaxAge, cfg.CleanupInterval)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 16 << 20

	routes.RegisterRoutes(r, routes.Deps{
		Interview: handlers.NewInterviewHandler(c.Interview, c.STT),
		Session:   handlers.NewSessionHandler(c.Sessions),
		Admin:     handlers.NewAdminHandler(c.Sessions, c.Interview),
		WS: handlers.NewWSHandler(handlers.WSDeps{
			Sessions:    c.Sessions,
			Interview:   c.Interview,
			Questions:   c.Questions,
			Transitions: c.Transitions,
			Synth:       c.Synth,
			STT:         c.STT,
			Log:         log,
		}),
		JWT: middleware.JWTConfig{
			Secret:   cfg.AdminJWTSecret,
			Issuer:   cfg.AdminJWTIssuer,
			Audience: cfg.AdminJWTAudience,
		},
		Logger: log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("interview server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
			return
		}
		listenErr <- nil
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			log.WithError(err).Error("server failed")
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}

	stopWork()
	pool.Wait()
	log.Info("interview server stopped")
}
