package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catdomains/internal/config"
	"catdomains/internal/database"
	"catdomains/internal/handlers"
	"catdomains/internal/logger"
	"catdomains/internal/services"
	"catdomains/internal/web"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)

	// 2. Init DB
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to init DB")
	}
	if _, err := services.EnsureDefaultEntity(context.Background(), db, cfg.DefaultEntity); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure default entity")
	}
	if len(cfg.Allowlist()) == 0 {
		log.Warn().Msg("ALLOW_EMAIL_ADDRESSES is empty: no domain can be added or imported")
	}
	if cfg.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN is empty: the admin API is not protected")
	}

	// 3. Services
	domSvc := services.NewDomainService(db, cfg.Allowlist)
	importSvc := services.NewImportService(db, cfg.Allowlist)
	linkSvc := services.NewLinkService(db, cfg.Allowlist)

	// 4. API Server & HTML Renderer
	e := echo.New()
	e.HideBanner = true
	e.Use(web.RequestID())
	e.Use(web.RequestLogger())
	e.Use(middleware.Recover())

	renderer, err := web.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load templates")
	}
	e.Renderer = renderer

	h := handlers.NewDomainHandler(domSvc, importSvc, linkSvc, cfg.MaxUploadBytes)
	handlers.RegisterRoutes(e, h, web.AdminAuth(cfg.AdminToken))

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("categories-domains starting")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
