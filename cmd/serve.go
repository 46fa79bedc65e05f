package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/handlers"
	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/realtime"
	"github.com/camden-git/missingpersons/repository"
	"github.com/camden-git/missingpersons/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API serving registration, search, camera search, sighting
replay and the live event websocket.

Examples:
  missingpersons serve
  PORT=9000 FACE_BACKEND=opencv missingpersons serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", "", "Listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap("server")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if port := mustGetString(cmd, "port"); port != "" {
		cfg.Port = port
	}

	db, sqlDB, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	for _, assetType := range []media.AssetType{media.AssetTypeUpload, media.AssetTypeSighting} {
		if _, err := store.EnsureDir(assetType); err != nil {
			return err
		}
	}

	extractor, err := newExtractor(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to load face backend %s: %w", cfg.FaceBackend, err)
	}
	defer extractor.Close()

	var sender services.SMSSender
	if cfg.Twilio.Enabled() {
		sender = services.NewTwilioClient(cfg.Twilio.BaseURL, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken,
			cfg.Twilio.FromNumber, cfg.AlertTimeout, log.Named("twilio"))
	} else {
		log.Warn("twilio credentials not configured, sighting alerts are disabled")
	}
	notifier := services.NewAlertNotifier(sender, cfg.AlertTimeout, log.Named("notifier"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(cfg.AllowedOrigins, log.Named("ws"))
	go hub.Run(ctx)

	service := services.NewIdentificationService(
		repository.NewPersonRepository(db),
		repository.NewSightingRepository(db),
		extractor,
		media.NewProcessor(store, log.Named("media")),
		services.NewMatcher(cfg.MatchTolerance),
		notifier,
		hub,
		services.IdentificationOptions{
			Probe: media.ProbeOptions{
				MaxWidth:  cfg.ProbeMaxWidth,
				MaxHeight: cfg.ProbeMaxHeight,
				Quality:   cfg.ProbeJPEGQuality,
			},
			SightingMaxSize:     cfg.SightingMaxSize,
			SightingJPEGQuality: cfg.SightingJPEGQuality,
		},
		log.Named("identification"),
	)

	router := handlers.NewRouter(handlers.RouterDeps{
		Service:              service,
		Store:                store,
		WebSocket:            hub.ServeWS,
		AllowedOrigins:       cfg.AllowedOrigins,
		MaxUploadBytes:       cfg.MaxUploadBytes,
		FaceModel:            extractor.ModelName(),
		NotificationsEnabled: notifier.Enabled(),
		Log:                  log,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("server starting",
		zap.String("addr", server.Addr),
		zap.String("database", cfg.DatabasePath),
		zap.String("media", cfg.MediaStoragePath),
		zap.String("face_model", extractor.ModelName()),
		zap.Float64("match_tolerance", cfg.MatchTolerance),
		zap.Bool("notifications", notifier.Enabled()))

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
