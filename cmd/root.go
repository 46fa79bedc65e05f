package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/missingpersons/config"
	"github.com/camden-git/missingpersons/database"
	"github.com/camden-git/missingpersons/logger"
	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/media/dlib"
	"github.com/camden-git/missingpersons/media/opencv"
)

var rootCmd = &cobra.Command{
	Use:   "missingpersons",
	Short: "Face identification service for missing person reports",
	Long: `missingpersons registers missing persons with a reference photo, matches
uploaded or live camera photos against the registry, logs sightings and sends
SMS alerts to the registered contact when a match is found.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// bootstrap loads the configuration and builds the logger every command needs
func bootstrap(component string) (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "missingpersons")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log.Named(component), nil
}

// openStore creates the media store with its upload and sighting directories
func openStore(cfg config.Config, log *zap.Logger) (*media.LocalStorage, error) {
	store, err := media.NewLocalStorage(cfg.MediaStoragePath, map[media.AssetType]string{
		media.AssetTypeUpload:   filepath.Base(cfg.UploadsPath),
		media.AssetTypeSighting: filepath.Base(cfg.SightingsPath),
	}, log.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}
	return store, nil
}

// newExtractor loads the face backend selected by FACE_BACKEND
func newExtractor(cfg config.Config, log *zap.Logger) (media.FaceExtractor, error) {
	switch cfg.FaceBackend {
	case "opencv":
		return opencv.NewExtractor(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath, cfg.FaceEmbeddingModelPath, log.Named("opencv"))
	default:
		return dlib.NewExtractor(cfg.DlibModelsPath, log.Named("dlib"))
	}
}

// openDatabase opens and migrates the registry database. The returned sql.DB
// shares the gorm connection pool and is used for raw queries.
func openDatabase(cfg config.Config, log *zap.Logger) (*gorm.DB, *sql.DB, error) {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	db, err := database.InitGormDB(cfg.DatabasePath, log.Named("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return db, sqlDB, nil
}
