package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultUploadsSubDir   = "uploads"
	DefaultSightingsSubDir = "sightings"
	DefaultFaceBackend     = "dlib"
	DefaultMatchTolerance  = 0.6
)

const (
	defaultMaxUploadMB         = 500
	defaultProbeMaxWidth       = 400
	defaultProbeMaxHeight      = 300
	defaultProbeJPEGQuality    = 70
	defaultSightingJPEGQuality = 85
	defaultSightingMaxSize     = 1280
	defaultAlertTimeoutSeconds = 10
	defaultReembedWorkers      = 2
	defaultTwilioBaseURL       = "https://api.twilio.com"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string // overridable for tests and regional endpoints
}

// Enabled reports whether every credential needed to send SMS alerts is present.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

type Config struct {
	Port string

	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // root for reference photos and sighting captures
	UploadsPath      string // full-calculated path for registration photos
	SightingsPath    string // full-calculated path for sighting captures
	MaxUploadBytes   int64

	// face extraction backend: "dlib" or "opencv"
	FaceBackend    string
	DlibModelsPath string

	// opencv backend model paths (DNN)
	FaceDNNNetConfigPath   string
	FaceDNNNetModelPath    string
	FaceEmbeddingModelPath string

	// matching
	MatchTolerance float64

	// probe / sighting image handling
	ProbeMaxWidth       int
	ProbeMaxHeight      int
	ProbeJPEGQuality    int
	SightingJPEGQuality int
	SightingMaxSize     int

	// alerts
	Twilio       TwilioConfig
	AlertTimeout time.Duration

	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	// batch re-embedding
	ReembedWorkers int
}

// source resolves configuration keys from the environment first and an
// optional YAML file second.
type source struct {
	file map[string]string
}

func newSource() (source, error) {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return source{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return source{}, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return source{file: values}, nil
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) getEnvOrDefault(key, defaultValue string) string {
	value := s.lookup(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (s source) getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := s.lookup(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func (s source) getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := s.lookup(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func clampQuality(q int) int {
	if q > 100 {
		return 100
	}
	return q
}

func LoadConfig() (Config, error) {
	src, err := newSource()
	if err != nil {
		return Config{}, err
	}

	mediaStorage := src.getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	uploadsSubDir := src.getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	sightingsSubDir := src.getEnvOrDefault("SIGHTINGS_SUBDIR", DefaultSightingsSubDir)
	if uploadsSubDir == sightingsSubDir {
		return Config{}, fmt.Errorf("UPLOADS_SUBDIR and SIGHTINGS_SUBDIR must differ (both '%s')", uploadsSubDir)
	}

	backend := strings.ToLower(src.getEnvOrDefault("FACE_BACKEND", DefaultFaceBackend))
	if backend != "dlib" && backend != "opencv" {
		return Config{}, fmt.Errorf("unsupported FACE_BACKEND '%s' (expected dlib or opencv)", backend)
	}

	tolerance := src.getEnvFloatOrDefault("MATCH_TOLERANCE", DefaultMatchTolerance)
	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance <= 0 {
		return Config{}, fmt.Errorf("MATCH_TOLERANCE must be a finite number above 0, got %v", tolerance)
	}

	var origins []string
	for _, o := range strings.Split(src.getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := Config{
		Port:                   src.getEnvOrDefault("PORT", "8080"),
		DatabasePath:           src.getEnvOrDefault("DATABASE_PATH", "missing_persons.db"),
		MediaStoragePath:       absMediaStorage,
		UploadsPath:            filepath.Join(absMediaStorage, uploadsSubDir),
		SightingsPath:          filepath.Join(absMediaStorage, sightingsSubDir),
		MaxUploadBytes:         int64(src.getEnvIntOrDefault("MAX_UPLOAD_MB", defaultMaxUploadMB)) << 20,
		FaceBackend:            backend,
		DlibModelsPath:         src.getEnvOrDefault("DLIB_MODELS_PATH", "./models/dlib"),
		FaceDNNNetConfigPath:   src.getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt"),
		FaceDNNNetModelPath:    src.getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel"),
		FaceEmbeddingModelPath: src.getEnvOrDefault("FACE_EMBEDDING_MODEL_PATH", "./models/nn4.small2.v1.t7"),
		MatchTolerance:         tolerance,
		ProbeMaxWidth:          src.getEnvIntOrDefault("PROBE_MAX_WIDTH", defaultProbeMaxWidth),
		ProbeMaxHeight:         src.getEnvIntOrDefault("PROBE_MAX_HEIGHT", defaultProbeMaxHeight),
		ProbeJPEGQuality:       clampQuality(src.getEnvIntOrDefault("PROBE_JPEG_QUALITY", defaultProbeJPEGQuality)),
		SightingJPEGQuality:    clampQuality(src.getEnvIntOrDefault("SIGHTING_JPEG_QUALITY", defaultSightingJPEGQuality)),
		SightingMaxSize:        src.getEnvIntOrDefault("SIGHTING_MAX_SIZE", defaultSightingMaxSize),
		Twilio: TwilioConfig{
			AccountSID: src.lookup("TWILIO_ACCOUNT_SID"),
			AuthToken:  src.lookup("TWILIO_AUTH_TOKEN"),
			FromNumber: src.lookup("TWILIO_PHONE_NUMBER"),
			BaseURL:    src.getEnvOrDefault("TWILIO_BASE_URL", defaultTwilioBaseURL),
		},
		AlertTimeout:   time.Duration(src.getEnvIntOrDefault("ALERT_TIMEOUT_SECONDS", defaultAlertTimeoutSeconds)) * time.Second,
		AllowedOrigins: origins,
		LogLevel:       src.getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      src.getEnvOrDefault("LOG_FORMAT", "json"),
		ReembedWorkers: src.getEnvIntOrDefault("REEMBED_WORKERS", defaultReembedWorkers),
	}

	return cfg, nil
}
