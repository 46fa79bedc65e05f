package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/media"
)

// RouterDeps carries everything the HTTP surface needs
type RouterDeps struct {
	Service              Identifier
	Store                media.Store
	WebSocket            http.HandlerFunc
	AllowedOrigins       []string
	MaxUploadBytes       int64
	FaceModel            string
	NotificationsEnabled bool
	Log                  *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	httpLog := deps.Log.Named("http")
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(httpLog))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	personHandler := &PersonHandler{Service: deps.Service, MaxUploadBytes: deps.MaxUploadBytes, Log: httpLog}
	searchHandler := &SearchHandler{Service: deps.Service, MaxUploadBytes: deps.MaxUploadBytes, Log: httpLog}
	sightingHandler := &SightingHandler{Service: deps.Service, Log: httpLog}
	locationHandler := &LocationHandler{Log: httpLog}
	healthHandler := &HealthHandler{FaceModel: deps.FaceModel, NotificationsEnabled: deps.NotificationsEnabled}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Group(func(r chi.Router) {
			// websocket and asset routes are not time-bounded
			r.Use(middleware.Timeout(120 * time.Second))

			r.Route("/persons", func(r chi.Router) {
				r.Post("/", personHandler.RegisterPerson)
				r.Get("/", personHandler.ListPersons)
				r.Route("/{person_id}", func(r chi.Router) {
					r.Get("/", personHandler.GetPerson)
					r.Get("/sightings", personHandler.ListPersonSightings)
				})
			})

			r.Post("/search", searchHandler.Search)
			r.Post("/camera_search", searchHandler.CameraSearch)
			r.Get("/sightings/{sighting_id}", sightingHandler.GetSighting)
			r.Post("/location", locationHandler.UpdateLocation)
		})

		if deps.WebSocket != nil {
			r.Get("/ws", deps.WebSocket)
		}

		r.Get("/uploads/*", AssetServer(deps.Store, media.AssetTypeUpload, UploadsRoute, httpLog))
		r.Get("/sightings_media/*", AssetServer(deps.Store, media.AssetTypeSighting, SightingsMediaRoute, httpLog))
	})

	return r
}
