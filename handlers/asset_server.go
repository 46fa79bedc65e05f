package handlers

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/media"
)

// AssetServer creates a handler serving stored files of one asset type.
// routePrefix is the URL prefix in front of the filename, for example
//
//	r.Get("/api/uploads/*", AssetServer(store, media.AssetTypeUpload, UploadsRoute, log))
func AssetServer(store media.Store, assetType media.AssetType, routePrefix string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := strings.TrimPrefix(r.URL.Path, routePrefix)

		if filename == "" || strings.Contains(filename, "..") || strings.Contains(filename, "/") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		fullPath, err := store.GetFullPath(assetType, filename)
		if err != nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Warn("asset access outside designated directory",
				zap.String("request", r.URL.Path), zap.Error(err))
			return
		}

		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Error("error stating asset file", zap.String("path", fullPath), zap.Error(err))
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, fullPath)
	}
}
