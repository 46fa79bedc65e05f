package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/services"
)

type locationUpdate struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	SessionID string   `json:"session_id"`
}

// LocationHandler accepts client location pings. They are only logged.
type LocationHandler struct {
	Log *zap.Logger
}

func (lh *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req locationUpdate
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid form body")
			return
		}
		var err error
		if req.Latitude, err = optionalFloat(r.FormValue("latitude")); err != nil {
			WriteAPIError(w, http.StatusBadRequest, CodeValidationFailed, "latitude must be a number")
			return
		}
		if req.Longitude, err = optionalFloat(r.FormValue("longitude")); err != nil {
			WriteAPIError(w, http.StatusBadRequest, CodeValidationFailed, "longitude must be a number")
			return
		}
		req.SessionID = r.FormValue("session_id")
	}

	if err := validate.Struct(req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidationFailed, validationMessage(err))
		return
	}

	lh.Log.Info("client location update",
		zap.Float64("latitude", *req.Latitude),
		zap.Float64("longitude", *req.Longitude),
		zap.String("session", services.HashSessionID(req.SessionID)))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
