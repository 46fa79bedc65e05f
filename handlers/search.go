package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/services"
)

type SearchHandler struct {
	Service        Identifier
	MaxUploadBytes int64
	Log            *zap.Logger
}

// Search matches an uploaded photo (multipart field search_image) against the registry
func (sh *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, sh.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			WriteAPIError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "Upload exceeds the maximum allowed size")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Expected a multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	image, err := readFormFile(r, "search_image")
	if err != nil {
		if errors.Is(err, errMissingFile) {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Missing required file: search_image")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	result, err := sh.Service.Search(r.Context(), image)
	if err != nil {
		writeServiceError(w, sh.Log, err, "search")
		return
	}
	writeJSON(w, http.StatusOK, newSearchResponse(result))
}

// cameraSearchRequest accepts both form fields and a JSON body
type cameraSearchRequest struct {
	ImageData string   `json:"image_data"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	SessionID string   `json:"session_id"`
}

// CameraSearch matches a base64 camera capture, logging a sighting and
// alerting on a match
func (sh *SearchHandler) CameraSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, sh.MaxUploadBytes)

	req, err := sh.parseCameraSearch(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, searchResponse{Status: statusError, Message: err.Error()})
		return
	}
	if strings.TrimSpace(req.ImageData) == "" {
		writeJSON(w, http.StatusBadRequest, searchResponse{Status: statusError, Message: "image_data is required"})
		return
	}

	result, err := sh.Service.CameraSearch(r.Context(), services.CameraSearchInput{
		ImageData: req.ImageData,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		SessionID: req.SessionID,
	})
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) {
			writeJSON(w, http.StatusBadRequest, searchResponse{Status: statusError, Message: "Invalid image data"})
			return
		}
		sh.Log.Error("camera search failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, searchResponse{Status: statusError, Message: "Camera search failed"})
		return
	}

	resp := newSearchResponse(result.SearchResult)
	if result.Sighting != nil {
		resp.SightingID = result.Sighting.ID
		resp.ResultURL = sightingResultURL(result.Sighting.ID)
	}
	resp.Notification = result.Notification
	writeJSON(w, http.StatusOK, resp)
}

func (sh *SearchHandler) parseCameraSearch(r *http.Request) (cameraSearchRequest, error) {
	var req cameraSearchRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if isTooLarge(err) {
				return req, errors.New("request body too large")
			}
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return req, errors.New("invalid form body")
		}
		defer r.MultipartForm.RemoveAll()
	} else if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form body")
	}

	req.ImageData = r.FormValue("image_data")
	req.SessionID = r.FormValue("session_id")
	// unparseable coordinates are treated as an unknown location
	if lat, err := optionalFloat(r.FormValue("latitude")); err == nil {
		req.Latitude = lat
	} else {
		sh.Log.Debug("ignoring unparseable latitude", zap.String("value", r.FormValue("latitude")))
	}
	if lng, err := optionalFloat(r.FormValue("longitude")); err == nil {
		req.Longitude = lng
	} else {
		sh.Log.Debug("ignoring unparseable longitude", zap.String("value", r.FormValue("longitude")))
	}
	return req, nil
}
