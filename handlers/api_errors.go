package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/camden-git/missingpersons/media"
	"github.com/camden-git/missingpersons/services"
)

const (
	CodeInvalidRequest   = "invalid_request"
	CodeValidationFailed = "validation_failed"
	CodeInvalidImage     = "invalid_image"
	CodeNoFaceDetected   = "no_face_detected"
	CodeNotFound         = "not_found"
	CodeInternalError    = "internal_error"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// errorStatus maps workflow errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, media.ErrInvalidImage):
		return http.StatusBadRequest, CodeInvalidImage
	case errors.Is(err, services.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity, CodeNoFaceDetected
	case errors.Is(err, services.ErrRecordNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// writeServiceError writes err using the error envelope. Internal errors are
// logged and their detail is not exposed.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, action string) {
	status, code := errorStatus(err)
	detail := err.Error()
	switch code {
	case CodeInternalError:
		log.Error(action+" failed", zap.Error(err))
		detail = "Failed to " + action
	case CodeNoFaceDetected:
		detail = "No face detected in the uploaded image"
	case CodeNotFound:
		detail = "Resource not found"
	}
	WriteAPIError(w, status, code, detail)
}
