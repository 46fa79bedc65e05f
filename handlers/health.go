package handlers

import "net/http"

type HealthHandler struct {
	FaceModel            string
	NotificationsEnabled bool
}

func (hh *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":                "ok",
		"face_model":            hh.FaceModel,
		"notifications_enabled": hh.NotificationsEnabled,
	})
}
