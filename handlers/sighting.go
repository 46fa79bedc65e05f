package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

type SightingHandler struct {
	Service Identifier
	Log     *zap.Logger
}

// GetSighting replays a logged sighting with its stored score and alert outcome
func (sh *SightingHandler) GetSighting(w http.ResponseWriter, r *http.Request) {
	sightingID, err := uintURLParam(r, "sighting_id")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid sighting ID format")
		return
	}

	sighting, err := sh.Service.GetSighting(sightingID)
	if err != nil {
		writeServiceError(w, sh.Log, err, "retrieve sighting")
		return
	}
	writeJSON(w, http.StatusOK, newSightingReplay(sighting))
}
