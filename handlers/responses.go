package handlers

import (
	"fmt"

	"github.com/camden-git/missingpersons/models"
	"github.com/camden-git/missingpersons/services"
)

const (
	UploadsRoute        = "/api/uploads/"
	SightingsMediaRoute = "/api/sightings_media/"
)

type personResponse struct {
	models.Person
	ImageURL     string `json:"image_url"`
	HasEmbedding bool   `json:"has_embedding"`
}

func newPersonResponse(p *models.Person) personResponse {
	resp := personResponse{
		Person:       *p,
		ImageURL:     UploadsRoute + p.ImageFilename,
		HasEmbedding: p.HasEmbedding(),
	}
	resp.Sightings = nil
	return resp
}

type sightingResponse struct {
	models.Sighting
	ImageURL  string `json:"image_url"`
	ResultURL string `json:"result_url"`
}

func newSightingResponse(s *models.Sighting) sightingResponse {
	resp := sightingResponse{
		Sighting:  *s,
		ImageURL:  SightingsMediaRoute + s.ImageFilename,
		ResultURL: sightingResultURL(s.ID),
	}
	resp.Person = nil
	return resp
}

func sightingResultURL(id uint) string {
	return fmt.Sprintf("/api/sightings/%d", id)
}

// searchResponse is the body shared by file and camera search
type searchResponse struct {
	Status       services.SearchStatus         `json:"status"`
	Message      string                        `json:"message,omitempty"`
	Name         string                        `json:"name,omitempty"`
	MatchScore   int                           `json:"match_score,omitempty"`
	PersonID     uint                          `json:"person_id,omitempty"`
	Person       *personResponse               `json:"person,omitempty"`
	SightingID   uint                          `json:"sighting_id,omitempty"`
	ResultURL    string                        `json:"result_url,omitempty"`
	Notification *services.NotificationOutcome `json:"notification,omitempty"`
}

const statusError services.SearchStatus = "error"

func newSearchResponse(result services.SearchResult) searchResponse {
	resp := searchResponse{Status: result.Status}
	if result.Status == services.StatusMatchFound && result.Person != nil && result.Match != nil {
		person := newPersonResponse(result.Person)
		resp.Name = result.Person.Name
		resp.MatchScore = result.Match.Score
		resp.PersonID = result.Person.ID
		resp.Person = &person
	}
	return resp
}

// sightingReplay is the body of GET /api/sightings/{sighting_id}
type sightingReplay struct {
	Sighting     sightingResponse             `json:"sighting"`
	Person       *personResponse              `json:"person,omitempty"`
	Name         string                       `json:"name"`
	MatchScore   int                          `json:"match_score"`
	Notification services.NotificationOutcome `json:"notification"`
}

func newSightingReplay(s *models.Sighting) sightingReplay {
	replay := sightingReplay{
		Sighting:   newSightingResponse(s),
		MatchScore: s.MatchScore,
		Notification: services.NotificationOutcome{
			Status: s.NotificationStatus,
			Reason: s.NotificationDetail,
		},
	}
	if s.Person != nil {
		person := newPersonResponse(s.Person)
		replay.Person = &person
		replay.Name = s.Person.Name
	}
	return replay
}
