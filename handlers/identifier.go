package handlers

import (
	"context"

	"github.com/camden-git/missingpersons/models"
	"github.com/camden-git/missingpersons/services"
)

// Identifier is the workflow surface the HTTP handlers depend on. It is
// implemented by services.IdentificationService.
type Identifier interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Person, error)
	Search(ctx context.Context, image []byte) (services.SearchResult, error)
	CameraSearch(ctx context.Context, in services.CameraSearchInput) (services.CameraSearchResult, error)
	GetSighting(id uint) (*models.Sighting, error)
	GetPerson(id uint) (*models.Person, error)
	ListPersons() ([]models.Person, error)
	ListSightingsForPerson(personID uint) ([]models.Sighting, error)
}

var _ Identifier = (*services.IdentificationService)(nil)
