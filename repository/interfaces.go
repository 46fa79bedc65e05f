package repository

import (
	"github.com/camden-git/missingpersons/models"
)

// PersonRepositoryInterface defines the methods for person registry operations
type PersonRepositoryInterface interface {
	Create(person *models.Person) error
	GetByID(id uint) (*models.Person, error)
	ListAll() ([]models.Person, error)
	ListWithEmbeddings() ([]models.Person, error)
}

// SightingRepositoryInterface defines the methods for sighting log operations
type SightingRepositoryInterface interface {
	Create(sighting *models.Sighting) error
	GetByID(id uint) (*models.Sighting, error)
	ListByPersonID(personID uint) ([]models.Sighting, error)
	UpdateNotification(id uint, status models.NotificationStatus, detail string) error
}
