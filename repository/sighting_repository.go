package repository

import (
	"errors"
	"fmt"

	"github.com/camden-git/missingpersons/models"
	"gorm.io/gorm"
)

// SightingRepository handles database operations for the sighting log
type SightingRepository struct {
	DB *gorm.DB
}

func NewSightingRepository(db *gorm.DB) *SightingRepository {
	return &SightingRepository{DB: db}
}

// Create inserts a sighting. Timestamp is assigned by GORM on insert.
func (r *SightingRepository) Create(sighting *models.Sighting) error {
	if sighting.NotificationStatus == "" {
		sighting.NotificationStatus = models.NotificationPending
	}
	err := r.DB.Create(sighting).Error
	if err != nil {
		return fmt.Errorf("failed to create sighting for person ID %d: %w", sighting.PersonID, err)
	}
	return nil
}

// GetByID retrieves a sighting with its person preloaded
func (r *SightingRepository) GetByID(id uint) (*models.Sighting, error) {
	var sighting models.Sighting
	err := r.DB.Preload("Person").First(&sighting, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get sighting by ID %d: %w", id, err)
	}
	return &sighting, nil
}

// ListByPersonID returns a person's sightings, newest first
func (r *SightingRepository) ListByPersonID(personID uint) ([]models.Sighting, error) {
	var sightings []models.Sighting
	err := r.DB.Where("person_id = ?", personID).
		Order("timestamp DESC").
		Order("id DESC").
		Find(&sightings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sightings for person ID %d: %w", personID, err)
	}
	return sightings, nil
}

// UpdateNotification records the outcome of the single alert attempt for a sighting
func (r *SightingRepository) UpdateNotification(id uint, status models.NotificationStatus, detail string) error {
	result := r.DB.Model(&models.Sighting{}).Where("id = ?", id).Updates(map[string]interface{}{
		"notification_status": status,
		"notification_detail": detail,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update notification for sighting ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
