package repository

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/camden-git/missingpersons/models"
	"github.com/facette/natsort"
	"gorm.io/gorm"
)

// PersonRepository handles database operations for registered persons
type PersonRepository struct {
	DB *gorm.DB
}

// NewPersonRepository creates a new instance of PersonRepository
func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: db}
}

// Create creates a new person record in the database
func (r *PersonRepository) Create(person *models.Person) error {
	now := time.Now().Unix()
	if person.CreatedAt == 0 {
		person.CreatedAt = now
	}
	if person.UpdatedAt == 0 {
		person.UpdatedAt = now
	}

	err := r.DB.Create(person).Error
	if err != nil {
		return fmt.Errorf("failed to create person %s: %w", person.Name, err)
	}
	return nil
}

// GetByID retrieves a person by their ID
func (r *PersonRepository) GetByID(id uint) (*models.Person, error) {
	var person models.Person
	err := r.DB.First(&person, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get person by ID %d: %w", id, err)
	}
	return &person, nil
}

// ListAll retrieves all persons in natural name order
func (r *PersonRepository) ListAll() ([]models.Person, error) {
	var people []models.Person
	err := r.DB.Order("id ASC").Find(&people).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}

	sort.SliceStable(people, func(i, j int) bool {
		return natsort.Compare(people[i].Name, people[j].Name)
	})
	return people, nil
}

// ListWithEmbeddings returns the match candidates: every person with a stored
// embedding, ordered by id so that ties resolve the same way on every search.
func (r *PersonRepository) ListWithEmbeddings() ([]models.Person, error) {
	var people []models.Person
	err := r.DB.Where("embedding_data IS NOT NULL").Order("id ASC").Find(&people).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list persons with embeddings: %w", err)
	}
	return people, nil
}
