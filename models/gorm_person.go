package models

// Person represents a registered missing person using GORM.
// It corresponds to the 'persons' table.
type Person struct {
	ID            uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string   `gorm:"not null;index" json:"name"`
	Age           *int     `gorm:"column:age" json:"age,omitempty"`
	Gender        string   `gorm:"column:gender" json:"gender,omitempty"`
	Height        *float64 `gorm:"column:height" json:"height,omitempty"`
	Weight        *float64 `gorm:"column:weight" json:"weight,omitempty"`
	Phone         string   `gorm:"column:phone" json:"phone,omitempty"`
	ImageFilename string   `gorm:"not null;column:image_filename" json:"image_filename"`

	// EmbeddingData is nil when no face was found in the reference image.
	EmbeddingData  []byte  `gorm:"column:embedding_data" json:"-"`
	EmbeddingModel *string `gorm:"column:embedding_model" json:"embedding_model,omitempty"`

	Latitude  *float64 `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude *float64 `gorm:"column:longitude" json:"longitude,omitempty"`
	CreatedAt int64    `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt int64    `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp

	Sightings []Sighting `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE" json:"sightings,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "persons"
}

// GetEmbedding decodes the stored embedding. It returns nil when the person
// has no embedding or the stored blob is malformed.
func (p *Person) GetEmbedding() Embedding {
	if len(p.EmbeddingData) == 0 {
		return nil
	}
	embedding, err := DecodeEmbedding(p.EmbeddingData)
	if err != nil {
		return nil
	}
	return embedding
}

// SetEmbedding stores embedding together with the name of the model that produced it.
// A nil embedding clears both columns.
func (p *Person) SetEmbedding(embedding Embedding, model string) {
	if embedding == nil {
		p.EmbeddingData = nil
		p.EmbeddingModel = nil
		return
	}
	p.EmbeddingData = EncodeEmbedding(embedding)
	p.EmbeddingModel = &model
}

// HasEmbedding reports whether the person can take part in matching.
func (p *Person) HasEmbedding() bool {
	return p.GetEmbedding() != nil
}
