package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PersonImage is the slice of a person row needed to rebuild its embedding.
type PersonImage struct {
	ID             int64
	Name           string
	ImageFilename  string
	EmbeddingModel *string
}

// ListPersonImages returns every registered person's reference image, ordered by id.
func ListPersonImages(ctx context.Context, db Querier) ([]PersonImage, error) {
	queryBuilder := psql.Select("id", "name", "image_filename", "embedding_model").
		From("persons").
		OrderBy("id ASC")
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for ListPersonImages: %w", err)
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute ListPersonImages query: %w", err)
	}
	defer rows.Close()

	images := []PersonImage{}
	for rows.Next() {
		var p PersonImage
		var model sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageFilename, &model); err != nil {
			return nil, fmt.Errorf("failed to scan person image row: %w", err)
		}
		if model.Valid {
			p.EmbeddingModel = &model.String
		}
		images = append(images, p)
	}
	if err = rows.Err(); err != nil {
		return images, fmt.Errorf("error iterating person image rows: %w", err)
	}
	return images, nil
}

// SetPersonEmbedding overwrites the stored embedding of a person.
func SetPersonEmbedding(ctx context.Context, db Querier, personID int64, data []byte, model string) error {
	return updatePersonEmbedding(ctx, db, personID, data, &model)
}

// ClearPersonEmbedding removes the stored embedding of a person, making it ineligible for matching.
func ClearPersonEmbedding(ctx context.Context, db Querier, personID int64) error {
	return updatePersonEmbedding(ctx, db, personID, nil, nil)
}

func updatePersonEmbedding(ctx context.Context, db Querier, personID int64, data []byte, model *string) error {
	queryBuilder := psql.Update("persons").
		Set("embedding_data", data).
		Set("embedding_model", model).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": personID})
	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL for person embedding update: %w", err)
	}

	result, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to update embedding for person %d: %w", personID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for person %d: %w", personID, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
