package services

import (
	"backend/lib/battles"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ImageCatalog serves reference images for CSS battles from the images table;
// rows are ingested elsewhere with their dominant color palette precomputed.
type ImageCatalog struct {
	db *Database
}

func NewImageCatalog(db *Database) *ImageCatalog {
	return &ImageCatalog{db: db}
}

func (catalog *ImageCatalog) RandomImage(ctx context.Context) (*battles.ReferenceImage, error) {
	query_ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var reference battles.ReferenceImage
	err := catalog.db.Pool.QueryRow(query_ctx,
		`SELECT url, colors FROM images ORDER BY random() LIMIT 1`,
	).Scan(&reference.URL, &reference.Colors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("image catalog is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick reference image: %w", err)
	}
	return &reference, nil
}
