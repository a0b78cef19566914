package fileRepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"share-service/internal/model/fileInfo"
)

type FileRepo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *FileRepo {
	return &FileRepo{pool: pool}
}

func (r *FileRepo) Create(ctx context.Context, file *fileInfo.File) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO files (id, owner_id, name, size, content_type, storage_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		file.ID, file.OwnerID, file.Name, file.Size, file.ContentType, file.StorageKey, file.CreatedAt)
	return err
}

func (r *FileRepo) GetByID(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, error) {
	var file fileInfo.File
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, size, content_type, storage_key, created_at
		 FROM files WHERE id = $1`, fileID).
		Scan(&file.ID, &file.OwnerID, &file.Name, &file.Size, &file.ContentType,
			&file.StorageKey, &file.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// Delete removes the file row and every grant referencing it inside one
// transaction, so no reader can observe the file gone while a grant still
// exists (or the reverse).
func (r *FileRepo) Delete(ctx context.Context, fileID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, "DELETE FROM grants WHERE file_id = $1", fileID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, "DELETE FROM files WHERE id = $1", fileID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *FileRepo) ListByOwner(ctx context.Context, ownerID uint32) ([]*fileInfo.File, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, name, size, content_type, storage_key, created_at
		 FROM files WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*fileInfo.File
	for rows.Next() {
		var file fileInfo.File
		if err := rows.Scan(
			&file.ID, &file.OwnerID, &file.Name, &file.Size, &file.ContentType,
			&file.StorageKey, &file.CreatedAt,
		); err != nil {
			return nil, err
		}
		files = append(files, &file)
	}
	return files, rows.Err()
}
