package grantRepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"share-service/internal/apperrors"
	"share-service/internal/model/fileInfo"
	"share-service/internal/model/grantInfo"
)

const (
	uniqueViolation = "23505"
	userPairIndex   = "idx_grants_active_user_pair"
	tokenIndex      = "idx_grants_token"
	grantColumns    = "id, file_id, owner_id, kind, grantee_id, token, expires_at, active, created_at"
	// Exclusive boundary: a grant whose expires_at equals the current instant
	// is already invalid.
	validityPredicate = "active AND (expires_at IS NULL OR expires_at > NOW())"
)

type GrantRepo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *GrantRepo {
	return &GrantRepo{pool: pool}
}

func (r *GrantRepo) insert(ctx context.Context, grant *grantInfo.Grant) error {
	var granteeID *uint32
	var token *string
	if grant.Kind == grantInfo.KindUser {
		granteeID = grant.GranteeID
	} else {
		token = &grant.Token
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO grants (id, file_id, owner_id, kind, grantee_id, token, expires_at, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		grant.ID, grant.FileID, grant.OwnerID, string(grant.Kind), granteeID, token,
		grant.ExpiresAt, grant.Active, grant.CreatedAt)
	return err
}

// CreateUserGrant inserts a grant for a named grantee. Duplicate protection
// is the store's partial unique index, evaluated at insert time, so two
// concurrent calls for the same (file, grantee) can never both succeed. A
// collision against an active-but-expired row reclaims that row and retries
// once; a collision against a still-valid row is a Conflict.
func (r *GrantRepo) CreateUserGrant(ctx context.Context, grant *grantInfo.Grant) error {
	err := r.insert(ctx, grant)
	if !isUniqueViolation(err, userPairIndex) {
		return err
	}

	reaped, reapErr := r.reapExpiredUserPair(ctx, grant.FileID, *grant.GranteeID)
	if reapErr != nil {
		return reapErr
	}
	if reaped == 0 {
		return fmt.Errorf("%w: file already shared with this user", apperrors.ErrConflict)
	}
	if err := r.insert(ctx, grant); err != nil {
		if isUniqueViolation(err, userPairIndex) {
			return fmt.Errorf("%w: file already shared with this user", apperrors.ErrConflict)
		}
		return err
	}
	return nil
}

// CreateLinkGrant inserts a token grant. A token collision surfaces as
// Conflict; the caller regenerates the token and retries.
func (r *GrantRepo) CreateLinkGrant(ctx context.Context, grant *grantInfo.Grant) error {
	err := r.insert(ctx, grant)
	if isUniqueViolation(err, tokenIndex) {
		return fmt.Errorf("%w: share token collision", apperrors.ErrConflict)
	}
	return err
}

func (r *GrantRepo) GetByID(ctx context.Context, grantID uuid.UUID) (*grantInfo.Grant, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+grantColumns+" FROM grants WHERE id = $1", grantID)
	return scanGrant(row)
}

// Revoke is a one-way active -> inactive transition; revoking an already
// inactive grant is a no-op.
func (r *GrantRepo) Revoke(ctx context.Context, grantID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE grants SET active = FALSE WHERE id = $1", grantID)
	return err
}

func (r *GrantRepo) FindValidUserGrant(ctx context.Context, fileID uuid.UUID, granteeID uint32) (*grantInfo.Grant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM grants
		 WHERE file_id = $1 AND grantee_id = $2 AND kind = 'user' AND `+validityPredicate,
		fileID, granteeID)
	return scanGrant(row)
}

func (r *GrantRepo) FindValidByToken(ctx context.Context, token string) (*grantInfo.Grant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM grants
		 WHERE token = $1 AND `+validityPredicate,
		token)
	return scanGrant(row)
}

func (r *GrantRepo) ListByOwner(ctx context.Context, ownerID uint32) ([]*grantInfo.Grant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+grantColumns+` FROM grants
		 WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (r *GrantRepo) ListByFile(ctx context.Context, fileID uuid.UUID) ([]*grantInfo.Grant, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+grantColumns+" FROM grants WHERE file_id = $1", fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

// ListSharedFiles returns the files the grantee can currently reach through
// named grants. The validity predicate filters revoked and expired grants in
// the query, so a revocation disappears from this listing immediately.
func (r *GrantRepo) ListSharedFiles(ctx context.Context, granteeID uint32) ([]*fileInfo.File, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT f.id, f.owner_id, f.name, f.size, f.content_type, f.storage_key, f.created_at
		 FROM grants g
		 JOIN files f ON f.id = g.file_id
		 WHERE g.grantee_id = $1 AND g.kind = 'user' AND `+validityPredicate+`
		 ORDER BY g.created_at DESC`,
		granteeID)
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

// SweepExpired physically removes grants past their expiry. Pure space
// reclamation: every read path re-checks validity against the current time,
// so correctness never depends on this running.
func (r *GrantRepo) SweepExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM grants WHERE expires_at IS NOT NULL AND expires_at <= NOW()")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *GrantRepo) reapExpiredUserPair(ctx context.Context, fileID uuid.UUID, granteeID uint32) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM grants
		 WHERE file_id = $1 AND grantee_id = $2 AND kind = 'user' AND active
		   AND expires_at IS NOT NULL AND expires_at <= NOW()`,
		fileID, granteeID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func scanGrant(row pgx.Row) (*grantInfo.Grant, error) {
	var g grantInfo.Grant
	var kind string
	var token *string
	err := row.Scan(&g.ID, &g.FileID, &g.OwnerID, &kind, &g.GranteeID, &token,
		&g.ExpiresAt, &g.Active, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.Kind = grantInfo.Kind(kind)
	if token != nil {
		g.Token = *token
	}
	return &g, nil
}

func collectGrants(rows pgx.Rows) ([]*grantInfo.Grant, error) {
	var grants []*grantInfo.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
