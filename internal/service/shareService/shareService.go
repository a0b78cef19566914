package shareService

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"share-service/internal/apperrors"
	"share-service/internal/model/auditInfo"
	"share-service/internal/model/fileInfo"
	"share-service/internal/model/grantInfo"
)

type FileGetter interface {
	GetByID(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, error)
}

type UserDirectory interface {
	Exists(ctx context.Context, id uint32) (bool, error)
}

type GrantStore interface {
	CreateUserGrant(ctx context.Context, grant *grantInfo.Grant) error
	CreateLinkGrant(ctx context.Context, grant *grantInfo.Grant) error
	GetByID(ctx context.Context, grantID uuid.UUID) (*grantInfo.Grant, error)
	Revoke(ctx context.Context, grantID uuid.UUID) error
	FindValidByToken(ctx context.Context, token string) (*grantInfo.Grant, error)
	ListByOwner(ctx context.Context, ownerID uint32) ([]*grantInfo.Grant, error)
}

type TokenCache interface {
	GetByToken(ctx context.Context, token string) (*grantInfo.Grant, error)
	Put(ctx context.Context, grant *grantInfo.Grant) error
	Invalidate(ctx context.Context, token string) error
}

type Recorder interface {
	Record(actorID uint32, action auditInfo.Action, fileID *uuid.UUID, details map[string]any)
}

// tokenAttempts bounds regeneration when a freshly generated token collides
// with an existing one. With 256 bits of entropy a single collision is
// already wildly improbable; the loop exists because the store treats token
// uniqueness as a hard constraint, not an assumption.
const tokenAttempts = 5

// ShareService owns the grant lifecycle: creation by the file owner,
// one-way revocation, and redemption of link tokens.
type ShareService struct {
	files  FileGetter
	users  UserDirectory
	grants GrantStore
	cache  TokenCache
	audit  Recorder
	log    *zap.Logger
}

func New(files FileGetter, users UserDirectory, grants GrantStore, cache TokenCache, audit Recorder, log *zap.Logger) *ShareService {
	return &ShareService{files: files, users: users, grants: grants, cache: cache, audit: audit, log: log}
}

// ShareWithUser creates a named grant. Only the file owner may share, the
// grantee must resolve, and a second valid grant for the same (file, grantee)
// pair is a Conflict rather than a silent merge.
func (s *ShareService) ShareWithUser(ctx context.Context, ownerID uint32, fileID uuid.UUID, granteeID uint32, expiresAt *time.Time) (*grantInfo.Grant, error) {
	file, err := s.ownedFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, granteeID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve grantee: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: grantee", apperrors.ErrNotFound)
	}

	grant, err := grantInfo.NewUserGrant(fileID, ownerID, granteeID, expiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.grants.CreateUserGrant(ctx, grant); err != nil {
		return nil, err
	}

	s.audit.Record(ownerID, auditInfo.ActionShare, &file.ID, map[string]any{
		"shared_with": granteeID,
		"share_type":  string(grantInfo.KindUser),
		"expires_at":  expiresAt,
	})
	return grant, nil
}

// GenerateShareLink mints a token grant redeemable by any authenticated
// actor. The token is the sole credential.
func (s *ShareService) GenerateShareLink(ctx context.Context, ownerID uint32, fileID uuid.UUID, expiresAt *time.Time) (*grantInfo.Grant, error) {
	file, err := s.ownedFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}

	var grant *grantInfo.Grant
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := newToken()
		if err != nil {
			return nil, err
		}
		grant, err = grantInfo.NewLinkGrant(fileID, ownerID, token, expiresAt)
		if err != nil {
			return nil, err
		}
		err = s.grants.CreateLinkGrant(ctx, grant)
		if err == nil {
			break
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		grant = nil
	}
	if grant == nil {
		return nil, fmt.Errorf("%w: could not mint a unique share token", apperrors.ErrConflict)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, grant); err != nil {
			s.log.Warn("grant cache write failed", zap.Error(err))
		}
	}

	s.audit.Record(ownerID, auditInfo.ActionShare, &file.ID, map[string]any{
		"share_type": string(grantInfo.KindLink),
		"expires_at": expiresAt,
	})
	return grant, nil
}

// RedeemLink exchanges a token for the file it grants access to. Any
// authenticated actor may redeem, the owner included; possession of the token
// is the credential.
func (s *ShareService) RedeemLink(ctx context.Context, actorID uint32, token string) (*fileInfo.File, *grantInfo.Grant, error) {
	if actorID == 0 {
		return nil, nil, fmt.Errorf("%w: link redemption requires a resolved actor", apperrors.ErrUnauthenticated)
	}

	grant, err := s.lookupToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if grant == nil {
		s.audit.Record(actorID, auditInfo.ActionView, nil, map[string]any{
			"allowed":      false,
			"accessed_via": "link",
		})
		return nil, nil, fmt.Errorf("%w: share link expired or invalid", apperrors.ErrNotFound)
	}

	file, err := s.files.GetByID(ctx, grant.FileID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get file: %w", err)
	}
	if file == nil {
		// Grant survived a concurrent file deletion only in the cache; the
		// file record is authoritative.
		return nil, nil, fmt.Errorf("%w: file", apperrors.ErrNotFound)
	}

	s.audit.Record(actorID, auditInfo.ActionView, &file.ID, map[string]any{
		"accessed_via": "link",
		"grant_id":     grant.ID.String(),
	})
	return file, grant, nil
}

// Revoke deactivates a grant. Owner-only, idempotent, never reversed.
func (s *ShareService) Revoke(ctx context.Context, callerID uint32, grantID uuid.UUID) error {
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		return fmt.Errorf("failed to get grant: %w", err)
	}
	if grant == nil {
		return fmt.Errorf("%w: grant", apperrors.ErrNotFound)
	}
	if grant.OwnerID != callerID {
		return fmt.Errorf("%w: only the owner can revoke a grant", apperrors.ErrForbidden)
	}

	if err := s.grants.Revoke(ctx, grantID); err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}

	if grant.Kind == grantInfo.KindLink && s.cache != nil {
		if err := s.cache.Invalidate(ctx, grant.Token); err != nil {
			s.log.Warn("grant cache invalidation failed", zap.Error(err))
		}
	}

	s.audit.Record(callerID, auditInfo.ActionShare, &grant.FileID, map[string]any{
		"revoked":  true,
		"grant_id": grantID.String(),
	})
	return nil
}

func (s *ShareService) ListMyGrants(ctx context.Context, ownerID uint32) ([]*grantInfo.Grant, error) {
	return s.grants.ListByOwner(ctx, ownerID)
}

func (s *ShareService) ownedFile(ctx context.Context, ownerID uint32, fileID uuid.UUID) (*fileInfo.File, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: file", apperrors.ErrNotFound)
	}
	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: only the owner can share a file", apperrors.ErrForbidden)
	}
	return file, nil
}

func (s *ShareService) lookupToken(ctx context.Context, token string) (*grantInfo.Grant, error) {
	if s.cache != nil {
		cached, err := s.cache.GetByToken(ctx, token)
		if err != nil {
			s.log.Warn("grant cache read failed, falling back to store", zap.Error(err))
		} else if cached != nil {
			if cached.ValidAt(time.Now()) {
				return cached, nil
			}
			return nil, nil
		}
	}

	grant, err := s.grants.FindValidByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if grant != nil && s.cache != nil {
		if err := s.cache.Put(ctx, grant); err != nil {
			s.log.Warn("grant cache write failed", zap.Error(err))
		}
	}
	return grant, nil
}

// newToken returns 256 bits from the CSPRNG, hex-encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
