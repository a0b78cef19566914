package accessService

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"share-service/internal/apperrors"
	"share-service/internal/model/fileInfo"
	"share-service/internal/model/grantInfo"
)

type FileGetter interface {
	GetByID(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, error)
}

type GrantSource interface {
	FindValidUserGrant(ctx context.Context, fileID uuid.UUID, granteeID uint32) (*grantInfo.Grant, error)
	FindValidByToken(ctx context.Context, token string) (*grantInfo.Grant, error)
}

// TokenCache accelerates token lookups. Nil-able; every answer it gives is
// re-checked against the validity predicate before use.
type TokenCache interface {
	GetByToken(ctx context.Context, token string) (*grantInfo.Grant, error)
	Put(ctx context.Context, grant *grantInfo.Grant) error
}

// Decision is the outcome of an authorization check. MatchedGrant is nil for
// owner access.
type Decision struct {
	Allowed      bool
	MatchedGrant *grantInfo.Grant
}

// AccessService decides whether an actor may act on a file. Authorize is pure
// with respect to its inputs and the current time: it mutates nothing, so
// callers may invoke it as often as they like.
type AccessService struct {
	files  FileGetter
	grants GrantSource
	cache  TokenCache
	log    *zap.Logger
}

func New(files FileGetter, grants GrantSource, cache TokenCache, log *zap.Logger) *AccessService {
	return &AccessService{files: files, grants: grants, cache: cache, log: log}
}

// Authorize applies the access rules in order: owner, presented token, named
// grant, deny. A missing file is NotFound regardless of any grant state,
// which closes the delete-vs-read window.
func (s *AccessService) Authorize(ctx context.Context, actorID uint32, fileID uuid.UUID, presentedToken string) (Decision, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to get file: %w", err)
	}
	if file == nil {
		return Decision{}, fmt.Errorf("%w: file", apperrors.ErrNotFound)
	}

	if file.OwnerID == actorID {
		return Decision{Allowed: true}, nil
	}

	if presentedToken != "" {
		grant, err := s.resolveToken(ctx, presentedToken)
		if err != nil {
			return Decision{}, err
		}
		if grant != nil && grant.FileID == fileID {
			return Decision{Allowed: true, MatchedGrant: grant}, nil
		}
	}

	grant, err := s.grants.FindValidUserGrant(ctx, fileID, actorID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to look up grant: %w", err)
	}
	if grant != nil {
		return Decision{Allowed: true, MatchedGrant: grant}, nil
	}

	return Decision{Allowed: false}, nil
}

// ResolveToken returns the currently-valid grant behind a token, or nil.
func (s *AccessService) ResolveToken(ctx context.Context, token string) (*grantInfo.Grant, error) {
	return s.resolveToken(ctx, token)
}

func (s *AccessService) resolveToken(ctx context.Context, token string) (*grantInfo.Grant, error) {
	if s.cache != nil {
		cached, err := s.cache.GetByToken(ctx, token)
		if err != nil {
			s.log.Warn("grant cache read failed, falling back to store", zap.Error(err))
		} else if cached != nil {
			// The cached copy may predate expiry; the predicate decides, not
			// the cache.
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
