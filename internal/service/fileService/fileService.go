package fileService

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"share-service/internal/apperrors"
	"share-service/internal/model/auditInfo"
	"share-service/internal/model/fileInfo"
	"share-service/internal/model/grantInfo"
	"share-service/internal/service/accessService"
)

type FileStore interface {
	Create(ctx context.Context, file *fileInfo.File) error
	GetByID(ctx context.Context, fileID uuid.UUID) (*fileInfo.File, error)
	Delete(ctx context.Context, fileID uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uint32) ([]*fileInfo.File, error)
}

type GrantLister interface {
	ListByFile(ctx context.Context, fileID uuid.UUID) ([]*grantInfo.Grant, error)
	ListSharedFiles(ctx context.Context, granteeID uint32) ([]*fileInfo.File, error)
}

type ObjectStorage interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, key string) error
}

type Authorizer interface {
	Authorize(ctx context.Context, actorID uint32, fileID uuid.UUID, presentedToken string) (accessService.Decision, error)
	ResolveToken(ctx context.Context, token string) (*grantInfo.Grant, error)
}

type TokenInvalidator interface {
	Invalidate(ctx context.Context, token string) error
}

type Recorder interface {
	Record(actorID uint32, action auditInfo.Action, fileID *uuid.UUID, details map[string]any)
}

// FileService owns file metadata lifecycle and coordinates it with the byte
// storage collaborator.
type FileService struct {
	files   FileStore
	grants  GrantLister
	storage ObjectStorage
	access  Authorizer
	cache   TokenInvalidator
	audit   Recorder
	log     *zap.Logger
}

func New(files FileStore, grants GrantLister, storage ObjectStorage, access Authorizer, cache TokenInvalidator, audit Recorder, log *zap.Logger) *FileService {
	return &FileService{
		files:   files,
		grants:  grants,
		storage: storage,
		access:  access,
		cache:   cache,
		audit:   audit,
		log:     log,
	}
}

// Upload stores the bytes, then commits the metadata. If the metadata commit
// fails the stored object is deleted again, so storage and metadata cannot
// drift apart.
func (s *FileService) Upload(ctx context.Context, ownerID uint32, name, contentType string, reader io.Reader, size int64) (*fileInfo.File, error) {
	fileID := uuid.New()
	storageKey := fileID.String()

	if err := s.storage.UploadFile(ctx, storageKey, reader, size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store file bytes: %w", err)
	}

	file := &fileInfo.File{
		ID:          fileID,
		OwnerID:     ownerID,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		StorageKey:  storageKey,
		CreatedAt:   time.Now(),
	}
	if err := s.files.Create(ctx, file); err != nil {
		if delErr := s.storage.DeleteFile(ctx, storageKey); delErr != nil {
			s.log.Error("failed to reclaim orphaned bytes after metadata failure",
				zap.Error(delErr), zap.String("storage_key", storageKey))
		}
		return nil, fmt.Errorf("failed to commit file metadata: %w", err)
	}

	s.audit.Record(ownerID, auditInfo.ActionUpload, &file.ID, map[string]any{
		"name": name,
		"size": size,
	})
	return file, nil
}

// Download authorizes the actor, then streams the bytes. Denials are audited
// just like successes.
func (s *FileService) Download(ctx context.Context, actorID uint32, fileID uuid.UUID, presentedToken string) (io.ReadCloser, *fileInfo.File, error) {
	decision, err := s.access.Authorize(ctx, actorID, fileID, presentedToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.audit.Record(actorID, auditInfo.ActionDownload, &fileID, map[string]any{
				"allowed": false,
				"reason":  "not_found",
			})
		}
		return nil, nil, err
	}
	if !decision.Allowed {
		s.audit.Record(actorID, auditInfo.ActionDownload, &fileID, map[string]any{
			"allowed": false,
		})
		return nil, nil, fmt.Errorf("%w: download", apperrors.ErrForbidden)
	}

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get file: %w", err)
	}
	if file == nil {
		return nil, nil, fmt.Errorf("%w: file", apperrors.ErrNotFound)
	}

	reader, err := s.storage.DownloadFile(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file bytes: %w", err)
	}

	details := map[string]any{"allowed": true}
	if decision.MatchedGrant != nil {
		details["grant_id"] = decision.MatchedGrant.ID.String()
	}
	s.audit.Record(actorID, auditInfo.ActionDownload, &file.ID, details)
	return reader, file, nil
}

// DownloadShared streams the bytes behind a link token. One token
// resolution, one audit event; callers that only want the metadata use
// RedeemLink on the share side instead.
func (s *FileService) DownloadShared(ctx context.Context, actorID uint32, token string) (io.ReadCloser, *fileInfo.File, error) {
	if actorID == 0 {
		return nil, nil, fmt.Errorf("%w: link redemption requires a resolved actor", apperrors.ErrUnauthenticated)
	}

	grant, err := s.access.ResolveToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if grant == nil {
		s.audit.Record(actorID, auditInfo.ActionDownload, nil, map[string]any{
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
		return nil, nil, fmt.Errorf("%w: file", apperrors.ErrNotFound)
	}

	reader, err := s.storage.DownloadFile(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file bytes: %w", err)
	}

	s.audit.Record(actorID, auditInfo.ActionDownload, &file.ID, map[string]any{
		"allowed":      true,
		"accessed_via": "link",
		"grant_id":     grant.ID.String(),
	})
	return reader, file, nil
}

// Delete removes metadata and every grant in one atomic step, then cleans up
// the bytes. Owner-only and not recoverable.
func (s *FileService) Delete(ctx context.Context, actorID uint32, fileID uuid.UUID) error {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	if file == nil {
		return fmt.Errorf("%w: file", apperrors.ErrNotFound)
	}
	if file.OwnerID != actorID {
		return fmt.Errorf("%w: only the owner can delete a file", apperrors.ErrForbidden)
	}

	grants, err := s.grants.ListByFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to list grants for file: %w", err)
	}

	if err := s.files.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Metadata and grants are gone; cached token entries must not outlive
	// them.
	if s.cache != nil {
		for _, grant := range grants {
			if grant.Kind != grantInfo.KindLink {
				continue
			}
			if err := s.cache.Invalidate(ctx, grant.Token); err != nil {
				s.log.Warn("grant cache invalidation failed", zap.Error(err))
			}
		}
	}

	if err := s.storage.DeleteFile(ctx, file.StorageKey); err != nil {
		// Orphaned bytes are recoverable by a storage sweep; the metadata
		// commit is what observers see.
		s.log.Error("failed to delete file bytes",
			zap.Error(err), zap.String("storage_key", file.StorageKey))
	}

	s.audit.Record(actorID, auditInfo.ActionDelete, &fileID, map[string]any{
		"name": file.Name,
	})
	return nil
}

// Get returns file metadata to any actor the evaluator allows.
func (s *FileService) Get(ctx context.Context, actorID uint32, fileID uuid.UUID, presentedToken string) (*fileInfo.File, error) {
	decision, err := s.access.Authorize(ctx, actorID, fileID, presentedToken)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: file", apperrors.ErrForbidden)
	}
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: file", apperrors.ErrNotFound)
	}
	return file, nil
}

func (s *FileService) ListOwn(ctx context.Context, ownerID uint32) ([]*fileInfo.File, error) {
	return s.files.ListByOwner(ctx, ownerID)
}

// ListSharedWithMe returns the files the actor can reach through currently
// valid named grants.
func (s *FileService) ListSharedWithMe(ctx context.Context, actorID uint32) ([]*fileInfo.File, error) {
	return s.grants.ListSharedFiles(ctx, actorID)
}
