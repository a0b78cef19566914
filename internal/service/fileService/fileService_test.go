package fileService_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"share-service/internal/apperrors"
	"share-service/internal/model/auditInfo"
	"share-service/internal/model/fileInfo"
	"share-service/internal/model/grantInfo"
	"share-service/internal/service/accessService"
	"share-service/internal/service/fileService"
)

// fakeStore backs both the file registry and the grant lookups so the
// cascade between them can be observed end to end.
type fakeStore struct {
	mu         sync.Mutex
	files      map[uuid.UUID]*fileInfo.File
	grants     map[uuid.UUID]*grantInfo.Grant
	failCreate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:  make(map[uuid.UUID]*fileInfo.File),
		grants: make(map[uuid.UUID]*grantInfo.Grant),
	}
}

func (f *fakeStore) Create(_ context.Context, file *fileInfo.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("metadata commit failed")
	}
	f.files[file.ID] = file
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, fileID uuid.UUID) (*fileInfo.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[fileID], nil
}

func (f *fakeStore) Delete(_ context.Context, fileID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, g := range f.grants {
		if g.FileID == fileID {
			delete(f.grants, id)
		}
	}
	delete(f.files, fileID)
	return nil
}

func (f *fakeStore) ListByOwner(_ context.Context, ownerID uint32) ([]*fileInfo.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fileInfo.File
	for _, file := range f.files {
		if file.OwnerID == ownerID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByFile(_ context.Context, fileID uuid.UUID) ([]*grantInfo.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*grantInfo.Grant
	for _, g := range f.grants {
		if g.FileID == fileID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSharedFiles(_ context.Context, granteeID uint32) ([]*fileInfo.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []*fileInfo.File
	for _, g := range f.grants {
		if g.Kind == grantInfo.KindUser && g.GranteeID != nil &&
			*g.GranteeID == granteeID && g.ValidAt(now) {
			if file, ok := f.files[g.FileID]; ok {
				out = append(out, file)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) FindValidUserGrant(_ context.Context, fileID uuid.UUID, granteeID uint32) (*grantInfo.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, g := range f.grants {
		if g.Kind == grantInfo.KindUser && g.FileID == fileID &&
			g.GranteeID != nil && *g.GranteeID == granteeID && g.ValidAt(now) {
			return g, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindValidByToken(_ context.Context, token string) (*grantInfo.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, g := range f.grants {
		if g.Kind == grantInfo.KindLink && g.Token == token && g.ValidAt(now) {
			return g, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) addGrant(g *grantInfo.Grant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[g.ID] = g
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) UploadFile(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type recordedEvent struct {
	actorID uint32
	action  auditInfo.Action
	details map[string]any
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeRecorder) Record(actorID uint32, action auditInfo.Action, _ *uuid.UUID, details map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{actorID, action, details})
}

func (f *fakeRecorder) last(t *testing.T) recordedEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return f.events[len(f.events)-1]
}

const (
	ownerID    uint32 = 1
	granteeID  uint32 = 2
	strangerID uint32 = 3
)

type env struct {
	svc     *fileService.FileService
	store   *fakeStore
	storage *fakeStorage
	audit   *fakeRecorder
}

func setup(t *testing.T) *env {
	t.Helper()
	store := newFakeStore()
	storage := newFakeStorage()
	audit := &fakeRecorder{}
	access := accessService.New(store, store, nil, zap.NewNop())
	svc := fileService.New(store, store, storage, access, nil, audit, zap.NewNop())
	return &env{svc: svc, store: store, storage: storage, audit: audit}
}

func (e *env) upload(t *testing.T, content string) *fileInfo.File {
	t.Helper()
	file, err := e.svc.Upload(context.Background(), ownerID, "notes.txt", "text/plain",
		strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	return file
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores bytes and commits metadata", func(t *testing.T) {
		e := setup(t)
		file := e.upload(t, "hello")

		assert.Equal(t, ownerID, file.OwnerID)
		assert.Equal(t, []byte("hello"), e.storage.objects[file.StorageKey])

		got, err := e.store.GetByID(ctx, file.ID)
		assert.NoError(t, err)
		assert.NotNil(t, got)

		assert.Equal(t, auditInfo.ActionUpload, e.audit.last(t).action)
	})

	t.Run("failed metadata commit reclaims the bytes", func(t *testing.T) {
		e := setup(t)
		e.store.failCreate = true

		_, err := e.svc.Upload(ctx, ownerID, "doc.bin", "application/octet-stream",
			strings.NewReader("data"), 4)
		assert.Error(t, err)
		assert.Empty(t, e.storage.objects)
		assert.Len(t, e.storage.deleted, 1)
	})
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("owner downloads unconditionally", func(t *testing.T) {
		e := setup(t)
		file := e.upload(t, "content")

		reader, got, err := e.svc.Download(ctx, ownerID, file.ID, "")
		assert.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, "content", string(data))
		assert.Equal(t, file.ID, got.ID)

		last := e.audit.last(t)
		assert.Equal(t, auditInfo.ActionDownload, last.action)
		assert.Equal(t, true, last.details["allowed"])
	})

	t.Run("grantee downloads via grant", func(t *testing.T) {
		e := setup(t)
		file := e.upload(t, "content")
		g, err := grantInfo.NewUserGrant(file.ID, ownerID, granteeID, nil)
		assert.NoError(t, err)
		e.store.addGrant(g)

		reader, _, err := e.svc.Download(ctx, granteeID, file.ID, "")
		assert.NoError(t, err)
		reader.Close()

		last := e.audit.last(t)
		assert.Equal(t, g.ID.String(), last.details["grant_id"])
	})

	t.Run("denial is audited", func(t *testing.T) {
		e := setup(t)
		file := e.upload(t, "content")

		_, _, err := e.svc.Download(ctx, strangerID, file.ID, "")
		assert.ErrorIs(t, err, apperrors.ErrForbidden)

		last := e.audit.last(t)
		assert.Equal(t, auditInfo.ActionDownload, last.action)
		assert.Equal(t, strangerID, last.actorID)
		assert.Equal(t, false, last.details["allowed"])
	})

	t.Run("missing file is NotFound and audited", func(t *testing.T) {
		e := setup(t)

		_, _, err := e.svc.Download(ctx, ownerID, uuid.New(), "")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Equal(t, "not_found", e.audit.last(t).details["reason"])
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("only the owner deletes", func(t *testing.T) {
		e := setup(t)
		file := e.upload(t, "content")

		err := e.svc.Delete(ctx, strangerID, file.ID)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("delete cascades grants and removes bytes", func(t *testing.T) {
		e := setup(t)
		file := e.upload(t, "content")
		g, err := grantInfo.NewUserGrant(file.ID, ownerID, granteeID, nil)
		assert.NoError(t, err)
		e.store.addGrant(g)

		assert.NoError(t, e.svc.Delete(ctx, ownerID, file.ID))

		grants, err := e.store.ListByFile(ctx, file.ID)
		assert.NoError(t, err)
		assert.Empty(t, grants)
		assert.Empty(t, e.storage.objects)

		// The grantee's previously valid grant no longer authorizes anything:
		// the file is simply gone.
		_, _, err = e.svc.Download(ctx, granteeID, file.ID, "")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		assert.Equal(t, auditInfo.ActionDelete, e.audit.last(t).action)
	})

	t.Run("missing file", func(t *testing.T) {
		e := setup(t)
		err := e.svc.Delete(ctx, ownerID, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	file := e.upload(t, "content")

	t.Run("owner reads metadata", func(t *testing.T) {
		got, err := e.svc.Get(ctx, ownerID, file.ID, "")
		assert.NoError(t, err)
		assert.Equal(t, file.ID, got.ID)
	})

	t.Run("stranger is refused", func(t *testing.T) {
		_, err := e.svc.Get(ctx, strangerID, file.ID, "")
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("list own files", func(t *testing.T) {
		files, err := e.svc.ListOwn(ctx, ownerID)
		assert.NoError(t, err)
		assert.Len(t, files, 1)

		files, err = e.svc.ListOwn(ctx, strangerID)
		assert.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestListSharedWithMe(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	file := e.upload(t, "content")

	g, err := grantInfo.NewUserGrant(file.ID, ownerID, granteeID, nil)
	assert.NoError(t, err)
	e.store.addGrant(g)

	token := strings.Repeat("a", grantInfo.TokenLength)
	link, err := grantInfo.NewLinkGrant(file.ID, ownerID, token, nil)
	assert.NoError(t, err)
	e.store.addGrant(link)

	t.Run("grantee sees the shared file", func(t *testing.T) {
		files, err := e.svc.ListSharedWithMe(ctx, granteeID)
		assert.NoError(t, err)
		assert.Len(t, files, 1)
		assert.Equal(t, file.ID, files[0].ID)
	})

	t.Run("link grants do not appear in anyone's listing", func(t *testing.T) {
		files, err := e.svc.ListSharedWithMe(ctx, strangerID)
		assert.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("revoked grant drops out immediately", func(t *testing.T) {
		g.Active = false
		defer func() { g.Active = true }()

		files, err := e.svc.ListSharedWithMe(ctx, granteeID)
		assert.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("expired grant drops out", func(t *testing.T) {
		exp := time.Now().Add(-time.Minute)
		g.ExpiresAt = &exp
		defer func() { g.ExpiresAt = nil }()

		files, err := e.svc.ListSharedWithMe(ctx, granteeID)
		assert.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestDownloadShared(t *testing.T) {
	ctx := context.Background()

	t.Run("streams the bytes and audits one download", func(t *testing.T) {
		e := setup(t)
		file := e.upload(t, "linked content")

		token := strings.Repeat("b", grantInfo.TokenLength)
		link, err := grantInfo.NewLinkGrant(file.ID, ownerID, token, nil)
		assert.NoError(t, err)
		e.store.addGrant(link)

		before := len(e.audit.events)
		reader, got, err := e.svc.DownloadShared(ctx, strangerID, token)
		assert.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, "linked content", string(data))
		assert.Equal(t, file.ID, got.ID)

		assert.Len(t, e.audit.events, before+1)
		last := e.audit.last(t)
		assert.Equal(t, auditInfo.ActionDownload, last.action)
		assert.Equal(t, "link", last.details["accessed_via"])
		assert.Equal(t, link.ID.String(), last.details["grant_id"])
	})

	t.Run("unknown token", func(t *testing.T) {
		e := setup(t)
		_, _, err := e.svc.DownloadShared(ctx, strangerID, strings.Repeat("c", grantInfo.TokenLength))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Equal(t, false, e.audit.last(t).details["allowed"])
	})

	t.Run("unresolved actor", func(t *testing.T) {
		e := setup(t)
		_, _, err := e.svc.DownloadShared(ctx, 0, strings.Repeat("d", grantInfo.TokenLength))
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})
}
