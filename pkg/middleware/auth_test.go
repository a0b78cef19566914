package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"share-service/pkg/middleware"
)

type fakeResolver struct {
	actorID uint32
	err     error
	seen    string
}

func (f *fakeResolver) ResolveActor(_ context.Context, token string) (uint32, error) {
	f.seen = token
	return f.actorID, f.err
}

func performRequest(resolver *fakeResolver, header string) (*httptest.ResponseRecorder, uint32) {
	gin.SetMode(gin.TestMode)
	var gotActor uint32

	r := gin.New()
	r.GET("/protected", middleware.RequireAuth(resolver), func(c *gin.Context) {
		gotActor = middleware.ActorID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, gotActor
}

func TestRequireAuth(t *testing.T) {
	t.Run("valid bearer token", func(t *testing.T) {
		resolver := &fakeResolver{actorID: 7}
		w, actorID := performRequest(resolver, "Bearer good-token")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "good-token", resolver.seen)
		assert.Equal(t, uint32(7), actorID)
	})

	t.Run("missing header", func(t *testing.T) {
		w, _ := performRequest(&fakeResolver{}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("not a bearer scheme", func(t *testing.T) {
		w, _ := performRequest(&fakeResolver{}, "Basic dXNlcjpwYXNz")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("resolver rejects the token", func(t *testing.T) {
		resolver := &fakeResolver{err: errors.New("invalid token")}
		w, _ := performRequest(resolver, "Bearer bad-token")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestActorID_Unauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uint32(0), middleware.ActorID(c))
}
