package shareHandler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"share-service/internal/apperrors"
	"share-service/internal/service/fileService"
	"share-service/internal/service/shareService"
	"share-service/pkg/middleware"
)

type ShareHandler struct {
	shares *shareService.ShareService
	files  *fileService.FileService
}

func New(shares *shareService.ShareService, files *fileService.FileService) *ShareHandler {
	return &ShareHandler{shares: shares, files: files}
}

type ShareWithUserRequest struct {
	FileID    uuid.UUID  `json:"file_id" binding:"required"`
	GranteeID uint32     `json:"grantee_id" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type ShareLinkRequest struct {
	FileID    uuid.UUID  `json:"file_id" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *ShareHandler) ShareWithUser(c *gin.Context) {
	actorID := middleware.ActorID(c)

	var req ShareWithUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	grant, err := h.shares.ShareWithUser(c.Request.Context(), actorID, req.FileID, req.GranteeID, req.ExpiresAt)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, grant)
}

func (h *ShareHandler) GenerateLink(c *gin.Context) {
	actorID := middleware.ActorID(c)

	var req ShareLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	grant, err := h.shares.GenerateShareLink(c.Request.Context(), actorID, req.FileID, req.ExpiresAt)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"grant_id":   grant.ID,
		"token":      grant.Token,
		"expires_at": grant.ExpiresAt,
	})
}

func (h *ShareHandler) ListMyGrants(c *gin.Context) {
	actorID := middleware.ActorID(c)

	grants, err := h.shares.ListMyGrants(c.Request.Context(), actorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list grants"})
		return
	}
	c.JSON(http.StatusOK, grants)
}

func (h *ShareHandler) Revoke(c *gin.Context) {
	actorID := middleware.ActorID(c)
	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grant id"})
		return
	}

	if err := h.shares.Revoke(c.Request.Context(), actorID, grantID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "share revoked"})
}

// Redeem exchanges a link token for the file metadata it grants.
func (h *ShareHandler) Redeem(c *gin.Context) {
	actorID := middleware.ActorID(c)

	file, grant, err := h.shares.RedeemLink(c.Request.Context(), actorID, c.Param("token"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": "share link expired or invalid"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file":       file,
		"expires_at": grant.ExpiresAt,
	})
}

// RedeemDownload streams the bytes behind a link token. One access, one
// audit event: the token is resolved once and recorded as a download.
func (h *ShareHandler) RedeemDownload(c *gin.Context) {
	actorID := middleware.ActorID(c)

	reader, file, err := h.files.DownloadShared(c.Request.Context(), actorID, c.Param("token"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": "share link expired or invalid"})
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(file.Name))
	c.Header("Content-Type", file.ContentType)
	c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	c.Status(http.StatusOK)
	io.Copy(c.Writer, reader)
}
