package fileHandler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"share-service/internal/apperrors"
	"share-service/internal/service/auditService"
	"share-service/internal/service/fileService"
	"share-service/pkg/middleware"
)

type FileHandler struct {
	files *fileService.FileService
	audit *auditService.AuditService
}

func New(files *fileService.FileService, audit *auditService.AuditService) *FileHandler {
	return &FileHandler{files: files, audit: audit}
}

func (h *FileHandler) Upload(c *gin.Context) {
	actorID := middleware.ActorID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	file, err := h.files.Upload(c.Request.Context(), actorID, fileHeader.Filename, contentType, src, fileHeader.Size)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, file)
}

func (h *FileHandler) List(c *gin.Context) {
	actorID := middleware.ActorID(c)

	files, err := h.files.ListOwn(c.Request.Context(), actorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *FileHandler) ListShared(c *gin.Context) {
	actorID := middleware.ActorID(c)

	files, err := h.files.ListSharedWithMe(c.Request.Context(), actorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list shared files"})
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *FileHandler) Get(c *gin.Context) {
	actorID := middleware.ActorID(c)
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	file, err := h.files.Get(c.Request.Context(), actorID, fileID, c.Query("token"))
	if err != nil {
		c.JSON(concealing(err), gin.H{"error": "file not found"})
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *FileHandler) Download(c *gin.Context) {
	actorID := middleware.ActorID(c)
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	reader, file, err := h.files.Download(c.Request.Context(), actorID, fileID, c.Query("token"))
	if err != nil {
		c.JSON(concealing(err), gin.H{"error": "file not found"})
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(file.Name))
	c.Header("Content-Type", file.ContentType)
	c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	c.Status(http.StatusOK)
	io.Copy(c.Writer, reader)
}

func (h *FileHandler) Delete(c *gin.Context) {
	actorID := middleware.ActorID(c)
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	if err := h.files.Delete(c.Request.Context(), actorID, fileID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "file deleted"})
}

func (h *FileHandler) Activity(c *gin.Context) {
	actorID := middleware.ActorID(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := h.audit.History(c.Request.Context(), actorID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load activity"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// concealing maps errors for read paths: a denied actor learns nothing about
// whether the file exists.
func concealing(err error) int {
	if errors.Is(err, apperrors.ErrForbidden) {
		return http.StatusNotFound
	}
	return apperrors.HTTPStatus(err)
}
