package assets

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"portfolio-api/internal/shared/server/respond"
)

const (
	defaultMaxUploadBytes = 10 << 20
	multipartOverhead     = 1 << 20
	cacheControl          = "public, max-age=31536000"
	formField             = "image"
)

// Handler wires image upload and retrieval to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler. maxUploadBytes <= 0 uses 10 MiB.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches /upload-image and /images/*name. guards protect
// the upload only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guards ...gin.HandlerFunc) {
	upload := append(append([]gin.HandlerFunc{}, guards...), h.upload)
	rg.OPTIONS("/upload-image", respond.NoContent)
	rg.POST("/upload-image", upload...)
	rg.GET("/images/*name", h.image)
}

func (h *Handler) upload(c *gin.Context) {
	c.Set("collection", StoreName)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+multipartOverhead)

	fileHeader, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusBadRequest, "validation", "file too large")
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation", "No file provided")
		return
	}
	if fileHeader.Size > h.MaxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation", "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation", "unable to read file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.MaxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation", "unable to read file")
		return
	}
	if int64(len(data)) > h.MaxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation", "file too large")
		return
	}

	key, err := h.Svc.Store(c.Request.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, gin.H{"url": "/api/images/" + url.PathEscape(key)})
}

func (h *Handler) image(c *gin.Context) {
	c.Set("collection", StoreName)
	name := c.Param("name")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		respond.Error(c, http.StatusBadRequest, "validation", "Filename required")
		return
	}

	asset, err := h.Svc.Retrieve(c.Request.Context(), name)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Header("Cache-Control", cacheControl)
	c.Data(http.StatusOK, asset.ContentType, asset.Data)
}
