package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio-api/internal/shared/apperr"
	"portfolio-api/internal/shared/server/respond"
)

const maxRecordBodyBytes = 1 << 20

// Handler exposes one collection over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches /<collection> routes to rg. guards run before the
// mutating handlers only; reads are public.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guards ...gin.HandlerFunc) {
	path := "/" + h.Svc.Name()
	tag := h.tagCollection

	rg.OPTIONS(path, respond.NoContent)
	rg.GET(path, tag, h.list)
	rg.POST(path, chain(tag, guards, h.create)...)
	rg.PUT(path, chain(tag, guards, h.update)...)
	rg.DELETE(path, chain(tag, guards, h.delete)...)
}

func chain(first gin.HandlerFunc, guards []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+2)
	out = append(out, first)
	out = append(out, guards...)
	return append(out, last)
}

func (h *Handler) tagCollection(c *gin.Context) {
	c.Set("collection", h.Svc.Name())
	c.Next()
}

func (h *Handler) list(c *gin.Context) {
	records, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, records)
}

func (h *Handler) create(c *gin.Context) {
	rec, err := decodeRecord(c)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	created, err := h.Svc.Create(c.Request.Context(), rec)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Created(c, created)
}

func (h *Handler) update(c *gin.Context) {
	rec, err := decodeRecord(c)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	updated, err := h.Svc.Update(c.Request.Context(), rec)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, updated)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Query("id")); err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, gin.H{"success": true})
}

// decodeRecord reads a single JSON object from the request body, keeping
// numbers as json.Number so they round-trip unchanged.
func decodeRecord(c *gin.Context) (Record, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Validation("request body too large")
		}
		return nil, apperr.Validation("unable to read request body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, apperr.Validation("invalid JSON body")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperr.Validation("invalid JSON body")
	}
	if rec == nil {
		return nil, apperr.Validation("request body must be a JSON object")
	}
	return rec, nil
}
