package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"portfolio-api/internal/shared/apperr"
)

func TestFromErrorStatusAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "validation", err: apperr.Validation("ID required"), status: http.StatusBadRequest, message: "ID required"},
		{name: "not found", err: apperr.NotFound("Project not found"), status: http.StatusNotFound, message: "Project not found"},
		{name: "conflict", err: apperr.Conflict("projects changed concurrently", nil), status: http.StatusConflict, message: "projects changed concurrently"},
		{name: "configuration", err: apperr.Configuration("ADMIN_PASSWORD not configured"), status: http.StatusInternalServerError, message: "ADMIN_PASSWORD not configured"},
		{name: "storage", err: apperr.Storage("load projects", errors.New("bucket unreachable")), status: http.StatusInternalServerError, message: "load projects: bucket unreachable"},
		{name: "unclassified", err: errors.New("boom"), status: http.StatusInternalServerError, message: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(resp)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/projects", nil)

			FromError(c, tt.err)

			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.Code)
			}
			if ct := resp.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Fatalf("unexpected content type %q", ct)
			}
			var body ErrorResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, body.Error)
			}
		})
	}
}
