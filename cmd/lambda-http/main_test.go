package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

func TestHandlerReportsBootstrapFailure(t *testing.T) {
	calls := 0
	h := newHandler(func() (*gin.Engine, error) {
		calls++
		return nil, errors.New("missing bucket")
	})

	for i := 0; i < 2; i++ {
		resp, err := h(context.Background(), events.APIGatewayV2HTTPRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", resp.StatusCode)
		}
		if resp.Body != `{"error":"bootstrap failed"}` {
			t.Fatalf("unexpected body %s", resp.Body)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single build attempt, got %d", calls)
	}
}

func TestHandlerProxiesToRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newHandler(func() (*gin.Engine, error) {
		r := gin.New()
		r.GET("/api/projects", func(c *gin.Context) { c.JSON(http.StatusOK, []any{}) })
		return r, nil
	})

	req := events.APIGatewayV2HTTPRequest{
		RawPath: "/api/projects",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: http.MethodGet,
				Path:   "/api/projects",
			},
		},
	}
	resp, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Body != "[]" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
}
