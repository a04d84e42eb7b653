package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRenderIncludesRecordedSeries(t *testing.T) {
	IncRecordMutation("projects", "create")
	IncRecordConflict("projects")
	IncStorageError("images")
	IncAssetUpload()
	ObserveRequestDuration(42 * time.Millisecond)

	body, err := Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(body)
	for _, want := range []string{
		"# TYPE record_mutations_total counter",
		`record_mutations_total{collection="projects",op="create"}`,
		`record_conflicts_total{collection="projects"}`,
		`storage_errors_total{component="images"}`,
		"asset_uploads_total",
		"# TYPE http_request_duration_ms histogram",
		`http_request_duration_ms_bucket{le="50"}`,
		`http_request_duration_ms_bucket{le="+Inf"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestEmptyFamiliesAreSkipped(t *testing.T) {
	fam := newCounterVec("unused_total", "never incremented", "label").family()
	if len(fam.Metric) != 0 {
		t.Fatalf("expected no samples")
	}
	if _, err := Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
}
