package metrics

import (
	"bytes"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"portfolio-api/internal/shared/telemetry"
)

var (
	recordMutations = newCounterVec("record_mutations_total", "Successful record mutations", "collection", "op")
	recordConflicts = newCounterVec("record_conflicts_total", "Optimistic write conflicts observed by the record engine", "collection")
	storageErrors   = newCounterVec("storage_errors_total", "Blob store failures", "component")
	assetUploads    = newCounterVec("asset_uploads_total", "Stored image uploads")

	requestDuration = newHistogram("http_request_duration_ms", "HTTP request duration in milliseconds",
		[]float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000})
)

// IncRecordMutation counts a persisted create, update or delete.
func IncRecordMutation(collection, op string) {
	recordMutations.inc(collection, op)
}

// IncRecordConflict counts a failed version precondition.
func IncRecordConflict(collection string) {
	recordConflicts.inc(collection)
}

// IncStorageError counts a backend failure for component (a collection or "images").
func IncStorageError(component string) {
	storageErrors.inc(component)
}

func IncAssetUpload() {
	assetUploads.inc()
}

// ObserveRequestDuration records one request latency.
func ObserveRequestDuration(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	if ms < 0 {
		ms = 0
	}
	requestDuration.observe(ms)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := Render()
		if err != nil {
			telemetry.Error("metrics.render_failed", map[string]any{"error": err.Error()})
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, string(expfmt.NewFormat(expfmt.TypeTextPlain)), body)
	}
}

// Render encodes every metric family in text exposition format.
func Render() ([]byte, error) {
	families := []*dto.MetricFamily{
		recordMutations.family(),
		recordConflicts.family(),
		storageErrors.family(),
		assetUploads.family(),
		requestDuration.family(),
	}
	var buf bytes.Buffer
	for _, mf := range families {
		// The text encoder rejects families without samples.
		if len(mf.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type counterVec struct {
	name   string
	help   string
	labels []string

	mu     sync.Mutex
	values map[string]float64
}

func newCounterVec(name, help string, labels ...string) *counterVec {
	return &counterVec{name: name, help: help, labels: labels, values: make(map[string]float64)}
}

func (v *counterVec) inc(labelValues ...string) {
	key := strings.Join(labelValues, "\xff")
	v.mu.Lock()
	v.values[key]++
	v.mu.Unlock()
}

func (v *counterVec) family() *dto.MetricFamily {
	v.mu.Lock()
	defer v.mu.Unlock()

	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mf := &dto.MetricFamily{
		Name: strPtr(v.name),
		Help: strPtr(v.help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	if len(v.labels) == 0 {
		mf.Metric = append(mf.Metric, &dto.Metric{Counter: &dto.Counter{Value: floatPtr(v.values[""])}})
		return mf
	}
	for _, k := range keys {
		values := strings.Split(k, "\xff")
		m := &dto.Metric{Counter: &dto.Counter{Value: floatPtr(v.values[k])}}
		for i, name := range v.labels {
			if i < len(values) {
				m.Label = append(m.Label, &dto.LabelPair{Name: strPtr(name), Value: strPtr(values[i])})
			}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

type histogram struct {
	name    string
	help    string
	buckets []float64

	mu     sync.Mutex
	counts []uint64
	sum    float64
	count  uint64
}

func newHistogram(name, help string, buckets []float64) *histogram {
	return &histogram{name: name, help: help, buckets: buckets, counts: make([]uint64, len(buckets))}
}

func (h *histogram) observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) family() *dto.MetricFamily {
	h.mu.Lock()
	defer h.mu.Unlock()

	hist := &dto.Histogram{
		SampleCount: uintPtr(h.count),
		SampleSum:   floatPtr(h.sum),
	}
	for i, bound := range h.buckets {
		hist.Bucket = append(hist.Bucket, &dto.Bucket{
			CumulativeCount: uintPtr(h.counts[i]),
			UpperBound:      floatPtr(bound),
		})
	}
	return &dto.MetricFamily{
		Name:   strPtr(h.name),
		Help:   strPtr(h.help),
		Type:   dto.MetricType_HISTOGRAM.Enum(),
		Metric: []*dto.Metric{{Histogram: hist}},
	}
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func uintPtr(u uint64) *uint64    { return &u }
