package records

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator assigns ids to created records. Ids must be unique for the
// lifetime of a collection.
type IDGenerator interface {
	Next() string
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) Next() string {
	return uuid.NewString()
}

// ClockGenerator issues decimal millisecond timestamps, bumped forward when
// two calls land in the same millisecond so ids stay unique within a process.
type ClockGenerator struct {
	Now func() time.Time

	mu   sync.Mutex
	last int64
}

func (g *ClockGenerator) Next() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	ms := now().UnixMilli()

	g.mu.Lock()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return strconv.FormatInt(ms, 10)
}

// NewIDGenerator maps an ID_SCHEME value to a generator; unknown schemes get
// UUIDs.
func NewIDGenerator(scheme string) IDGenerator {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "timestamp":
		return &ClockGenerator{}
	default:
		return UUIDGenerator{}
	}
}
