// Package idx generates the two identifier kinds used across the service:
// int64 snowflake IDs for relational surrogate keys, and ULID strings for
// opaque sortable handles (request IDs, MFA challenge tokens, refresh-token
// row IDs).
package idx

import (
	"crypto/rand"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
)

// ErrInvalid reports a malformed ULID handle.
var ErrInvalid = errors.New("idx: invalid handle")

var (
	nodeOnce sync.Once
	node     *snowflake.Node

	handleOnce sync.Once
	handleGen  *handleGenerator
)

// handleGenerator safely produces ULIDs concurrently from a monotonic source.
type handleGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (g *handleGenerator) newAt(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

func initNode() {
	n := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			n = parsed
		}
	}
	var err error
	node, err = snowflake.NewNode(n)
	if err != nil {
		// Node IDs outside [0, 1023] are a deployment error; fall back to
		// node 0 rather than refusing to start.
		node, _ = snowflake.NewNode(0)
	}
}

// NewID returns a time-ordered int64 snowflake ID for use as a surrogate
// primary key. The node ID comes from SNOWFLAKE_NODE (default 1) so
// horizontally scaled instances never collide.
func NewID() int64 {
	nodeOnce.Do(initNode)
	return node.Generate().Int64()
}

// NewHandle returns a lexicographically sortable ULID string using the
// current UTC time and a monotonic entropy source.
func NewHandle() string {
	handleOnce.Do(func() {
		handleGen = &handleGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
	})
	return handleGen.newAt(time.Now().UTC())
}

// NewHandleAt generates a handle at the provided time, useful for tests and
// time-bounded cursors.
func NewHandleAt(t time.Time) string {
	handleOnce.Do(func() {
		handleGen = &handleGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
	})
	return handleGen.newAt(t.UTC())
}

// ParseHandle validates a ULID handle's form.
func ParseHandle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", ErrInvalid
	}
	return s, nil
}

// HandleTime extracts the embedded UTC timestamp from a handle, or the zero
// time when the handle is invalid.
func HandleTime(s string) time.Time {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
