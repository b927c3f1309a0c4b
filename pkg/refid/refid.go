// Package refid generates transaction reference ids of the form
// {PREFIX}-{YYYYMMDD}-{SUFFIX}, where SUFFIX is the uppercase base36
// rendering of a monotonic ULID, zero-padded to 25 characters.
package refid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SuffixLen is the width of a base36-encoded 128-bit ULID.
const SuffixLen = 25

var pattern = regexp.MustCompile(`^[A-Z0-9]{2,10}-\d{8}-[0-9A-Z]{25}$`)

// Generator produces reference ids. Ids created by one Generator are
// strictly increasing, including ids minted within the same millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewWithClock is New with an injectable clock.
func NewWithClock(now func() time.Time) *Generator {
	g := New()
	g.now = now
	return g
}

// Next returns a fresh reference id for prefix (usually an asset code).
func (g *Generator) Next(prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", fmt.Errorf("refid: empty prefix")
	}

	g.mu.Lock()
	ts := g.now().UTC()
	id, err := ulid.New(ulid.Timestamp(ts), g.entropy)
	g.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("refid: generating ulid: %w", err)
	}

	return fmt.Sprintf("%s-%s-%s", prefix, ts.Format("20060102"), encode(id)), nil
}

// Valid reports whether s is shaped like a reference id.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

func encode(id ulid.ULID) string {
	s := strings.ToUpper(new(big.Int).SetBytes(id[:]).Text(36))
	if len(s) < SuffixLen {
		s = strings.Repeat("0", SuffixLen-len(s)) + s
	}
	return s
}
