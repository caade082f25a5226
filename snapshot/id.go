package snapshot

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a lowercase ULID: a millisecond timestamp followed by 80
// random bits. Ids generated within the same millisecond increase
// monotonically, so they never collide within a process.
func NewID() (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return strings.ToLower(id.String()), nil
}

// idSuffix returns the trailing random characters of id, used for
// placeholder names.
func idSuffix(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[len(id)-6:]
}
