// Package ids issues the identifiers the client attaches to API calls: a
// stable per-installation client id and a per-run session id.
package ids

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/store"
	"github.com/dmitrijs2005/syntheticsoul/internal/common"
	"github.com/google/uuid"
)

// randReader is the entropy source for the fallback generator.
var randReader io.Reader = rand.Reader

// newRandom is swapped in tests to force the fallback path.
var newRandom = uuid.NewRandom

// NewID returns a random (version 4) UUID string.
func NewID() string {
	if id, err := newRandom(); err == nil {
		return id.String()
	}
	return fallbackID()
}

// fallbackID builds a version 4 UUID by hand from randReader.
func fallbackID() string {
	var b [16]byte
	_, _ = io.ReadFull(randReader, b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80

	h := hex.EncodeToString(b[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:]
}

// ClientID returns the persisted client id, creating it on first use.
func ClientID(ctx context.Context, repo store.Repository) string {
	return getOrCreate(ctx, repo, common.ClientIDKey)
}

// SessionID returns the id for this run. repo is expected to be
// session-scoped (store.MemoryRepository).
func SessionID(ctx context.Context, repo store.Repository) string {
	return getOrCreate(ctx, repo, common.SessionIDKey)
}

// getOrCreate never fails: when the store is unusable a fresh,
// non-persistent id is returned.
func getOrCreate(ctx context.Context, repo store.Repository, key string) string {
	existing, err := repo.Get(ctx, key)
	if err != nil {
		return NewID()
	}
	if len(existing) > 0 {
		return string(existing)
	}

	id := NewID()
	_ = repo.Set(ctx, key, []byte(id))
	return id
}
