// Package generation implements the revprop generation counter used
// to invalidate cached revprops after a write, grounded on spec.md
// §4.8 and original_source's subversion/libsvn_fs_fs/revprops.c
// (its "packed_revprops" generation handling). Subversion backs this
// with a named inter-process atomic over shared memory; this
// implementation keeps the same odd/even write-in-progress protocol
// but serializes the counter to the on-disk seed file on every
// transition, since a Go process has no equivalent to APR's anonymous
// shared memory segment without added dependencies the rest of the
// pack does not otherwise need.
package generation

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
)

// DefaultStaleTimeout is how long a reader waits before assuming a
// writer that left the generation on an odd value has died.
const DefaultStaleTimeout = 10 * time.Second

// persister seeds and durably records the generation counter.
// Implementations typically wrap db/revprop-generation.
type persister interface {
	Load() (uint64, error)
	Store(uint64) error
}

// Tracker is one repository's generation counter. Its on-disk seed
// file is db/revprop-generation; each open Repository constructs and
// holds its own Tracker.
type Tracker struct {
	mu      sync.Mutex
	value   uint64
	writeAt time.Time // when the current odd (write-in-progress) value was set
	timeout time.Duration
	store   persister
}

// New returns a Tracker seeded from store, or zero if the file does
// not exist yet (a brand new repository).
func New(store persister, timeout time.Duration) (*Tracker, error) {
	if timeout <= 0 {
		timeout = DefaultStaleTimeout
	}
	v, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Tracker{value: v, timeout: timeout, store: store}, nil
}

// Current returns the generation value visible to readers right now,
// recovering a stale write-in-progress marker first if one is found
// and heldWriteLock is true (only the current write-lock holder may
// perform the recovery bump, per spec.md §4.8).
func (t *Tracker) Current(heldWriteLock bool) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isOdd() && heldWriteLock && time.Since(t.writeAt) > t.timeout {
		if err := t.recoverLocked(); err != nil {
			return 0, err
		}
	}
	return t.value, nil
}

// IsStable reports whether the generation is even, i.e. no write is
// currently in progress.
func (t *Tracker) IsStable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.isOdd()
}

func (t *Tracker) isOdd() bool { return t.value%2 == 1 }

// BeginWrite bumps the counter to the next odd value, marking a
// revprop mutation as in progress, and persists it. Callers must hold
// the repository write lock.
func (t *Tracker) BeginWrite() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value++
	t.writeAt = time.Now()
	return t.store.Store(t.value)
}

// EndWrite bumps the counter to the next even value, marking the
// mutation complete, and persists it.
func (t *Tracker) EndWrite() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value++
	return t.store.Store(t.value)
}

// recoverLocked bumps a stale odd generation to even without going
// through the normal BeginWrite/EndWrite pair, simulating the dead
// writer having completed. Caller must hold t.mu.
func (t *Tracker) recoverLocked() error {
	t.value++
	return t.store.Store(t.value)
}

// After reports whether a, as observed at one point in time, is
// logically newer than b, tolerating 64-bit wraparound the way a
// strictly increasing but eventually-overflowing counter must: the
// comparison treats the smaller of two "halves" of the space as ahead,
// per the sequence-number comparison idiom (RFC 1982 ss 2).
func After(a, b uint64) bool {
	return a != b && (a-b) < (uint64(1)<<63)
}

// FilePersister implements persister over a plain text file holding
// the decimal generation value, matching db/revprop-generation's
// documented format.
type FilePersister struct {
	readFile  func() ([]byte, error)
	writeFile func([]byte) error
}

// NewFilePersister wraps the given read/write primitives. Callers
// supply closures over their own atomic-rename file write helper so
// this package stays free of a direct os dependency.
func NewFilePersister(readFile func() ([]byte, error), writeFile func([]byte) error) *FilePersister {
	return &FilePersister{readFile: readFile, writeFile: writeFile}
}

// Load reads the current generation, returning 0 if the file does not
// yet exist (readFile must return a nil error with empty content, or
// the caller's own not-exist handling, for that case).
func (p *FilePersister) Load() (uint64, error) {
	data, err := p.readFile()
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fsfserr.MalformedIndex("generation: bad counter in db/revprop-generation")
	}
	return v, nil
}

// Store durably records v.
func (p *FilePersister) Store(v uint64) error {
	return p.writeFile([]byte(strconv.FormatUint(v, 10) + "\n"))
}
