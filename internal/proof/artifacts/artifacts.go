// Package artifacts loads circuit proving and verifying keys. Artifacts are
// produced by an out-of-band ceremony; this package only loads, pins, and
// caches them. A circuit whose artifacts cannot be loaded is unprovable and
// unverifiable, and callers surface that as "never attempted" rather than a
// rejection.
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"privid/internal/proof/groth16"
	dErrors "privid/pkg/domain-errors"
)

// Artifacts is one circuit's key material.
type Artifacts struct {
	CircuitID       string
	Version         string
	NumPublicInputs int
	ProvingKey      *groth16.ProvingKey
	VerifyingKey    *groth16.VerifyingKey
	// VKHash pins the verifying key wire form. Verifiers compare it against
	// the hash carried in proof metadata before trusting a proof.
	VKHash string
}

//go:generate mockgen -destination mocks/source.go -package mocks privid/internal/proof/artifacts Source

// Source loads artifacts by circuit id.
type Source interface {
	Load(ctx context.Context, circuitID string) (*Artifacts, error)
}

// bundle is the on-disk layout of one circuit's artifacts.
type bundle struct {
	CircuitID    string          `json:"circuitId"`
	Version      string          `json:"version"`
	ProvingKey   json.RawMessage `json:"provingKey"`
	VerifyingKey json.RawMessage `json:"verifyingKey"`
}

// FS loads artifacts from <dir>/<circuitID>.json.
type FS struct {
	dir string
}

// NewFS constructs a filesystem source rooted at dir.
func NewFS(dir string) *FS {
	return &FS{dir: dir}
}

// Load reads and decodes one circuit bundle.
func (f *FS) Load(_ context.Context, circuitID string) (*Artifacts, error) {
	path := filepath.Join(f.dir, circuitID+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted,
			fmt.Sprintf("circuit artifacts for %s unavailable", circuitID))
	}

	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted,
			fmt.Sprintf("circuit artifacts for %s malformed", circuitID))
	}
	if b.CircuitID != circuitID {
		return nil, dErrors.New(dErrors.CodeUnattempted,
			fmt.Sprintf("artifact bundle names circuit %q, wanted %q", b.CircuitID, circuitID))
	}

	pk, err := groth16.UnmarshalProvingKey(b.ProvingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted,
			fmt.Sprintf("proving key for %s malformed", circuitID))
	}
	vk, err := groth16.UnmarshalVerifyingKey(b.VerifyingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted,
			fmt.Sprintf("verifying key for %s malformed", circuitID))
	}

	return &Artifacts{
		CircuitID:       circuitID,
		Version:         b.Version,
		NumPublicInputs: vk.NumPublicInputs(),
		ProvingKey:      pk,
		VerifyingKey:    vk,
		VKHash:          groth16.VerifyingKeyHash(b.VerifyingKey),
	}, nil
}

// WriteBundle serializes a circuit's keys into the on-disk bundle layout.
// Used by setup tooling and test fixtures.
func WriteBundle(dir, circuitID, version string, pk *groth16.ProvingKey, vk *groth16.VerifyingKey) error {
	pkRaw, err := groth16.MarshalProvingKey(pk)
	if err != nil {
		return err
	}
	vkRaw, err := groth16.MarshalVerifyingKey(vk)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(bundle{
		CircuitID:    circuitID,
		Version:      version,
		ProvingKey:   pkRaw,
		VerifyingKey: vkRaw,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, circuitID+".json"), raw, 0o600)
}

// Cached wraps a Source with a process-wide cache. Artifacts are immutable
// per (circuit, version), so a hit never revalidates.
type Cached struct {
	source Source

	mu    sync.RWMutex
	cache map[string]*Artifacts
}

// NewCached wraps source with caching.
func NewCached(source Source) *Cached {
	return &Cached{source: source, cache: make(map[string]*Artifacts)}
}

// Load returns cached artifacts or falls through to the source. Failed loads
// are not cached, so a repaired backing store recovers without a restart.
func (c *Cached) Load(ctx context.Context, circuitID string) (*Artifacts, error) {
	c.mu.RLock()
	hit, ok := c.cache[circuitID]
	c.mu.RUnlock()
	if ok {
		return hit, nil
	}

	a, err := c.source.Load(ctx, circuitID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[circuitID] = a
	c.mu.Unlock()
	return a, nil
}
