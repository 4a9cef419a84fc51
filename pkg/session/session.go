// Package session holds solved runs for the HTTP API.
//
// A solve over the API returns a run ID. The run keeps the solver result
// together with the exact configuration record it was solved with, so a
// later export of the run reproduces the same bays even after the catalog
// has been reloaded.
//
// Runs live in process memory only and expire after a TTL. Call
// [MemoryStore.Sweep] in a goroutine to remove expired runs periodically.
//
// # Usage
//
//	store := session.NewMemoryStore()
//	go store.Sweep(ctx, time.Minute)
//
//	run := session.New(cfg, req, res, session.DefaultTTL)
//	_ = store.Set(ctx, run)
//
//	run, err := store.Get(ctx, id)
//	if errors.Is(err, session.ErrNotFound) {
//	    // unknown or expired
//	}
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/racksizer/pkg/rack"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// Sentinel errors for run operations.
var (
	// ErrNotFound is returned when a run does not exist or has expired.
	ErrNotFound = errors.New("run not found")
)

// Run is one stored solve.
type Run struct {
	ID        string             `json:"id"`
	Config    rack.Configuration `json:"config"`
	Request   solver.Request     `json:"request"`
	Result    *solver.Result     `json:"result"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// IsExpired returns true if the run has expired.
func (r *Run) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// Store is the interface for run storage backends.
type Store interface {
	// Get retrieves a run by ID. Returns ErrNotFound for unknown or expired runs.
	Get(ctx context.Context, id string) (*Run, error)

	// Set stores a run.
	Set(ctx context.Context, run *Run) error

	// Delete removes a run.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired runs and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
}

// DefaultTTL is the default run lifetime.
const DefaultTTL = time.Hour

// GenerateID creates a random run ID.
func GenerateID() string {
	return uuid.NewString()
}

// New creates a run for a solved request. The configuration snapshot is
// taken from cfg; req.Config is replaced with the same snapshot.
func New(cfg rack.Configuration, req solver.Request, res *solver.Result, ttl time.Duration) *Run {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cfg = cfg.Clone()
	req.Config = cfg
	now := time.Now()
	return &Run{
		ID:        GenerateID(),
		Config:    cfg,
		Request:   req,
		Result:    res,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
