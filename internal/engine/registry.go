package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrStorageNotFound means the group's storage root does not exist;
	// the group was deleted or never provisioned.
	ErrStorageNotFound = errors.New("group storage directory not found")

	// ErrNotReady means engine construction or storage initialization
	// failed. The failure is not cached; a later Resolve retries.
	ErrNotReady = errors.New("engine initialization failed")
)

// Builder constructs an engine instance rooted at workingDir.
type Builder func(ctx context.Context, groupID, workingDir string) (Engine, error)

// Registry caches one engine instance per group. Concurrent Resolve
// calls for the same uninitialized group coalesce into a single
// construction; only successful builds enter the cache.
type Registry struct {
	dataDir string
	builder Builder
	log     *zap.Logger

	mu        sync.RWMutex
	instances map[string]Engine
	// generations count evictions per group id. A build that started
	// before an eviction must not enter the cache after it; group ids
	// are never reused, so a bumped generation is permanent.
	generations map[string]uint64
	flight      singleflight.Group
}

func NewRegistry(dataDir string, builder Builder, log *zap.Logger) *Registry {
	return &Registry{
		dataDir:     dataDir,
		builder:     builder,
		log:         log,
		instances:   make(map[string]Engine),
		generations: make(map[string]uint64),
	}
}

// GroupDir returns the storage root for a group under dataDir.
func GroupDir(dataDir, groupID string) string {
	return filepath.Join(dataDir, "groups", groupID)
}

func (r *Registry) GroupDir(groupID string) string {
	return GroupDir(r.dataDir, groupID)
}

// Resolve returns the cached instance for the group, building and
// caching one if needed.
func (r *Registry) Resolve(ctx context.Context, groupID string) (Engine, error) {
	r.mu.RLock()
	inst, ok := r.instances[groupID]
	r.mu.RUnlock()
	if ok {
		return inst, nil
	}

	v, err, _ := r.flight.Do(groupID, func() (interface{}, error) {
		// A concurrent caller may have completed the build while this
		// one waited on the flight slot.
		r.mu.RLock()
		inst, ok := r.instances[groupID]
		gen := r.generations[groupID]
		r.mu.RUnlock()
		if ok {
			return inst, nil
		}

		workingDir := r.GroupDir(groupID)
		if _, statErr := os.Stat(workingDir); statErr != nil {
			return nil, fmt.Errorf("%w for group %q", ErrStorageNotFound, groupID)
		}

		built, buildErr := r.builder(ctx, groupID, workingDir)
		if buildErr != nil {
			r.log.Error("engine construction failed",
				zap.String("group_id", groupID),
				zap.Error(buildErr))
			return nil, fmt.Errorf("%w: %v", ErrNotReady, buildErr)
		}

		r.mu.Lock()
		if r.generations[groupID] != gen {
			// The group was evicted while this build ran; its storage
			// root is gone or going. Discard the instance.
			r.mu.Unlock()
			if finErr := built.Finalize(); finErr != nil {
				r.log.Warn("engine finalize failed",
					zap.String("group_id", groupID),
					zap.Error(finErr))
			}
			return nil, fmt.Errorf("%w for group %q", ErrStorageNotFound, groupID)
		}
		r.instances[groupID] = built
		r.mu.Unlock()

		r.log.Info("engine instance initialized", zap.String("group_id", groupID))
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Engine), nil
}

// Evict finalizes and removes the cached instance for a group.
// Finalization errors are logged and swallowed; eviction always
// succeeds from the caller's perspective.
func (r *Registry) Evict(groupID string) {
	r.mu.Lock()
	inst, ok := r.instances[groupID]
	delete(r.instances, groupID)
	r.generations[groupID]++
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := inst.Finalize(); err != nil {
		r.log.Warn("engine finalize failed",
			zap.String("group_id", groupID),
			zap.Error(err))
	}
	r.log.Info("engine instance evicted", zap.String("group_id", groupID))
}

// EvictAll finalizes every cached instance. Called once at shutdown.
func (r *Registry) EvictAll() {
	r.mu.Lock()
	instances := r.instances
	r.instances = make(map[string]Engine)
	for groupID := range instances {
		r.generations[groupID]++
	}
	r.mu.Unlock()

	for groupID, inst := range instances {
		if err := inst.Finalize(); err != nil {
			r.log.Warn("engine finalize failed",
				zap.String("group_id", groupID),
				zap.Error(err))
		}
	}
}
