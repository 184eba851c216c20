// Package rtbvh manages bottom-level ray tracing hierarchies and the
// top-level hierarchy assembled over them.
//
// A Registry owns every hierarchy it builds. Handles stay stable across
// unrelated builds and destroys, and a destroyed handle never resolves
// again. All methods are safe for concurrent use.
package rtbvh

import (
	"sync"

	"github.com/gekko3d/rtbvh/rt/bvh"
	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// entry is one built object. cpu and gpu never change after insertion;
// a rebuild is a new entry under a new handle.
type entry struct {
	cpu       *bvh.CPUBVH
	gpu       *bvh.CWBVH
	transform core.Matrix
	triOffset int
	triCount  int
}

type slot struct {
	entry *entry
	gen   uint32
}

type Registry struct {
	id   uuid.UUID
	cfg  Config
	log  Logger
	prof *Profiler

	// mu guards slots and every entry's transform. Intersect holds it for
	// reading across the whole query so Destroy cannot overlap a traversal.
	mu    sync.RWMutex
	slots []slot
	live  int

	// tlasMu is always taken before mu.
	tlasMu sync.RWMutex
	tlas   *tlasState
}

func NewRegistry(cfg Config, logger Logger) *Registry {
	if logger == nil {
		logger = NewNopLogger()
	}
	r := &Registry{
		id:   uuid.New(),
		cfg:  cfg,
		log:  logger,
		prof: NewProfiler(),
	}
	r.debugf("created (cpu leaf %d, gpu leaf %d, bins %d)",
		cfg.Build.CPULeafSize, cfg.Build.GPULeafSize, cfg.Build.Bins)
	return r
}

func (r *Registry) ID() uuid.UUID {
	return r.id
}

func (r *Registry) debugf(format string, args ...any) {
	if !r.log.DebugEnabled() {
		return
	}
	r.log.Debugf("registry %s: "+format, append([]any{r.id.String()[:8]}, args...)...)
}

// Build builds the CPU hierarchy over triangles
// [startTriangle, startTriangle+triangleCount) of vertices, plus the GPU
// hierarchy when includeGPU is set. Vertices hold three entries per
// triangle. Ranges past the end of the buffer are clamped.
func (r *Registry) Build(vertices []mgl32.Vec4, startTriangle, triangleCount int, includeGPU bool) Handle {
	start, count := clampRange(len(vertices)/3, startTriangle, triangleCount)
	if start != startTriangle || count != triangleCount {
		r.log.Warnf("registry %s: triangle range [%d,+%d) clamped to [%d,+%d) for %d available",
			r.id.String()[:8], startTriangle, triangleCount, start, count, len(vertices)/3)
	}
	tris := vertices[start*3 : (start+count)*3]

	done := r.prof.Scope("build")
	e := &entry{
		cpu:       bvh.BuildCPU(tris, r.cfg.Build.cpuOptions()),
		transform: core.IdentityMatrix(),
		triOffset: start,
		triCount:  count,
	}
	if includeGPU {
		e.gpu = bvh.BuildCWBVH(tris, r.cfg.Build.gpuOptions())
	}
	done()

	r.mu.Lock()
	h := r.insertLocked(e)
	r.mu.Unlock()

	r.prof.AddCount("builds", 1)
	r.debugf("built %#x: %d triangles, %d cpu nodes, gpu=%t", uint64(h), count, e.cpu.NodeCount(), includeGPU)
	return h
}

func clampRange(available, start, count int) (int, int) {
	start = max(0, min(start, available))
	count = max(0, min(count, available-start))
	return start, count
}

// insertLocked reuses the lowest empty slot, or appends one.
func (r *Registry) insertLocked(e *entry) Handle {
	r.live++
	for i := range r.slots {
		if r.slots[i].entry == nil {
			r.slots[i].entry = e
			return makeHandle(uint32(i), r.slots[i].gen)
		}
	}
	r.slots = append(r.slots, slot{entry: e})
	return makeHandle(uint32(len(r.slots)-1), 0)
}

func (r *Registry) lookupLocked(h Handle) *entry {
	i := h.Slot()
	if int(i) >= len(r.slots) {
		return nil
	}
	s := r.slots[i]
	if s.entry == nil || s.gen != h.Generation() {
		return nil
	}
	return s.entry
}

// Destroy drops both hierarchies of h and frees its slot. Unknown handles
// are ignored.
func (r *Registry) Destroy(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lookupLocked(h) == nil {
		return
	}
	s := &r.slots[h.Slot()]
	s.entry = nil
	s.gen++
	r.live--
	r.debugf("destroyed %#x", uint64(h))
}

func (r *Registry) IsReady(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(h) != nil
}

// UpdateTransform sets the instance transform used by the next TLAS build.
// Entries without a GPU hierarchy never join the TLAS and are left alone.
func (r *Registry) UpdateTransform(h Handle, m core.Matrix) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.lookupLocked(h)
	if e == nil || e.gpu == nil {
		return
	}
	e.transform = m
}

func (r *Registry) Transform(h Handle) (core.Matrix, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(h)
	if e == nil {
		return core.Matrix{}, false
	}
	return e.transform, true
}

// TriangleRange reports the clamped range h was built from.
func (r *Registry) TriangleRange(h Handle) (start, count int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(h)
	if e == nil {
		return 0, 0, false
	}
	return e.triOffset, e.triCount, true
}

// Intersect casts one ray in object space against h. The GPU hierarchy is
// used when preferGPU is set and it exists. Prim in the result is relative
// to the start of the entry's triangle range.
func (r *Registry) Intersect(h Handle, origin, direction mgl32.Vec3, preferGPU bool) core.Hit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(h)
	if e == nil {
		return core.NoHit()
	}
	ray := core.NewRay(origin, direction)
	if preferGPU && e.gpu != nil {
		return e.gpu.Intersect(ray)
	}
	return e.cpu.Intersect(ray)
}

// Len is the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

func (r *Registry) Stats() Stats {
	r.prof.SetCount("entries", r.Len())
	return r.prof.Snapshot()
}

// Close destroys the TLAS and every entry. Outstanding handles stop
// resolving. The registry stays usable afterwards.
func (r *Registry) Close() error {
	r.tlasMu.Lock()
	defer r.tlasMu.Unlock()
	r.tlas = nil

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].entry != nil {
			r.slots[i].entry = nil
			r.slots[i].gen++
		}
	}
	r.live = 0
	r.debugf("closed")
	return nil
}
