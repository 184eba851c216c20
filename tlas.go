package rtbvh

import (
	"github.com/gekko3d/rtbvh/rt/bvh"
	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// Instance is one TLAS member: the entry it came from and that entry's
// transform when the TLAS was assembled.
type Instance struct {
	Handle    Handle
	Transform core.Matrix
}

type tlasState struct {
	instances []Instance
	tlas      *bvh.TLAS
}

// BuildTLAS snapshots every entry with a GPU hierarchy, in ascending slot
// order, and rebuilds the top-level hierarchy over them. Entries built
// without a GPU hierarchy do not take an instance index. Later transform
// updates are not visible until the next call.
func (r *Registry) BuildTLAS() bool {
	r.tlasMu.Lock()
	defer r.tlasMu.Unlock()

	done := r.prof.Scope("tlas")
	defer done()

	r.mu.Lock()
	instances := make([]Instance, 0, len(r.slots))
	members := make([]bvh.TLASInstance, 0, len(r.slots))
	for i, s := range r.slots {
		if s.entry == nil || s.entry.gpu == nil {
			continue
		}
		instances = append(instances, Instance{
			Handle:    makeHandle(uint32(i), s.gen),
			Transform: s.entry.transform,
		})
		members = append(members, bvh.TLASInstance{BLAS: s.entry.gpu, Transform: s.entry.transform})
	}
	r.mu.Unlock()

	r.tlas = &tlasState{instances: instances, tlas: bvh.BuildTLAS(members)}
	r.prof.SetCount("instances", len(instances))
	r.debugf("tlas built: %d instances, %d nodes", len(instances), r.tlas.tlas.NodeCount())
	return true
}

// DestroyTLAS releases the top-level hierarchy. Until the next BuildTLAS
// sizes read 0 and rays miss.
func (r *Registry) DestroyTLAS() {
	r.tlasMu.Lock()
	defer r.tlasMu.Unlock()
	if r.tlas != nil {
		r.debugf("tlas destroyed")
	}
	r.tlas = nil
}

func (r *Registry) TLASBuilt() bool {
	r.tlasMu.RLock()
	defer r.tlasMu.RUnlock()
	return r.tlas != nil
}

// Instances returns a copy of the instance list of the current TLAS, or
// nil when none is built.
func (r *Registry) Instances() []Instance {
	r.tlasMu.RLock()
	defer r.tlasMu.RUnlock()
	if r.tlas == nil {
		return nil
	}
	return append([]Instance(nil), r.tlas.instances...)
}

// IntersectTLAS casts one world-space ray against the current TLAS. The
// hit's Inst is the index into Instances. Entries destroyed since the last
// build are still hit until the TLAS is rebuilt.
func (r *Registry) IntersectTLAS(origin, direction mgl32.Vec3) core.Hit {
	r.tlasMu.RLock()
	defer r.tlasMu.RUnlock()
	if r.tlas == nil {
		return core.NoHit()
	}
	return r.tlas.tlas.Intersect(core.NewRay(origin, direction))
}
