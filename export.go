package rtbvh

import (
	"unsafe"

	"github.com/gekko3d/rtbvh/rt/bvh"
)

// View borrows a packed GPU buffer. It stays valid until its owner is
// rebuilt or destroyed; the bytes must not be modified or retained past
// that point.
type View struct {
	data []byte
}

func (v View) Bytes() []byte {
	return v.data
}

func (v View) Len() int {
	return len(v.data)
}

// Valid reports whether the view refers to an existing buffer. An empty
// buffer is still valid.
func (v View) Valid() bool {
	return v.data != nil
}

// Pointer is the address of the first byte, or nil for an empty view.
func (v View) Pointer() unsafe.Pointer {
	if len(v.data) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(v.data))
}

// GpuNodesSize is the byte size of h's compressed node buffer, 0 when h
// has no GPU hierarchy.
func (r *Registry) GpuNodesSize(h Handle) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(h)
	if e == nil || e.gpu == nil {
		return 0
	}
	return e.gpu.UsedBlocks() * bvh.BlockSize
}

func (r *Registry) GpuTrisSize(h Handle) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(h)
	if e == nil || e.gpu == nil {
		return 0
	}
	return e.gpu.TriCount() * bvh.TriBlocks * bvh.BlockSize
}

func (r *Registry) GpuData(h Handle) (nodes, tris View, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.lookupLocked(h)
	if e == nil || e.gpu == nil {
		return View{}, View{}, false
	}
	return View{data: e.gpu.NodeBytes()}, View{data: e.gpu.TriBytes()}, true
}

func (r *Registry) TLASNodesSize() int {
	r.tlasMu.RLock()
	defer r.tlasMu.RUnlock()
	if r.tlas == nil {
		return 0
	}
	return r.tlas.tlas.NodeCount() * bvh.TLASNodeSize
}

func (r *Registry) TLASIndicesSize() int {
	r.tlasMu.RLock()
	defer r.tlasMu.RUnlock()
	if r.tlas == nil {
		return 0
	}
	return r.tlas.tlas.IndexCount() * bvh.TLASIndexSize
}

func (r *Registry) TLASData() (nodes, indices View, ok bool) {
	r.tlasMu.RLock()
	defer r.tlasMu.RUnlock()
	if r.tlas == nil {
		return View{}, View{}, false
	}
	return View{data: r.tlas.tlas.NodeBytes()}, View{data: r.tlas.tlas.IndexBytes()}, true
}
