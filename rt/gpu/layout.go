package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gekko3d/rtbvh"
	"github.com/gekko3d/rtbvh/rt/bvh"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL BLASInstance
// struct BLASInstance {
//    transform : mat4x4<f32>;     (64)  // object to world, column-major
//    inv_transform : mat4x4<f32>; (64)
//    node_offset : u32;           (4)   // in 80-byte CWBVH nodes
//    tri_offset : u32;            (4)   // in 16-byte triangle blocks
//    host_tri_offset : u32;       (4)   // first triangle in the host attribute buffer
// }; -> 140 bytes
const InstanceSize = 140

const (
	nodeRecordSize = bvh.NodeBlocks * bvh.BlockSize
	triBlockSize   = bvh.BlockSize
)

// ErrStaleInstance is returned when a TLAS instance refers to an entry
// that was destroyed after the TLAS was assembled.
var ErrStaleInstance = errors.New("stale instance")

// SceneSource is the part of a registry that scene packing reads.
type SceneSource interface {
	Instances() []rtbvh.Instance
	GpuData(h rtbvh.Handle) (nodes, tris rtbvh.View, ok bool)
	TriangleRange(h rtbvh.Handle) (start, count int, ok bool)
}

type InstanceRecord struct {
	Handle        rtbvh.Handle
	Transform     mgl32.Mat4
	Inverse       mgl32.Mat4
	NodeOffset    uint32
	TriOffset     uint32
	HostTriOffset uint32
}

// SceneLayout holds every BLAS of the current TLAS concatenated into one
// node and one triangle buffer, plus the per-instance records pointing
// into them. The buffers are copies and outlive the registry state.
type SceneLayout struct {
	Nodes     []byte
	Tris      []byte
	Instances []byte
	Records   []InstanceRecord
}

// PackScene packs the current TLAS instances of src in instance order.
func PackScene(src SceneSource) (*SceneLayout, error) {
	instances := src.Instances()
	layout := &SceneLayout{
		Instances: make([]byte, len(instances)*InstanceSize),
		Records:   make([]InstanceRecord, 0, len(instances)),
	}

	for i, inst := range instances {
		nodes, tris, ok := src.GpuData(inst.Handle)
		if !ok {
			return nil, fmt.Errorf("instance %d (handle %#x): %w", i, uint64(inst.Handle), ErrStaleInstance)
		}
		start, _, _ := src.TriangleRange(inst.Handle)

		m := inst.Transform.Mat4()
		rec := InstanceRecord{
			Handle:        inst.Handle,
			Transform:     m,
			Inverse:       m.Inv(),
			NodeOffset:    uint32(len(layout.Nodes) / nodeRecordSize),
			TriOffset:     uint32(len(layout.Tris) / triBlockSize),
			HostTriOffset: uint32(start),
		}
		layout.Nodes = append(layout.Nodes, nodes.Bytes()...)
		layout.Tris = append(layout.Tris, tris.Bytes()...)
		layout.Records = append(layout.Records, rec)
		rec.put(layout.Instances[i*InstanceSize:])
	}
	return layout, nil
}

func (r *InstanceRecord) put(buf []byte) {
	for i, f := range r.Transform {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	for i, f := range r.Inverse {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[128:132], r.NodeOffset)
	binary.LittleEndian.PutUint32(buf[132:136], r.TriOffset)
	binary.LittleEndian.PutUint32(buf[136:140], r.HostTriOffset)
}
