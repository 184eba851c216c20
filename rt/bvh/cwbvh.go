package bvh

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/gekko3d/rtbvh/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// Compressed 8-wide layout, built from 16-byte blocks.
//
// struct CWBVHNode {                    // 5 blocks, 80 bytes
//    p        : vec3<f32>;  (0)        // quantization origin
//    e        : 3 x i8;     (12)       // per-axis power-of-two exponent
//    imask    : u8;         (15)       // bit i set: slot i is an interior child
//    childBase: u32;        (16)       // first interior child node index
//    triBase  : u32;        (20)       // first triangle index
//    meta     : 8 x u8;     (24)       // per slot, see below
//    qlo      : 3 x 8 x u8; (32)       // x[8], y[8], z[8]
//    qhi      : 3 x 8 x u8; (56)
// };
//
// meta is 0 for an empty slot. Interior children use 0b001 << 5 | (24 + rank)
// where rank counts interior slots before this one. Leaves use the triangle
// count in unary in the top three bits and the offset from triBase in the
// low five bits.
//
// struct CWBVHTri {                     // 3 blocks, 48 bytes
//    v0   : vec3<f32>; prim: u32;
//    e1   : vec3<f32>; pad : u32;
//    e2   : vec3<f32>; pad : u32;
// };
const (
	BlockSize     = 16
	NodeBlocks    = 5
	TriBlocks     = 3
	cwNodeSize    = NodeBlocks * BlockSize
	cwTriSize     = TriBlocks * BlockSize
	cwWidth       = 8
	cwMaxLeafSize = 3
)

// CWBVH is the compressed wide variant intended for GPU upload. Its packed
// buffers are immutable once built.
type CWBVH struct {
	nodeData []byte
	triData  []byte
	triCount int
	bounds   core.AABB
}

// BuildCWBVH builds the compressed variant. Leaves are capped at three
// triangles regardless of opts.MaxLeafSize.
func BuildCWBVH(tris []mgl32.Vec4, opts BuildOptions) *CWBVH {
	opts = opts.normalized()
	opts.MaxLeafSize = min(opts.MaxLeafSize, cwMaxLeafSize)
	bin := Build(tris, opts)
	wide := collapse(bin, cwWidth)

	c := &CWBVH{
		nodeData: make([]byte, len(wide)*cwNodeSize),
		triData:  make([]byte, 0, len(bin.PrimIdx)*cwTriSize),
		triCount: len(bin.PrimIdx),
		bounds:   wide[0].bounds,
	}

	type pending struct {
		wide int
		out  uint32
	}
	queue := []pending{{wide: 0, out: 0}}
	nodeCount := uint32(1)

	for qi := 0; qi < len(queue); qi++ {
		pn := queue[qi]
		wn := wide[pn.wide]

		childBase := nodeCount
		triBase := uint32(len(c.triData) / cwTriSize)
		var meta [cwWidth]uint8
		var imask uint8
		rank := uint8(0)
		triOffset := uint8(0)

		for slot, ch := range wn.children {
			if !ch.isLeaf() {
				queue = append(queue, pending{wide: ch.node, out: nodeCount})
				nodeCount++
				imask |= 1 << slot
				meta[slot] = 1<<5 | (24 + rank)
				rank++
				continue
			}
			unary := uint8(1)<<ch.count - 1
			meta[slot] = unary<<5 | triOffset
			for i := ch.first; i < ch.first+ch.count; i++ {
				c.appendTri(tris, bin.PrimIdx[i])
			}
			triOffset += uint8(ch.count)
		}

		encodeNode(c.nodeData[pn.out*cwNodeSize:(pn.out+1)*cwNodeSize], wn, imask, childBase, triBase, meta)
	}
	return c
}

func (c *CWBVH) appendTri(tris []mgl32.Vec4, prim uint32) {
	v0 := tris[prim*3].Vec3()
	e1 := tris[prim*3+1].Vec3().Sub(v0)
	e2 := tris[prim*3+2].Vec3().Sub(v0)

	var rec [cwTriSize]byte
	putVec3(rec[0:], v0)
	binary.LittleEndian.PutUint32(rec[12:], prim)
	putVec3(rec[16:], e1)
	putVec3(rec[32:], e2)
	c.triData = append(c.triData, rec[:]...)
}

func putVec3(buf []byte, v mgl32.Vec3) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Z()))
}

func readVec3(buf []byte) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
		math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
		math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])),
	}
}

func encodeNode(buf []byte, wn wideNode, imask uint8, childBase, triBase uint32, meta [cwWidth]uint8) {
	binary.LittleEndian.PutUint32(buf[16:20], childBase)
	binary.LittleEndian.PutUint32(buf[20:24], triBase)
	copy(buf[24:32], meta[:])
	buf[15] = imask
	if len(wn.children) == 0 {
		return
	}

	p := wn.bounds.Min
	putVec3(buf[0:], p)
	for axis := 0; axis < 3; axis++ {
		e := quantExponent(float64(wn.bounds.Max[axis]) - float64(p[axis]))
		buf[12+axis] = uint8(int8(e))
		scale := float32(math.Ldexp(1, e))

		for slot, ch := range wn.children {
			lo := int(math.Floor((float64(ch.bounds.Min[axis]) - float64(p[axis])) / float64(scale)))
			hi := int(math.Ceil((float64(ch.bounds.Max[axis]) - float64(p[axis])) / float64(scale)))
			lo, hi = clampByte(lo), clampByte(hi)
			// float32 dequantization must stay conservative; the explicit
			// conversions keep the compiler from fusing the multiply-add
			for lo > 0 && p[axis]+float32(float32(lo)*scale) > ch.bounds.Min[axis] {
				lo--
			}
			for hi < 255 && p[axis]+float32(float32(hi)*scale) < ch.bounds.Max[axis] {
				hi++
			}
			buf[32+axis*cwWidth+slot] = uint8(lo)
			buf[56+axis*cwWidth+slot] = uint8(hi)
		}
	}
}

// quantExponent picks the smallest power of two that spans extent in 255 steps.
func quantExponent(extent float64) int {
	if extent <= 0 {
		return -126
	}
	e := int(math.Ceil(math.Log2(extent / 255)))
	for extent/math.Ldexp(1, e) > 255 {
		e++
	}
	return max(-126, min(127, e))
}

func clampByte(v int) int {
	return max(0, min(255, v))
}

// UsedBlocks is the number of 16-byte blocks occupied by nodes.
func (c *CWBVH) UsedBlocks() int {
	return len(c.nodeData) / BlockSize
}

func (c *CWBVH) NodeCount() int {
	return len(c.nodeData) / cwNodeSize
}

func (c *CWBVH) TriCount() int {
	return c.triCount
}

// NodeBytes and TriBytes return the packed buffers. Callers must treat them
// as read-only.
func (c *CWBVH) NodeBytes() []byte {
	return c.nodeData
}

func (c *CWBVH) TriBytes() []byte {
	return c.triData
}

func (c *CWBVH) Bounds() core.AABB {
	return c.bounds
}

type cwNode struct {
	p         mgl32.Vec3
	scale     mgl32.Vec3
	imask     uint8
	childBase uint32
	triBase   uint32
	meta      [cwWidth]uint8
	qlo       [3][cwWidth]uint8
	qhi       [3][cwWidth]uint8
}

func (c *CWBVH) node(i uint32) cwNode {
	buf := c.nodeData[i*cwNodeSize : (i+1)*cwNodeSize]
	n := cwNode{
		p:         readVec3(buf[0:]),
		imask:     buf[15],
		childBase: binary.LittleEndian.Uint32(buf[16:20]),
		triBase:   binary.LittleEndian.Uint32(buf[20:24]),
	}
	copy(n.meta[:], buf[24:32])
	for axis := 0; axis < 3; axis++ {
		n.scale[axis] = float32(math.Ldexp(1, int(int8(buf[12+axis]))))
		copy(n.qlo[axis][:], buf[32+axis*cwWidth:32+(axis+1)*cwWidth])
		copy(n.qhi[axis][:], buf[56+axis*cwWidth:56+(axis+1)*cwWidth])
	}
	return n
}

func (n *cwNode) childBounds(slot int) core.AABB {
	var b core.AABB
	for axis := 0; axis < 3; axis++ {
		b.Min[axis] = n.p[axis] + float32(float32(n.qlo[axis][slot])*n.scale[axis])
		b.Max[axis] = n.p[axis] + float32(float32(n.qhi[axis][slot])*n.scale[axis])
	}
	return b
}

// Intersect traverses the packed buffers directly, the same data a GPU
// kernel would consume.
func (c *CWBVH) Intersect(r core.Ray) core.Hit {
	hit := core.NoHit()
	if c.triCount == 0 {
		return hit
	}

	stack := make([]uint32, 1, 64)
	for len(stack) > 0 {
		n := c.node(stack[len(stack)-1])
		stack = stack[:len(stack)-1]

		for slot := 0; slot < cwWidth; slot++ {
			meta := n.meta[slot]
			if meta == 0 {
				continue
			}
			if _, ok := n.childBounds(slot).IntersectRay(r, hit.T); !ok {
				continue
			}
			if n.imask&(1<<slot) != 0 {
				stack = append(stack, n.childBase+uint32(meta&31)-24)
				continue
			}
			first := n.triBase + uint32(meta&31)
			count := uint32(bits.OnesCount8(meta >> 5))
			for t := first; t < first+count; t++ {
				rec := c.triData[t*cwTriSize : (t+1)*cwTriSize]
				v0, e1, e2 := readVec3(rec[0:]), readVec3(rec[16:]), readVec3(rec[32:])
				if d, u, v, ok := core.IntersectTriangle(r, v0, e1, e2, hit.T); ok {
					hit.T, hit.U, hit.V = d, u, v
					hit.Prim = binary.LittleEndian.Uint32(rec[12:16])
				}
			}
		}
	}
	return hit
}
