package rtbvh

import "math"

// Handle identifies a registry entry. The low 32 bits are the slot index,
// the high 32 bits the slot's generation at build time. Destroy bumps the
// generation, so handles of destroyed entries never resolve again even when
// their slot is reused.
type Handle uint64

// InvalidHandle never resolves.
const InvalidHandle = Handle(math.MaxUint64)

func makeHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot))
}

func (h Handle) Slot() uint32 {
	return uint32(h)
}

func (h Handle) Generation() uint32 {
	return uint32(h >> 32)
}
