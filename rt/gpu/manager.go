package gpu

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/multierr"
)

// BufferManager keeps one storage buffer per scene stream and grows them
// on demand. Buffers are reused while the data still fits.
type BufferManager struct {
	Device *wgpu.Device

	// Growth factor applied when a buffer has to be reallocated.
	Headroom float64

	NodesBuf       *wgpu.Buffer
	TrisBuf        *wgpu.Buffer
	InstancesBuf   *wgpu.Buffer
	TLASNodesBuf   *wgpu.Buffer
	TLASIndicesBuf *wgpu.Buffer

	Reallocations int
}

func NewBufferManager(device *wgpu.Device, headroom float64) *BufferManager {
	if headroom < 1 {
		headroom = 1
	}
	return &BufferManager{Device: device, Headroom: headroom}
}

// bufferSize rounds n up to a multiple of four, at least four bytes.
func bufferSize(n int, headroom float64) uint64 {
	size := uint64(math.Ceil(float64(n) * headroom))
	if size < 4 {
		size = 4
	}
	if size%4 != 0 {
		size += 4 - size%4
	}
	return size
}

func (m *BufferManager) ensureBuffer(name string, buf **wgpu.Buffer, data []byte) (bool, error) {
	needed := uint64(len(data))

	current := *buf
	if current == nil || current.GetSize() < needed {
		if current != nil {
			current.Release()
			*buf = nil
		}

		newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  bufferSize(len(data), m.Headroom),
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return false, fmt.Errorf("creating %s buffer: %w", name, err)
		}
		*buf = newBuf
		m.Reallocations++

		m.write(*buf, data)
		return true, nil
	}

	m.write(*buf, data)
	return false, nil
}

func (m *BufferManager) write(buf *wgpu.Buffer, data []byte) {
	if len(data) == 0 {
		return
	}
	// writes must be a multiple of four bytes
	if len(data)%4 != 0 {
		padded := make([]byte, len(data)+4-len(data)%4)
		copy(padded, data)
		data = padded
	}
	m.Device.GetQueue().WriteBuffer(buf, 0, data)
}

// Upload writes the packed scene and the TLAS buffers. Every stream is
// attempted; failures are combined.
func (m *BufferManager) Upload(layout *SceneLayout, tlasNodes, tlasIndices []byte) error {
	streams := []struct {
		name string
		buf  **wgpu.Buffer
		data []byte
	}{
		{"BLAS Nodes", &m.NodesBuf, layout.Nodes},
		{"BLAS Tris", &m.TrisBuf, layout.Tris},
		{"BLAS Instances", &m.InstancesBuf, layout.Instances},
		{"TLAS Nodes", &m.TLASNodesBuf, tlasNodes},
		{"TLAS Indices", &m.TLASIndicesBuf, tlasIndices},
	}

	var err error
	for _, s := range streams {
		_, e := m.ensureBuffer(s.name, s.buf, s.data)
		err = multierr.Append(err, e)
	}
	return err
}

func (m *BufferManager) Release() {
	for _, buf := range []**wgpu.Buffer{&m.NodesBuf, &m.TrisBuf, &m.InstancesBuf, &m.TLASNodesBuf, &m.TLASIndicesBuf} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
}

// Headless is a device without a surface, enough for buffer uploads and
// compute work.
type Headless struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
}

// NewHeadlessDevice requests an adapter without a compatible surface.
// powerPreference is "high-performance" or "low-power".
func NewHeadlessDevice(powerPreference string) (*Headless, error) {
	pref := wgpu.PowerPreferenceHighPerformance
	if powerPreference == "low-power" {
		pref = wgpu.PowerPreferenceLowPower
	}

	h := &Headless{Instance: wgpu.CreateInstance(nil)}
	adapter, err := h.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: pref,
	})
	if err != nil {
		h.Release()
		return nil, fmt.Errorf("requesting adapter: %w", err)
	}
	h.Adapter = adapter

	h.Device, err = adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "rtbvh"})
	if err != nil {
		h.Release()
		return nil, fmt.Errorf("requesting device: %w", err)
	}
	return h, nil
}

func (h *Headless) Release() {
	if h.Device != nil {
		h.Device.Release()
		h.Device = nil
	}
	if h.Adapter != nil {
		h.Adapter.Release()
		h.Adapter = nil
	}
	if h.Instance != nil {
		h.Instance.Release()
		h.Instance = nil
	}
}
