// Package layer classifies parsed edge descriptors into the three
// edge-layer categories and derives their device buffer geometry.
package layer

import (
	"math"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
)

// Order is the element order of a tensor as it crosses an edge layer.
type Order uint8

const (
	OrderNHWC Order = iota
	OrderNHCW
	OrderNC
	OrderFCR
	OrderBayerRGB
	OrderNMS
)

// Hardware padding can only be applied to orders the peripheral DMA knows
// how to repack row by row.
var paddableOrders = map[Order]bool{
	OrderNHWC: true,
	OrderNC:   true,
	OrderFCR:  true,
}

// Descriptor is one parsed edge descriptor from the container.
type Descriptor struct {
	Name                 string
	CoreBytesPerBuffer   uint32 // unpadded row size the core produces
	PaddedBytesPerBuffer uint32 // row size with padding baked in
	BuffersPerFrame      uint32
	MinBufferedRows      uint32 // ddr layers: rows held on-device before spilling
	ConnectedContext     uint8  // inter-context inputs: the producing context
	StreamIndex          uint8
	NetworkIndex         uint8
	Direction            action.Direction
	Connection           action.FlowKind
	Order                Order
	IsMux                bool
}

// Geometry is the buffer shape a channel is programmed with.
type Geometry struct {
	BytesPerBuffer  uint32
	BuffersPerFrame uint32
	HWPadding       bool // padding left to the peripheral DMA
}

// FrameBytes is the total byte count of one frame.
func (g Geometry) FrameBytes() uint32 {
	return g.BytesPerBuffer * g.BuffersPerFrame
}

// EdgeLayer is one classified data-carrying connection point of a context.
type EdgeLayer struct {
	Name             string
	Geometry         Geometry
	MinBufferedRows  uint32
	ConnectedContext uint8
	StreamIndex      uint8
	NetworkIndex     uint8
	Kind             action.FlowKind
	Direction        action.Direction
}

// Key identifies an edge layer toward the channel allocator.
type Key struct {
	Context     int
	StreamIndex uint8
	Direction   action.Direction
}

// Classify derives the category, direction and device geometry of one edge
// descriptor. Hardware padding is applied only for host-facing, non-mux
// layers whose element order the peripheral can repack and whose unpadded
// row fits the interface limit; everything else keeps its declared padded
// sizes.
func Classify(d Descriptor, arch device.Arch) (EdgeLayer, error) {
	if d.BuffersPerFrame == 0 {
		return EdgeLayer{}, errors.InvalidProgram(errors.PhaseClassify,
			[]string{d.Name}, "zero buffers per frame")
	}
	if d.CoreBytesPerBuffer == 0 {
		return EdgeLayer{}, errors.InvalidProgram(errors.PhaseClassify,
			[]string{d.Name}, "zero bytes per buffer")
	}
	if d.PaddedBytesPerBuffer < d.CoreBytesPerBuffer {
		return EdgeLayer{}, errors.InvalidProgram(errors.PhaseClassify,
			[]string{d.Name}, "padded row smaller than core row")
	}
	if d.Connection == action.FlowDdr && d.MinBufferedRows == 0 {
		return EdgeLayer{}, errors.InvalidProgram(errors.PhaseClassify,
			[]string{d.Name}, "ddr layer without buffered row count")
	}

	geom := Geometry{
		BytesPerBuffer:  d.PaddedBytesPerBuffer,
		BuffersPerFrame: d.BuffersPerFrame,
	}
	if d.Connection == action.FlowBoundary &&
		!d.IsMux &&
		paddableOrders[d.Order] &&
		d.CoreBytesPerBuffer <= device.MaxPeriphBytesPerBuffer(arch) {
		geom.BytesPerBuffer = d.CoreBytesPerBuffer
		geom.HWPadding = true
	}

	// The stream register block stores the geometry in u16 fields.
	if geom.BytesPerBuffer > math.MaxUint16 || geom.BuffersPerFrame > math.MaxUint16 {
		return EdgeLayer{}, errors.InvalidProgram(errors.PhaseClassify,
			[]string{d.Name}, "buffer geometry exceeds the stream register range")
	}

	return EdgeLayer{
		Name:             d.Name,
		Geometry:         geom,
		MinBufferedRows:  d.MinBufferedRows,
		ConnectedContext: d.ConnectedContext,
		StreamIndex:      d.StreamIndex,
		NetworkIndex:     d.NetworkIndex,
		Kind:             d.Connection,
		Direction:        d.Direction,
	}, nil
}

// StreamReg builds the peripheral register block for this layer.
func (e EdgeLayer) StreamReg() action.StreamRegInfo {
	return action.StreamRegInfo{
		CoreBytesPerBuffer:    uint16(e.Geometry.BytesPerBuffer),
		CoreBuffersPerFrame:   uint16(e.Geometry.BuffersPerFrame),
		PeriphBytesPerBuffer:  uint16(e.Geometry.BytesPerBuffer),
		PeriphBuffersPerFrame: uint16(e.Geometry.BuffersPerFrame),
	}
}
