package action

import (
	"fmt"

	"github.com/tensorlane/actionc/device"
)

// Direction of a DMA channel relative to the device.
type Direction uint8

const (
	HostToDevice Direction = iota
	DeviceToHost
)

func (d Direction) String() string {
	if d == HostToDevice {
		return "h2d"
	}
	return "d2h"
}

// FlowKind identifies which of the three edge-layer categories a
// data-admission action belongs to.
type FlowKind uint8

const (
	FlowBoundary FlowKind = iota
	FlowInterContext
	FlowDdr
)

func (k FlowKind) String() string {
	switch k {
	case FlowBoundary:
		return "boundary"
	case FlowInterContext:
		return "inter_context"
	case FlowDdr:
		return "ddr"
	default:
		return fmt.Sprintf("flow(%d)", uint8(k))
	}
}

// ChannelID identifies one DMA channel on one engine.
type ChannelID struct {
	Engine uint8
	Index  uint8
}

// Pack folds a channel id into the single byte firmware expects: the channel
// index in the low bits, the engine index above it.
func (c ChannelID) Pack() uint8 {
	return c.Index | c.Engine<<device.EngineShift
}

func (c ChannelID) String() string {
	return fmt.Sprintf("e%d/c%d", c.Engine, c.Index)
}

// PackLCU folds a cluster/LCU pair into one byte, LCU index low.
func PackLCU(cluster, lcu uint8) uint8 {
	return lcu | cluster<<device.ClusterShift
}

// HostBufferInfo describes the host-side descriptor list backing a channel.
// Serialized as a 19 byte packed record.
type HostBufferInfo struct {
	BufferType     uint8
	DescPageSize   uint16
	TotalDescCount uint32
	BytesInPattern uint32
	DMAAddress     uint64
}

// Host buffer types.
const (
	HostBufferDescriptorList uint8 = iota
	HostBufferContinuous
)

// StreamRegInfo holds the peripheral register block of one stream.
// Serialized as seven u16 fields, 14 bytes.
type StreamRegInfo struct {
	CoreBytesPerBuffer    uint16
	CoreBuffersPerFrame   uint16
	PeriphBytesPerBuffer  uint16
	PeriphBuffersPerFrame uint16
	FeaturePadding        uint16
	BufferPadding         uint16
	BufferPaddingPayload  uint16
}
