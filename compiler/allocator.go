package compiler

import (
	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/errors"
	"github.com/tensorlane/actionc/layer"
)

// ChannelAllocator is the external resource allocator the compiler wires
// channels through. The compiler requires exclusive access to it for the
// duration of one compile; concurrent compiles against the same allocator
// must be serialized by the caller.
type ChannelAllocator interface {
	// AcquireChannel leases a channel id for one edge layer. engineHint
	// steers placement; the allocator may ignore it.
	AcquireChannel(key layer.Key, engineHint uint8) (*ChannelLease, error)

	// CreateBoundaryChannel registers a host-facing channel and returns the
	// host descriptor list backing it.
	CreateBoundaryChannel(ch action.ChannelID, frameBytes uint32, streamName string) (action.HostBufferInfo, error)

	// CreateInterContextBuffer allocates the device buffer for a context
	// hand-off; the consuming context finds it with Lookup.
	CreateInterContextBuffer(frameBytes uint32, streamIndex uint8, producingContext int, networkName string) (action.HostBufferInfo, error)
	LookupInterContextBuffer(producingContext int, streamIndex uint8) (action.HostBufferInfo, error)

	// CreateDdrChannelPair allocates the circular spill buffer behind a ddr
	// pair; the input side of the pair finds it with Lookup.
	CreateDdrChannelPair(pair DdrPair, contextIndex int) (DdrChannelsInfo, error)
	LookupDdrChannelPair(contextIndex int, streamIndex uint8) (DdrChannelsInfo, error)

	// OpenConfigChannel leases a channel and buffer for one config stream.
	OpenConfigChannel(contextIndex int, configIndex uint8, totalBytes uint32) (ConfigChannel, error)

	// Materialize creates any firmware-managed DMA channels not yet
	// created. Called once, after the last context compiles.
	Materialize() error
}

// ConfigChannel is the allocator-side sink for one config stream's words.
type ConfigChannel interface {
	Channel() action.ChannelID
	Host() action.HostBufferInfo
	Write(data []byte) error
	// ProgramDescriptors turns the bytes written since the previous call
	// into DMA descriptors and returns how many it programmed.
	ProgramDescriptors() (uint16, error)
}

// ChannelLease is a scoped claim on one channel id. Release returns the id
// to the allocator; releasing twice is a no-op. Boundary channel leases are
// never released during a compile, their identity outlives the program.
type ChannelLease struct {
	ID      action.ChannelID
	release func() error
	done    bool
}

// NewChannelLease is used by allocator implementations.
func NewChannelLease(id action.ChannelID, release func() error) *ChannelLease {
	return &ChannelLease{ID: id, release: release}
}

// Release returns the channel to the allocator.
func (l *ChannelLease) Release() error {
	if l == nil || l.done {
		return nil
	}
	l.done = true
	if l.release == nil {
		return nil
	}
	return l.release()
}

// DdrPair describes one device-local spill pair at creation time.
type DdrPair struct {
	H2D                  action.ChannelID
	D2H                  action.ChannelID
	RowSize              uint32
	MinBufferedRows      uint32
	TotalBuffersPerFrame uint32
	StreamIndex          uint8
}

// DdrChannelsInfo is the allocator's record of a created spill pair.
type DdrChannelsInfo struct {
	HostH2D              action.HostBufferInfo
	HostD2H              action.HostBufferInfo
	RowSize              uint32
	MinBufferedRows      uint32
	TotalBuffersPerFrame uint32
	DescPageSize         uint16
	H2D                  action.ChannelID
	D2H                  action.ChannelID
	StreamIndex          uint8
}

// NeedsManualCreditManagement reports whether firmware has to track credits
// for this pair: true when the device cannot hold a full frame of rows.
func (i DdrChannelsInfo) NeedsManualCreditManagement() bool {
	return i.MinBufferedRows < i.TotalBuffersPerFrame
}

// DescriptorsPerFrame is how many DMA descriptors one frame occupies.
func (i DdrChannelsInfo) DescriptorsPerFrame() (uint32, error) {
	if i.DescPageSize == 0 {
		return 0, errors.Internal(errors.PhaseWire, "ddr pair with zero descriptor page size")
	}
	perRow := (i.RowSize + uint32(i.DescPageSize) - 1) / uint32(i.DescPageSize)
	return perRow * i.TotalBuffersPerFrame, nil
}
