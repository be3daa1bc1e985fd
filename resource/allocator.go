package resource

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/compiler"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/layer"
)

var (
	ErrClosed    = errors.New("resource allocator closed")
	ErrExhausted = errors.New("no free channel")
	ErrNotFound  = errors.New("no such buffer")
)

// NumEngines is how many DMA engines the local allocator models.
const NumEngines = 4

// ChannelsPerEngine is the channel pool depth per engine. The packed
// channel byte leaves room for 32; leaving headroom below that matches
// what shipped devices expose.
const ChannelsPerEngine = 16

type bufferKey struct {
	context int
	stream  uint8
}

type enginePool struct {
	free   []uint8
	leased map[uint8]layer.Key
}

// LocalAllocator is an in-memory channel allocator: per-engine free lists,
// registries for inter-context and ddr buffers, and byte-backed config
// channels. It implements compiler.ChannelAllocator and is safe for
// concurrent use, though the compiler drives it from one goroutine.
type LocalAllocator struct {
	pools        [NumEngines]enginePool
	inter        map[bufferKey]action.HostBufferInfo
	ddr          map[bufferKey]compiler.DdrChannelsInfo
	configs      []*configChannel
	nextAddr     uint64
	mu           sync.Mutex
	materialized bool
	closed       bool
}

// NewLocalAllocator creates an allocator with full channel pools.
func NewLocalAllocator() *LocalAllocator {
	a := &LocalAllocator{
		inter:    make(map[bufferKey]action.HostBufferInfo),
		ddr:      make(map[bufferKey]compiler.DdrChannelsInfo),
		nextAddr: 0x1000,
	}
	for e := range a.pools {
		a.pools[e].leased = make(map[uint8]layer.Key)
		for i := ChannelsPerEngine - 1; i >= 0; i-- {
			a.pools[e].free = append(a.pools[e].free, uint8(i))
		}
	}
	return a
}

// AcquireChannel leases a channel, preferring the hinted engine and
// falling back to the others when its pool is dry.
func (a *LocalAllocator) AcquireChannel(key layer.Key, engineHint uint8) (*compiler.ChannelLease, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}

	for off := uint8(0); off < NumEngines; off++ {
		engine := (engineHint + off) % NumEngines
		pool := &a.pools[engine]
		if len(pool.free) == 0 {
			continue
		}
		idx := pool.free[len(pool.free)-1]
		pool.free = pool.free[:len(pool.free)-1]
		pool.leased[idx] = key

		id := action.ChannelID{Engine: engine, Index: idx}
		return compiler.NewChannelLease(id, func() error {
			return a.releaseChannel(id)
		}), nil
	}
	return nil, fmt.Errorf("%w: engine %d for %v", ErrExhausted, engineHint, key)
}

func (a *LocalAllocator) releaseChannel(id action.ChannelID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	pool := &a.pools[id.Engine]
	if _, ok := pool.leased[id.Index]; !ok {
		return fmt.Errorf("channel %d/%d released twice", id.Engine, id.Index)
	}
	delete(pool.leased, id.Index)
	pool.free = append(pool.free, id.Index)
	return nil
}

// CreateBoundaryChannel carves a host descriptor list for one boundary
// stream.
func (a *LocalAllocator) CreateBoundaryChannel(ch action.ChannelID, frameBytes uint32, streamName string) (action.HostBufferInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return action.HostBufferInfo{}, ErrClosed
	}
	return a.descList(frameBytes), nil
}

// CreateInterContextBuffer allocates the hand-off buffer one context
// writes and a later context reads.
func (a *LocalAllocator) CreateInterContextBuffer(frameBytes uint32, streamIndex uint8, producingContext int, networkName string) (action.HostBufferInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return action.HostBufferInfo{}, ErrClosed
	}

	h := a.descList(frameBytes)
	h.BufferType = action.HostBufferContinuous
	a.inter[bufferKey{context: producingContext, stream: streamIndex}] = h
	return h, nil
}

func (a *LocalAllocator) LookupInterContextBuffer(producingContext int, streamIndex uint8) (action.HostBufferInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.inter[bufferKey{context: producingContext, stream: streamIndex}]
	if !ok {
		return action.HostBufferInfo{}, fmt.Errorf(
			"%w: inter-context stream %d of context %d", ErrNotFound, streamIndex, producingContext)
	}
	return h, nil
}

// CreateDdrChannelPair allocates the circular spill buffer behind one ddr
// pair. Both directions share the pattern; the input side reads rows the
// output side spilled.
func (a *LocalAllocator) CreateDdrChannelPair(pair compiler.DdrPair, contextIndex int) (compiler.DdrChannelsInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return compiler.DdrChannelsInfo{}, ErrClosed
	}

	frameBytes := pair.RowSize * pair.TotalBuffersPerFrame
	info := compiler.DdrChannelsInfo{
		HostH2D:              a.descList(frameBytes),
		HostD2H:              a.descList(frameBytes),
		RowSize:              pair.RowSize,
		MinBufferedRows:      pair.MinBufferedRows,
		TotalBuffersPerFrame: pair.TotalBuffersPerFrame,
		DescPageSize:         device.DescPageSize,
		H2D:                  pair.H2D,
		D2H:                  pair.D2H,
		StreamIndex:          pair.StreamIndex,
	}
	a.ddr[bufferKey{context: contextIndex, stream: pair.StreamIndex}] = info
	return info, nil
}

func (a *LocalAllocator) LookupDdrChannelPair(contextIndex int, streamIndex uint8) (compiler.DdrChannelsInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	info, ok := a.ddr[bufferKey{context: contextIndex, stream: streamIndex}]
	if !ok {
		return compiler.DdrChannelsInfo{}, fmt.Errorf(
			"%w: ddr pair for stream %d of context %d", ErrNotFound, streamIndex, contextIndex)
	}
	return info, nil
}

// OpenConfigChannel leases a channel for one config stream and backs it
// with an in-memory descriptor list sized for totalBytes plus one page of
// burst padding.
func (a *LocalAllocator) OpenConfigChannel(contextIndex int, configIndex uint8, totalBytes uint32) (compiler.ConfigChannel, error) {
	lease, err := a.AcquireChannel(layer.Key{
		Context:     contextIndex,
		StreamIndex: configIndex,
		Direction:   action.HostToDevice,
	}, NumEngines-1)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pages := totalBytes/device.DescPageSize + 1
	ch := &configChannel{
		lease: lease,
		host:  a.descListPages(pages),
	}
	a.configs = append(a.configs, ch)
	return ch, nil
}

// Materialize releases the config channel leases; their descriptor lists
// are fully programmed once the last context has compiled.
func (a *LocalAllocator) Materialize() error {
	a.mu.Lock()
	configs := a.configs
	a.configs = nil
	a.materialized = true
	a.mu.Unlock()

	for _, ch := range configs {
		if err := ch.lease.Release(); err != nil {
			return err
		}
	}
	return nil
}

// Materialized reports whether a compile ran to completion against this
// allocator.
func (a *LocalAllocator) Materialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.materialized
}

// LeasedChannels counts the channels currently out on lease.
func (a *LocalAllocator) LeasedChannels() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for e := range a.pools {
		n += len(a.pools[e].leased)
	}
	return n
}

// Close drops every registry and pool. Further calls fail with ErrClosed.
func (a *LocalAllocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.inter = nil
	a.ddr = nil
	a.configs = nil
	for e := range a.pools {
		a.pools[e].free = nil
		a.pools[e].leased = nil
	}
	return nil
}

// descList carves address space for a descriptor list covering byteCount.
func (a *LocalAllocator) descList(byteCount uint32) action.HostBufferInfo {
	pages := (byteCount + device.DescPageSize - 1) / device.DescPageSize
	h := a.descListPages(pages)
	h.BytesInPattern = byteCount
	return h
}

func (a *LocalAllocator) descListPages(pages uint32) action.HostBufferInfo {
	h := action.HostBufferInfo{
		BufferType:     action.HostBufferDescriptorList,
		DescPageSize:   device.DescPageSize,
		TotalDescCount: pages,
		BytesInPattern: pages * device.DescPageSize,
		DMAAddress:     a.nextAddr,
	}
	a.nextAddr += uint64(pages) * device.DescPageSize
	return h
}

// configChannel is the byte-backed sink behind one config stream.
type configChannel struct {
	lease      *compiler.ChannelLease
	host       action.HostBufferInfo
	data       []byte
	pending    int
	programmed uint32
	mu         sync.Mutex
}

func (c *configChannel) Channel() action.ChannelID {
	return c.lease.ID
}

func (c *configChannel) Host() action.HostBufferInfo {
	return c.host
}

func (c *configChannel) Write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.data)+len(b) > int(c.host.TotalDescCount)*int(c.host.DescPageSize) {
		return fmt.Errorf("config channel %d/%d overflows its descriptor list",
			c.lease.ID.Engine, c.lease.ID.Index)
	}
	c.data = append(c.data, b...)
	c.pending += len(b)
	return nil
}

func (c *configChannel) ProgramDescriptors() (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := (uint32(c.pending) + device.DescPageSize - 1) / device.DescPageSize
	if n > math.MaxUint16 {
		return 0, fmt.Errorf("%d descriptors exceed a single fetch", n)
	}
	if c.programmed+n > c.host.TotalDescCount {
		return 0, fmt.Errorf("config channel %d/%d out of descriptors",
			c.lease.ID.Engine, c.lease.ID.Index)
	}
	c.pending = 0
	c.programmed += n
	return uint16(n), nil
}

// Bytes returns the raw configuration words written so far.
func (c *configChannel) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.data...)
}
