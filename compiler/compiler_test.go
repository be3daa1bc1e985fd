package compiler

import (
	"fmt"
	"testing"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
	"github.com/tensorlane/actionc/layer"
)

type fakeConfigChannel struct {
	id      action.ChannelID
	written []byte
	pending int
}

func (c *fakeConfigChannel) Channel() action.ChannelID { return c.id }

func (c *fakeConfigChannel) Host() action.HostBufferInfo {
	return action.HostBufferInfo{
		BufferType:     action.HostBufferDescriptorList,
		DescPageSize:   device.DescPageSize,
		TotalDescCount: 64,
	}
}

func (c *fakeConfigChannel) Write(b []byte) error {
	c.written = append(c.written, b...)
	c.pending += len(b)
	return nil
}

func (c *fakeConfigChannel) ProgramDescriptors() (uint16, error) {
	n := (c.pending + device.DescPageSize - 1) / device.DescPageSize
	c.pending = 0
	return uint16(n), nil
}

type interKey struct {
	ctx    int
	stream uint8
}

type fakeAllocator struct {
	nextIndex    uint8
	released     []action.ChannelID
	inter        map[interKey]action.HostBufferInfo
	ddr          map[interKey]DdrChannelsInfo
	cfg          map[interKey]*fakeConfigChannel
	materialized bool
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{
		inter: make(map[interKey]action.HostBufferInfo),
		ddr:   make(map[interKey]DdrChannelsInfo),
		cfg:   make(map[interKey]*fakeConfigChannel),
	}
}

func (a *fakeAllocator) AcquireChannel(key layer.Key, engineHint uint8) (*ChannelLease, error) {
	id := action.ChannelID{Engine: engineHint, Index: a.nextIndex}
	a.nextIndex++
	return NewChannelLease(id, func() error {
		a.released = append(a.released, id)
		return nil
	}), nil
}

func (a *fakeAllocator) CreateBoundaryChannel(ch action.ChannelID, frameBytes uint32, streamName string) (action.HostBufferInfo, error) {
	return action.HostBufferInfo{
		BufferType:     action.HostBufferDescriptorList,
		DescPageSize:   device.DescPageSize,
		TotalDescCount: frameBytes/device.DescPageSize + 1,
		BytesInPattern: frameBytes,
	}, nil
}

func (a *fakeAllocator) CreateInterContextBuffer(frameBytes uint32, streamIndex uint8, producingContext int, networkName string) (action.HostBufferInfo, error) {
	h := action.HostBufferInfo{
		BufferType:     action.HostBufferContinuous,
		DescPageSize:   device.DescPageSize,
		TotalDescCount: frameBytes/device.DescPageSize + 1,
		BytesInPattern: frameBytes,
	}
	a.inter[interKey{ctx: producingContext, stream: streamIndex}] = h
	return h, nil
}

func (a *fakeAllocator) LookupInterContextBuffer(producingContext int, streamIndex uint8) (action.HostBufferInfo, error) {
	h, ok := a.inter[interKey{ctx: producingContext, stream: streamIndex}]
	if !ok {
		return action.HostBufferInfo{}, fmt.Errorf("no buffer for context %d stream %d", producingContext, streamIndex)
	}
	return h, nil
}

func (a *fakeAllocator) CreateDdrChannelPair(pair DdrPair, contextIndex int) (DdrChannelsInfo, error) {
	info := DdrChannelsInfo{
		HostH2D:              action.HostBufferInfo{DescPageSize: device.DescPageSize, TotalDescCount: 128},
		HostD2H:              action.HostBufferInfo{DescPageSize: device.DescPageSize, TotalDescCount: 128},
		RowSize:              pair.RowSize,
		MinBufferedRows:      pair.MinBufferedRows,
		TotalBuffersPerFrame: pair.TotalBuffersPerFrame,
		DescPageSize:         device.DescPageSize,
		H2D:                  pair.H2D,
		D2H:                  pair.D2H,
		StreamIndex:          pair.StreamIndex,
	}
	a.ddr[interKey{ctx: contextIndex, stream: pair.StreamIndex}] = info
	return info, nil
}

func (a *fakeAllocator) LookupDdrChannelPair(contextIndex int, streamIndex uint8) (DdrChannelsInfo, error) {
	info, ok := a.ddr[interKey{ctx: contextIndex, stream: streamIndex}]
	if !ok {
		return DdrChannelsInfo{}, fmt.Errorf("no ddr pair for context %d stream %d", contextIndex, streamIndex)
	}
	return info, nil
}

func (a *fakeAllocator) OpenConfigChannel(contextIndex int, configIndex uint8, totalBytes uint32) (ConfigChannel, error) {
	ch := &fakeConfigChannel{id: action.ChannelID{Engine: 3, Index: a.nextIndex}}
	a.nextIndex++
	a.cfg[interKey{ctx: contextIndex, stream: configIndex}] = ch
	return ch, nil
}

func (a *fakeAllocator) Materialize() error {
	a.materialized = true
	return nil
}

func ccwWrite(configIndex uint8, words int) action.Descriptor {
	return action.Descriptor{
		Kind:        action.DescWriteDataCCW,
		ConfigIndex: configIndex,
		Data:        make([]byte, words*device.CCWWordSize),
	}
}

func boundaryLayer(name string, dir action.Direction, stream uint8) layer.Descriptor {
	return layer.Descriptor{
		Name:                 name,
		CoreBytesPerBuffer:   device.DescPageSize,
		PaddedBytesPerBuffer: device.DescPageSize,
		BuffersPerFrame:      4,
		StreamIndex:          stream,
		Direction:            dir,
		Connection:           action.FlowBoundary,
		Order:                layer.OrderNHWC,
	}
}

func singleContextGroup() *NetworkGroup {
	return &NetworkGroup{
		Name: "net",
		Dynamic: []ContextMetadata{{
			EdgeLayers: []layer.Descriptor{
				boundaryLayer("input0", action.HostToDevice, 0),
				boundaryLayer("output0", action.DeviceToHost, 1),
			},
			Operations: []OperationMetadata{{
				Trigger: action.NoneTrigger(),
				Actions: []action.Descriptor{
					ccwWrite(0, 4),
					ccwWrite(0, 2),
					{Kind: action.DescAllowInputDataflow, StreamIndex: 0, FlowKind: action.FlowBoundary},
					{Kind: action.DescEnableLCU, Cluster: 0, LCU: 1,
						KernelDoneAddress: device.DefaultKernelDoneAddress,
						KernelDoneCount:   device.DefaultKernelDoneCount},
				},
			}},
		}},
	}
}

func TestCompileSingleContext(t *testing.T) {
	alloc := newFakeAllocator()
	c, err := New(alloc, device.ArchA10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	prog, err := c.Compile(singleContextGroup())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if prog.Preliminary != nil {
		t.Fatalf("unexpected preliminary context")
	}
	if len(prog.Dynamic) != 1 {
		t.Fatalf("dynamic contexts = %d, want 1", len(prog.Dynamic))
	}
	if !alloc.materialized {
		t.Fatalf("allocator not materialized")
	}

	ops := prog.Dynamic[0].Operations
	if len(ops) != 1 {
		t.Fatalf("operations = %d, want 1", len(ops))
	}
	got := typesOf(ops[0])

	want := []action.Type{
		action.TypeActivateConfigChannel,
		action.TypeFetchCfgChannelDescriptors,
		action.TypeActivationPositionMarker,
		action.TypeOpenBoundaryOutputChannel,
		action.TypeActivateBoundaryOutputChannel,
		action.TypeOpenBoundaryInputChannel,
		action.TypeActivateBoundaryInputChannel,
		action.TypeAllowInputDataflow,
		action.TypeStartBurstCreditsTask,
		action.TypeEnableLCUDefault,
		action.TypeDeactivateConfigChannel,
		action.TypeValidateChannel,
		action.TypeValidateChannel,
		action.TypeWaitForNetworkGroupChange,
	}
	if len(got) != len(want) {
		t.Fatalf("action types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("action[%d] = %s, want %s (full list %v)", i, got[i], want[i], got)
		}
	}

	if len(prog.Dynamic[0].Image) == 0 {
		t.Fatalf("empty context image")
	}
}

func typesOf(op *Operation) []action.Type {
	out := make([]action.Type, len(op.Actions))
	for i, a := range op.Actions {
		out[i] = a.Type
	}
	return out
}

func TestCompileBurstPrefetchArch(t *testing.T) {
	alloc := newFakeAllocator()
	c, err := New(alloc, device.ArchM20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	prog, err := c.Compile(singleContextGroup())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	op := prog.Dynamic[0].Operations[0]
	var sawBursts, sawFetch bool
	for _, a := range op.Actions {
		switch a.Type {
		case action.TypeAddCCWBursts:
			sawBursts = true
			p := a.Params.(action.AddCCWBurstsParams)
			if p.BurstCount != 6 {
				t.Fatalf("burst count = %d, want 6", p.BurstCount)
			}
		case action.TypeFetchCfgChannelDescriptors:
			sawFetch = true
		}
	}
	if !sawBursts || sawFetch {
		t.Fatalf("burst prefetch hardware should get burst bumps, not descriptor fetches")
	}

	// Burst prefetch pads the final write to a full descriptor page and
	// programs the descriptors right behind it.
	ch := alloc.cfg[interKey{ctx: 0, stream: 0}]
	if len(ch.written)%device.DescPageSize != 0 {
		t.Fatalf("config payload %d bytes, want a page multiple", len(ch.written))
	}
	if ch.pending != 0 {
		t.Fatalf("config payload left unprogrammed, %d bytes pending", ch.pending)
	}
}

func TestCompileUnknownArch(t *testing.T) {
	if _, err := New(newFakeAllocator(), device.ArchUnknown); !errors.IsKind(err, errors.KindUnsupported) {
		t.Fatalf("err = %v, want unsupported", err)
	}
}

func TestCompileTooManyContexts(t *testing.T) {
	ng := &NetworkGroup{
		Name:    "big",
		Dynamic: make([]ContextMetadata, device.MaxDynamicContexts+1),
	}
	c, err := New(newFakeAllocator(), device.ArchA10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Compile(ng); !errors.IsKind(err, errors.KindInvalidProgram) {
		t.Fatalf("err = %v, want invalid program", err)
	}
}

func TestCompileReleasesEphemeralChannels(t *testing.T) {
	producer := ContextMetadata{
		EdgeLayers: []layer.Descriptor{
			boundaryLayer("input0", action.HostToDevice, 0),
			{
				Name:                 "mid",
				CoreBytesPerBuffer:   256,
				PaddedBytesPerBuffer: 256,
				BuffersPerFrame:      2,
				StreamIndex:          2,
				Direction:            action.DeviceToHost,
				Connection:           action.FlowInterContext,
				Order:                layer.OrderNHWC,
			},
		},
		Operations: []OperationMetadata{{
			Trigger: action.NoneTrigger(),
			Actions: []action.Descriptor{
				{Kind: action.DescAllowInputDataflow, StreamIndex: 0, FlowKind: action.FlowBoundary},
			},
		}},
	}
	consumer := ContextMetadata{
		EdgeLayers: []layer.Descriptor{
			{
				Name:                 "mid",
				CoreBytesPerBuffer:   256,
				PaddedBytesPerBuffer: 256,
				BuffersPerFrame:      2,
				StreamIndex:          2,
				ConnectedContext:     0,
				Direction:            action.HostToDevice,
				Connection:           action.FlowInterContext,
				Order:                layer.OrderNHWC,
			},
			boundaryLayer("output0", action.DeviceToHost, 1),
		},
		Operations: []OperationMetadata{{
			Trigger: action.InputStreamTrigger(2),
			Actions: []action.Descriptor{
				{Kind: action.DescAllowInputDataflow, StreamIndex: 2, FlowKind: action.FlowInterContext},
			},
		}},
	}

	alloc := newFakeAllocator()
	c, err := New(alloc, device.ArchA10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Compile(&NetworkGroup{Name: "two", Dynamic: []ContextMetadata{producer, consumer}}); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// One inter-context output lease and one input lease; boundary leases
	// must stay held.
	if len(alloc.released) != 2 {
		t.Fatalf("released %d channels, want 2 (%v)", len(alloc.released), alloc.released)
	}
}

func TestWireDdrGeometryMismatch(t *testing.T) {
	ddr := func(name string, dir action.Direction, rowSize uint32) layer.Descriptor {
		return layer.Descriptor{
			Name:                 name,
			CoreBytesPerBuffer:   rowSize,
			PaddedBytesPerBuffer: rowSize,
			BuffersPerFrame:      8,
			MinBufferedRows:      4,
			StreamIndex:          3,
			Direction:            dir,
			Connection:           action.FlowDdr,
			Order:                layer.OrderNHWC,
		}
	}
	ctx := &ContextMetadata{
		EdgeLayers: []layer.Descriptor{
			ddr("spill_out", action.DeviceToHost, 512),
			ddr("spill_in", action.HostToDevice, 768),
		},
	}

	_, err := wireContext(newFakeAllocator(), ctx, device.ArchA10, 0, false)
	if !errors.IsKind(err, errors.KindInvalidProgram) {
		t.Fatalf("err = %v, want invalid program", err)
	}
}

func TestWireDdrUnmatchedInput(t *testing.T) {
	ctx := &ContextMetadata{
		EdgeLayers: []layer.Descriptor{{
			Name:                 "spill_in",
			CoreBytesPerBuffer:   512,
			PaddedBytesPerBuffer: 512,
			BuffersPerFrame:      8,
			MinBufferedRows:      4,
			StreamIndex:          3,
			Direction:            action.HostToDevice,
			Connection:           action.FlowDdr,
			Order:                layer.OrderNHWC,
		}},
	}

	_, err := wireContext(newFakeAllocator(), ctx, device.ArchA10, 0, false)
	if !errors.IsKind(err, errors.KindInvalidProgram) {
		t.Fatalf("err = %v, want invalid program", err)
	}
}

func TestWireDuplicateStreamIndexRejected(t *testing.T) {
	ng := &NetworkGroup{
		Name: "dup",
		Dynamic: []ContextMetadata{{
			EdgeLayers: []layer.Descriptor{
				boundaryLayer("a", action.HostToDevice, 0),
				boundaryLayer("b", action.HostToDevice, 0),
			},
		}},
	}
	c, err := New(newFakeAllocator(), device.ArchA10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Compile(ng); !errors.IsKind(err, errors.KindInvalidProgram) {
		t.Fatalf("err = %v, want invalid program", err)
	}
}

func TestCompilePreliminaryRunAsap(t *testing.T) {
	ng := singleContextGroup()
	ng.Features.PreliminaryRunAsap = true
	ng.Preliminary = ContextMetadata{
		EdgeLayers: []layer.Descriptor{
			boundaryLayer("early_in", action.HostToDevice, 4),
		},
		Operations: []OperationMetadata{{
			Trigger: action.NoneTrigger(),
			Actions: []action.Descriptor{
				ccwWrite(1, 8),
				{Kind: action.DescAllowInputDataflow, StreamIndex: 4, FlowKind: action.FlowBoundary},
			},
		}},
	}

	c, err := New(newFakeAllocator(), device.ArchA10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := c.Compile(ng)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if prog.Preliminary == nil {
		t.Fatalf("missing preliminary context")
	}

	if !prog.Preliminary.Operations[0].contains(action.TypeActivationPositionMarker) {
		t.Fatalf("run-asap preliminary should carry the activation block")
	}
	if prog.Dynamic[0].Operations[0].contains(action.TypeActivationPositionMarker) {
		t.Fatalf("first dynamic context should not re-place activation")
	}
}

func TestCompilePreliminaryNotAsap(t *testing.T) {
	ng := singleContextGroup()
	ng.Preliminary = ContextMetadata{
		Operations: []OperationMetadata{{
			Trigger: action.NoneTrigger(),
			Actions: []action.Descriptor{ccwWrite(1, 8)},
		}},
	}

	c, err := New(newFakeAllocator(), device.ArchA10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := c.Compile(ng)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	pre := prog.Preliminary.Operations[0]
	if pre.contains(action.TypeActivationPositionMarker) {
		t.Fatalf("non-asap preliminary should not activate edge layers")
	}
	want := []action.Type{
		action.TypeActivateConfigChannel,
		action.TypeFetchCfgChannelDescriptors,
		action.TypeDeactivateConfigChannel,
	}
	got := typesOf(pre)
	if len(got) != len(want) {
		t.Fatalf("preliminary actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("preliminary action[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if !prog.Dynamic[0].Operations[0].contains(action.TypeActivationPositionMarker) {
		t.Fatalf("dynamic context should place activation when preliminary is not asap")
	}
}
