package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
	"github.com/tensorlane/actionc/layer"
)

// Engine placement hints per edge-layer category. Spreading the categories
// across engines keeps boundary traffic off the engines that carry
// context-switch internal flows.
const (
	engineHintBoundary uint8 = 0
	engineHintInter    uint8 = 1
	engineHintDdr      uint8 = 2
)

// wireContext classifies and wires every edge layer of one context and
// opens its config channels. The order is load-bearing: outputs before
// inputs so no consumer can be activated before its producer, and ddr
// before the rest because a ddr pair's descriptor programming action must
// precede the first data-admission run.
func wireContext(alloc ChannelAllocator, ctx *ContextMetadata, arch device.Arch, ctxIdx int, burstPrefetch bool) (*contextResources, error) {
	res := newContextResources(ctxIdx)

	classified := make(map[string]layer.EdgeLayer, len(ctx.EdgeLayers))
	for _, d := range ctx.EdgeLayers {
		e, err := layer.Classify(d, arch)
		if err != nil {
			return nil, err
		}
		classified[d.Name] = e
	}

	order := []struct {
		dir  action.Direction
		kind action.FlowKind
	}{
		{action.DeviceToHost, action.FlowDdr},
		{action.DeviceToHost, action.FlowBoundary},
		{action.DeviceToHost, action.FlowInterContext},
		{action.HostToDevice, action.FlowDdr},
		{action.HostToDevice, action.FlowBoundary},
		{action.HostToDevice, action.FlowInterContext},
	}

	ddrInputs := 0
	for _, o := range order {
		for _, d := range ctx.layersBy(o.dir, o.kind) {
			e := classified[d.Name]
			var err error
			switch {
			case o.kind == action.FlowDdr && o.dir == action.DeviceToHost:
				err = wireDdrOutput(alloc, res, e, ctxIdx)
			case o.kind == action.FlowDdr:
				err = wireDdrInput(alloc, res, e, ctxIdx)
				ddrInputs++
			case o.kind == action.FlowBoundary && o.dir == action.DeviceToHost:
				err = wireBoundaryOutput(alloc, res, e, ctxIdx)
			case o.kind == action.FlowBoundary:
				err = wireBoundaryInput(alloc, res, e, ctxIdx)
			case o.dir == action.DeviceToHost:
				err = wireInterContextOutput(alloc, res, e, ctxIdx)
			default:
				err = wireInterContextInput(alloc, res, e, ctxIdx)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if ddrInputs != len(res.ddrPairs) {
		return nil, errors.InvalidProgram(errors.PhaseWire,
			[]string{fmt.Sprintf("context %d", ctxIdx)},
			fmt.Sprintf("%d ddr pairs created but %d ddr inputs wired", len(res.ddrPairs), ddrInputs))
	}

	if err := openConfigChannels(alloc, res, ctx, ctxIdx, burstPrefetch); err != nil {
		return nil, err
	}

	Logger().Debug("context wired",
		zap.Int("context", ctxIdx),
		zap.Int("edge_layers", len(ctx.EdgeLayers)),
		zap.Int("ddr_pairs", len(res.ddrPairs)),
		zap.Int("config_channels", len(res.configBuffers)))

	return res, nil
}

// openConfigChannels leases one config channel per config index the
// context's raw writes touch, sized from the precomputed byte totals.
func openConfigChannels(alloc ChannelAllocator, res *contextResources, ctx *ContextMetadata, ctxIdx int, burstPrefetch bool) error {
	for idx, total := range ctx.ccwTotals() {
		ch, err := alloc.OpenConfigChannel(ctxIdx, idx, total)
		if err != nil {
			return errors.ResourceExhausted(errors.PhaseWire,
				fmt.Sprintf("config channel %d in context %d", idx, ctxIdx), err)
		}
		res.configBuffers[idx] = newConfigBuffer(ch, idx, total, burstPrefetch)
	}
	return nil
}

func wireDdrOutput(alloc ChannelAllocator, res *contextResources, e layer.EdgeLayer, ctxIdx int) error {
	if e.Geometry.BytesPerBuffer%device.CCWWordSize != 0 {
		return errors.InvalidProgram(errors.PhaseWire, []string{e.Name},
			"ddr row size not word aligned")
	}

	d2h, err := alloc.AcquireChannel(layer.Key{Context: ctxIdx, StreamIndex: e.StreamIndex, Direction: action.DeviceToHost}, engineHintDdr)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "ddr d2h channel for "+e.Name, err)
	}
	h2d, err := alloc.AcquireChannel(layer.Key{Context: ctxIdx, StreamIndex: e.StreamIndex, Direction: action.HostToDevice}, engineHintDdr)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "ddr h2d channel for "+e.Name, err)
	}
	res.leases = append(res.leases, d2h, h2d)

	pair, err := alloc.CreateDdrChannelPair(DdrPair{
		H2D:                  h2d.ID,
		D2H:                  d2h.ID,
		RowSize:              e.Geometry.BytesPerBuffer,
		MinBufferedRows:      e.MinBufferedRows,
		TotalBuffersPerFrame: e.Geometry.BuffersPerFrame,
		StreamIndex:          e.StreamIndex,
	}, ctxIdx)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "ddr buffer for "+e.Name, err)
	}
	res.ddrPairs = append(res.ddrPairs, pair)
	res.registerStream(action.DeviceToHost, e.StreamIndex, d2h.ID)
	res.teardown = append(res.teardown,
		action.Action{
			Type:   action.TypeDeactivateChannel,
			Params: action.DeactivateChannelParams{Channel: d2h.ID, Direction: action.DeviceToHost},
		},
		action.Action{
			Type:   action.TypeDeactivateChannel,
			Params: action.DeactivateChannelParams{Channel: h2d.ID, Direction: action.HostToDevice},
		})

	res.activation = append(res.activation, action.Action{
		Type: action.TypeActivateDdrOutputChannel,
		Params: action.ActivateDdrOutputChannelParams{
			Channel:      d2h.ID,
			StreamIndex:  e.StreamIndex,
			Host:         pair.HostD2H,
			StreamReg:    e.StreamReg(),
			BufferedRows: e.MinBufferedRows,
		},
	})
	return nil
}

func wireDdrInput(alloc ChannelAllocator, res *contextResources, e layer.EdgeLayer, ctxIdx int) error {
	pair, err := alloc.LookupDdrChannelPair(ctxIdx, e.StreamIndex)
	if err != nil {
		return errors.New(errors.PhaseWire, errors.KindInvalidProgram).
			Path(e.Name).
			Cause(err).
			Detail("ddr input stream %d has no matching output pair", e.StreamIndex).
			Build()
	}
	if pair.RowSize != e.Geometry.BytesPerBuffer ||
		pair.TotalBuffersPerFrame != e.Geometry.BuffersPerFrame {
		return errors.InvalidProgram(errors.PhaseWire, []string{e.Name},
			fmt.Sprintf("ddr pair geometry mismatch: output %dx%d, input %dx%d",
				pair.RowSize, pair.TotalBuffersPerFrame,
				e.Geometry.BytesPerBuffer, e.Geometry.BuffersPerFrame))
	}

	res.registerStream(action.HostToDevice, e.StreamIndex, pair.H2D)

	res.activation = append(res.activation, action.Action{
		Type: action.TypeActivateDdrInputChannel,
		Params: action.ActivateDdrInputChannelParams{
			Channel:       pair.H2D,
			ConnectedD2H:  pair.D2H,
			StreamIndex:   e.StreamIndex,
			Host:          pair.HostH2D,
			StreamReg:     e.StreamReg(),
			InitialCredit: e.MinBufferedRows,
		},
	})
	return nil
}

func wireBoundaryOutput(alloc ChannelAllocator, res *contextResources, e layer.EdgeLayer, ctxIdx int) error {
	lease, err := alloc.AcquireChannel(layer.Key{Context: ctxIdx, StreamIndex: e.StreamIndex, Direction: action.DeviceToHost}, engineHintBoundary)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "boundary d2h channel for "+e.Name, err)
	}
	// Boundary leases stay with the program; not recorded for release.

	host, err := alloc.CreateBoundaryChannel(lease.ID, e.Geometry.FrameBytes(), e.Name)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "boundary buffer for "+e.Name, err)
	}
	res.registerStream(action.DeviceToHost, e.StreamIndex, lease.ID)
	res.teardown = append(res.teardown, action.Action{
		Type:   action.TypeValidateChannel,
		Params: action.ValidateChannelParams{Channel: lease.ID, Direction: action.DeviceToHost},
	})

	res.activation = append(res.activation,
		action.Action{
			Type:   action.TypeOpenBoundaryOutputChannel,
			Params: action.OpenBoundaryOutputChannelParams{Channel: lease.ID, Host: host},
		},
		action.Action{
			Type: action.TypeActivateBoundaryOutputChannel,
			Params: action.ActivateBoundaryOutputChannelParams{
				Channel:      lease.ID,
				StreamIndex:  e.StreamIndex,
				NetworkIndex: e.NetworkIndex,
				Host:         host,
				StreamReg:    e.StreamReg(),
			},
		})
	return nil
}

func wireBoundaryInput(alloc ChannelAllocator, res *contextResources, e layer.EdgeLayer, ctxIdx int) error {
	lease, err := alloc.AcquireChannel(layer.Key{Context: ctxIdx, StreamIndex: e.StreamIndex, Direction: action.HostToDevice}, engineHintBoundary)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "boundary h2d channel for "+e.Name, err)
	}

	host, err := alloc.CreateBoundaryChannel(lease.ID, e.Geometry.FrameBytes(), e.Name)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "boundary buffer for "+e.Name, err)
	}
	res.registerStream(action.HostToDevice, e.StreamIndex, lease.ID)
	res.teardown = append(res.teardown, action.Action{
		Type:   action.TypeValidateChannel,
		Params: action.ValidateChannelParams{Channel: lease.ID, Direction: action.HostToDevice, CheckHostEmpty: true},
	})

	res.activation = append(res.activation,
		action.Action{
			Type:   action.TypeOpenBoundaryInputChannel,
			Params: action.OpenBoundaryInputChannelParams{Channel: lease.ID, Host: host},
		},
		action.Action{
			Type: action.TypeActivateBoundaryInputChannel,
			Params: action.ActivateBoundaryInputChannelParams{
				Channel:       lease.ID,
				StreamIndex:   e.StreamIndex,
				NetworkIndex:  e.NetworkIndex,
				Host:          host,
				StreamReg:     e.StreamReg(),
				InitialCredit: host.TotalDescCount,
			},
		})
	return nil
}

func wireInterContextOutput(alloc ChannelAllocator, res *contextResources, e layer.EdgeLayer, ctxIdx int) error {
	lease, err := alloc.AcquireChannel(layer.Key{Context: ctxIdx, StreamIndex: e.StreamIndex, Direction: action.DeviceToHost}, engineHintInter)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "inter-context d2h channel for "+e.Name, err)
	}
	res.leases = append(res.leases, lease)

	host, err := alloc.CreateInterContextBuffer(e.Geometry.FrameBytes(), e.StreamIndex, ctxIdx, e.Name)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "inter-context buffer for "+e.Name, err)
	}
	res.registerStream(action.DeviceToHost, e.StreamIndex, lease.ID)
	res.teardown = append(res.teardown, action.Action{
		Type:   action.TypeDeactivateChannel,
		Params: action.DeactivateChannelParams{Channel: lease.ID, Direction: action.DeviceToHost},
	})

	res.activation = append(res.activation, action.Action{
		Type: action.TypeActivateInterContextOutputChannel,
		Params: action.ActivateInterContextOutputChannelParams{
			Channel:      lease.ID,
			StreamIndex:  e.StreamIndex,
			NetworkIndex: e.NetworkIndex,
			Host:         host,
			StreamReg:    e.StreamReg(),
		},
	})
	return nil
}

func wireInterContextInput(alloc ChannelAllocator, res *contextResources, e layer.EdgeLayer, ctxIdx int) error {
	host, err := alloc.LookupInterContextBuffer(int(e.ConnectedContext), e.StreamIndex)
	if err != nil {
		return errors.New(errors.PhaseWire, errors.KindInvalidProgram).
			Path(e.Name).
			Cause(err).
			Detail("no producer buffer in context %d for stream %d", e.ConnectedContext, e.StreamIndex).
			Build()
	}

	lease, err := alloc.AcquireChannel(layer.Key{Context: ctxIdx, StreamIndex: e.StreamIndex, Direction: action.HostToDevice}, engineHintInter)
	if err != nil {
		return errors.ResourceExhausted(errors.PhaseWire, "inter-context h2d channel for "+e.Name, err)
	}
	res.leases = append(res.leases, lease)
	res.registerStream(action.HostToDevice, e.StreamIndex, lease.ID)
	res.teardown = append(res.teardown, action.Action{
		Type:   action.TypeDeactivateChannel,
		Params: action.DeactivateChannelParams{Channel: lease.ID, Direction: action.HostToDevice},
	})

	res.activation = append(res.activation, action.Action{
		Type: action.TypeActivateInterContextInputChannel,
		Params: action.ActivateInterContextInputChannelParams{
			Channel:       lease.ID,
			StreamIndex:   e.StreamIndex,
			NetworkIndex:  e.NetworkIndex,
			Host:          host,
			StreamReg:     e.StreamReg(),
			InitialCredit: host.TotalDescCount,
		},
	})
	return nil
}
