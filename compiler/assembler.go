package compiler

import (
	"go.uber.org/zap"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
)

// preliminaryContextIndex keys the preliminary context's allocator-side
// resources. Dynamic contexts are keyed by their zero-based position.
const preliminaryContextIndex = -1

// Compiler turns parsed network-group metadata into a runnable program.
// One Compiler drives one allocator; compiles are not concurrency safe.
type Compiler struct {
	alloc ChannelAllocator
	arch  device.Arch
	caps  device.Caps
}

// New builds a compiler for one target architecture.
func New(alloc ChannelAllocator, arch device.Arch) (*Compiler, error) {
	switch arch {
	case device.ArchA10, device.ArchA10L, device.ArchM20:
	default:
		return nil, errors.Unsupported(errors.PhaseCompile, "architecture "+arch.String())
	}
	return &Compiler{alloc: alloc, arch: arch, caps: arch.CapsOf()}, nil
}

// contextOptions selects which assembly steps apply to one context.
type contextOptions struct {
	wireEdges       bool
	placeActivation bool
	teardown        bool
	waitForChange   bool
}

// Compile lowers a network group into its executable program: the
// preliminary context first, then every dynamic context in execution order,
// then the allocator's channel materialization.
func (c *Compiler) Compile(ng *NetworkGroup) (*Program, error) {
	if err := ng.validate(); err != nil {
		return nil, err
	}

	prog := &Program{Name: ng.Name}
	runAsap := ng.Features.PreliminaryRunAsap

	if len(ng.Preliminary.Operations) > 0 || len(ng.Preliminary.EdgeLayers) > 0 {
		pre, err := c.compileContext(&ng.Preliminary, preliminaryContextIndex, contextOptions{
			wireEdges:       runAsap,
			placeActivation: runAsap,
		})
		if err != nil {
			return nil, err
		}
		prog.Preliminary = pre
	}

	for i := range ng.Dynamic {
		ctx, err := c.compileContext(&ng.Dynamic[i], i, contextOptions{
			wireEdges: true,
			// With an asap preliminary the first context's activation
			// already rode in the preliminary image.
			placeActivation: !(runAsap && i == 0 && prog.Preliminary != nil),
			teardown:        true,
			waitForChange:   len(ng.Dynamic) == 1,
		})
		if err != nil {
			return nil, err
		}
		prog.Dynamic = append(prog.Dynamic, ctx)
	}

	if err := c.alloc.Materialize(); err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindResourceExhausted,
			err, "materializing firmware channels")
	}

	Logger().Info("program compiled",
		zap.String("network_group", ng.Name),
		zap.String("arch", c.arch.String()),
		zap.Int("dynamic_contexts", len(prog.Dynamic)),
		zap.Bool("preliminary", prog.Preliminary != nil))
	return prog, nil
}

func (c *Compiler) compileContext(meta *ContextMetadata, ctxIdx int, opts contextOptions) (*Context, error) {
	var res *contextResources
	var err error
	if opts.wireEdges {
		res, err = wireContext(c.alloc, meta, c.arch, ctxIdx, c.caps.BurstPrefetch)
	} else {
		res = newContextResources(ctxIdx)
		err = openConfigChannels(c.alloc, res, meta, ctxIdx, c.caps.BurstPrefetch)
	}
	if err != nil {
		return nil, err
	}

	ctx := &Context{}
	for _, om := range meta.Operations {
		acts := make([]action.Action, 0, len(om.Actions))
		for _, d := range om.Actions {
			a, err := action.FromDescriptor(d, c.caps)
			if err != nil {
				return nil, err
			}
			acts = append(acts, a)
		}
		ctx.Operations = append(ctx.Operations, NewOperation(om.Trigger, acts))
	}
	// A context with layers but no parsed operations still needs a slot
	// for activation, bracketing and teardown.
	if len(ctx.Operations) == 0 {
		ctx.Operations = append(ctx.Operations, NewOperation(action.NoneTrigger(), nil))
	}

	for _, op := range ctx.Operations {
		if err := rewriteBurstFetch(op, res, c.caps.BurstPrefetch); err != nil {
			return nil, err
		}
	}

	if opts.placeActivation {
		if err := placeActivation(ctx.Operations[0], res); err != nil {
			return nil, err
		}
	}

	c.bracketConfigChannels(ctx, res)

	last := ctx.Operations[len(ctx.Operations)-1]
	if opts.teardown {
		last.append(res.teardown...)
	}
	if opts.waitForChange {
		last.append(action.Action{
			Type:   action.TypeWaitForNetworkGroupChange,
			Params: action.WaitForNetworkGroupChangeParams{},
		})
	}

	for _, op := range ctx.Operations {
		if err := compressRepeated(op); err != nil {
			return nil, err
		}
	}

	if err := ctx.serialize(res); err != nil {
		return nil, err
	}
	if err := res.releaseEphemeral(); err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindInternal,
			err, "releasing context channels")
	}

	Logger().Debug("context compiled",
		zap.Int("context", ctxIdx),
		zap.Int("operations", len(ctx.Operations)),
		zap.Int("image_bytes", len(ctx.Image)))
	return ctx, nil
}

// bracketConfigChannels activates every config channel at the head of the
// context's first operation and deactivates them at the tail of its last,
// so descriptor fetches always run against an active channel.
func (c *Compiler) bracketConfigChannels(ctx *Context, res *contextResources) {
	idxs := res.configIndexes()
	if len(idxs) == 0 {
		return
	}

	activate := make([]action.Action, 0, len(idxs))
	for _, idx := range idxs {
		buf := res.configBuffers[idx]
		activate = append(activate, action.Action{
			Type: action.TypeActivateConfigChannel,
			Params: action.ActivateConfigChannelParams{
				ConfigIndex: idx,
				Channel:     buf.Channel(),
				Host:        buf.Host(),
			},
		})
	}
	ctx.Operations[0].insert(0, activate...)

	last := ctx.Operations[len(ctx.Operations)-1]
	for _, idx := range idxs {
		buf := res.configBuffers[idx]
		last.append(action.Action{
			Type: action.TypeDeactivateConfigChannel,
			Params: action.DeactivateConfigChannelParams{
				ConfigIndex: idx,
				Channel:     buf.Channel(),
			},
		})
	}
}
