package compiler

import (
	"fmt"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
	"github.com/tensorlane/actionc/layer"
)

// Features are the network-group level feature flags that change how the
// compiler lays out a program.
type Features struct {
	// PreliminaryRunAsap moves edge-layer wiring and activation into the
	// preliminary context so the first inference starts without waiting
	// for the first dynamic context switch.
	PreliminaryRunAsap bool
}

// OperationMetadata is one trigger plus the parsed actions it guards.
type OperationMetadata struct {
	Actions []action.Descriptor
	Trigger action.Trigger
}

// ContextMetadata is the parsed description of one context.
type ContextMetadata struct {
	EdgeLayers []layer.Descriptor
	Operations []OperationMetadata
}

// NetworkGroup is the parsed description the compiler consumes.
type NetworkGroup struct {
	Name        string
	Preliminary ContextMetadata
	Dynamic     []ContextMetadata
	Features    Features
}

// validate checks the structural invariants that do not need wiring:
// context count, stream index uniqueness per category and direction, and
// edge layer name uniqueness.
func (ng *NetworkGroup) validate() error {
	if len(ng.Dynamic) > device.MaxDynamicContexts {
		return errors.InvalidProgram(errors.PhaseCompile, []string{ng.Name},
			fmt.Sprintf("%d dynamic contexts exceed the maximum of %d",
				len(ng.Dynamic), device.MaxDynamicContexts))
	}

	for ctxIdx, ctx := range ng.Dynamic {
		type streamKey struct {
			kind   action.FlowKind
			dir    action.Direction
			stream uint8
		}
		seenStream := make(map[streamKey]bool)
		seenName := make(map[string]bool)
		path := []string{ng.Name, fmt.Sprintf("context %d", ctxIdx)}

		for _, d := range ctx.EdgeLayers {
			if seenName[d.Name] {
				return errors.Duplicate(errors.PhaseCompile, path, "edge layer name", d.Name)
			}
			seenName[d.Name] = true

			k := streamKey{kind: d.Connection, dir: d.Direction, stream: d.StreamIndex}
			if seenStream[k] {
				return errors.Duplicate(errors.PhaseCompile, path,
					fmt.Sprintf("%s %s stream index", d.Connection, d.Direction), d.StreamIndex)
			}
			seenStream[k] = true
		}
	}
	return nil
}

// inputLayers returns the context's edge layers with the given direction.
func (c *ContextMetadata) layersBy(dir action.Direction, kind action.FlowKind) []layer.Descriptor {
	var out []layer.Descriptor
	for _, d := range c.EdgeLayers {
		if d.Direction == dir && d.Connection == kind {
			out = append(out, d)
		}
	}
	return out
}

// ccwTotals sums raw configuration bytes per config index across all of the
// context's operations. The totals tell each config buffer when its last
// write arrives.
func (c *ContextMetadata) ccwTotals() map[uint8]uint32 {
	totals := make(map[uint8]uint32)
	for _, op := range c.Operations {
		for _, d := range op.Actions {
			if d.Kind == action.DescWriteDataCCW {
				totals[d.ConfigIndex] += uint32(len(d.Data))
			}
		}
	}
	return totals
}
