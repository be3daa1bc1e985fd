package compiler

import (
	"math"
	"sort"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
)

// rewriteBurstFetch folds every run of raw configuration-word writes into
// the config buffers and replaces the run with one fetch per touched config
// index. With burst prefetch hardware the fetch is a burst-count bump; without
// it the buffered words are turned into DMA descriptors and an explicit
// descriptor fetch. Raw writes never survive this pass, so re-running it is
// a no-op.
func rewriteBurstFetch(op *Operation, res *contextResources, burstPrefetch bool) error {
	out := make([]action.Action, 0, len(op.Actions))
	bursts := make(map[uint8]uint16)

	flush := func() error {
		if len(bursts) == 0 {
			return nil
		}
		idxs := make([]uint8, 0, len(bursts))
		for idx := range bursts {
			idxs = append(idxs, idx)
		}
		sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

		for _, idx := range idxs {
			if burstPrefetch {
				out = append(out, action.Action{
					Type:   action.TypeAddCCWBursts,
					Params: action.AddCCWBurstsParams{ConfigIndex: idx, BurstCount: bursts[idx]},
				})
				continue
			}
			buf, err := res.configBuffer(idx)
			if err != nil {
				return err
			}
			descCount, err := buf.ProgramDescriptors()
			if err != nil {
				return err
			}
			out = append(out, action.Action{
				Type:   action.TypeFetchCfgChannelDescriptors,
				Params: action.FetchCfgChannelDescriptorsParams{ConfigIndex: idx, DescCount: descCount},
			})
		}
		bursts = make(map[uint8]uint16)
		return nil
	}

	for _, a := range op.Actions {
		if a.Type == action.TypeWriteDataCCW {
			p := a.Params.(action.WriteDataCCWParams)
			if len(p.Data)%device.CCWWordSize != 0 {
				return errors.InvalidProgram(errors.PhaseRewrite, nil,
					"ccw write not word aligned")
			}
			buf, err := res.configBuffer(p.ConfigIndex)
			if err != nil {
				return err
			}
			if err := buf.Write(p.Data); err != nil {
				return err
			}
			words := uint32(len(p.Data)) / device.CCWWordSize
			n := uint32(bursts[p.ConfigIndex]) + words
			if n > math.MaxUint16 {
				return errors.Overflow(errors.PhaseRewrite, nil, n, "uint16 ccw burst count")
			}
			bursts[p.ConfigIndex] = uint16(n)
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		out = append(out, a)
	}
	if err := flush(); err != nil {
		return err
	}

	op.Actions = out
	op.Repeated = make([]bool, len(out))
	return nil
}

// placeActivation anchors the context's edge-layer activation at its input
// admission point: a position marker, the activation actions in wiring
// order, and the spill-pair records go directly before the admission run,
// and the credit-tracking task starts directly after it. Exactly one
// admission run must exist. The marker doubles as the idempotence guard.
func placeActivation(op *Operation, res *contextResources) error {
	if op.contains(action.TypeActivationPositionMarker) {
		return nil
	}

	var runs [][2]int
	for i := 0; i < len(op.Actions); {
		if op.Actions[i].Type != action.TypeAllowInputDataflow {
			i++
			continue
		}
		j := i + 1
		for j < len(op.Actions) && op.Actions[j].Type == action.TypeAllowInputDataflow {
			j++
		}
		runs = append(runs, [2]int{i, j})
		i = j
	}

	if len(runs) != 1 {
		return errors.Internal(errors.PhaseRewrite,
			"context %d has %d input admission runs, need exactly one to anchor activation",
			res.index, len(runs))
	}

	block := make([]action.Action, 0, len(res.activation)+len(res.ddrPairs)+1)
	block = append(block, action.Action{
		Type:   action.TypeActivationPositionMarker,
		Params: action.ActivationPositionMarkerParams{},
	})
	block = append(block, res.activation...)

	for _, pair := range res.ddrPairs {
		if !pair.NeedsManualCreditManagement() {
			continue
		}
		perFrame, err := pair.DescriptorsPerFrame()
		if err != nil {
			return err
		}
		if pair.HostH2D.TotalDescCount > math.MaxUint16 {
			return errors.Overflow(errors.PhaseRewrite, nil,
				pair.HostH2D.TotalDescCount, "uint16 ddr descriptor count")
		}
		block = append(block, action.Action{
			Type: action.TypeDdrPairInfo,
			Params: action.DdrPairInfoParams{
				DescriptorsPerFrame: perFrame,
				DescCount:           uint16(pair.HostH2D.TotalDescCount),
				H2D:                 pair.H2D,
				D2H:                 pair.D2H,
			},
		})
	}

	start, end := runs[0][0], runs[0][1]
	op.insert(end, action.Action{
		Type:   action.TypeStartBurstCreditsTask,
		Params: action.StartBurstCreditsTaskParams{},
	})
	op.insert(start, block...)
	return nil
}

// Folding a run into a repeated block trades one block header and its
// count record for the members' individual headers, so it pays for itself
// from the second member on.
const minRunForMerge = 2

// compressRepeated folds maximal runs of same-type repeatable actions into
// repeated blocks, splitting runs longer than a block header's count field
// can express. Block headers and already-folded members are skipped, which
// makes the pass idempotent.
func compressRepeated(op *Operation) error {
	out := make([]action.Action, 0, len(op.Actions))
	rep := make([]bool, 0, len(op.Actions))

	for i := 0; i < len(op.Actions); {
		a := op.Actions[i]
		if op.Repeated[i] || a.Type == action.TypeRepeated || !a.SupportsRepeatedBlock() {
			out = append(out, a)
			rep = append(rep, op.Repeated[i])
			i++
			continue
		}

		j := i + 1
		for j < len(op.Actions) &&
			!op.Repeated[j] &&
			op.Actions[j].Type == a.Type &&
			op.Actions[j].SupportsRepeatedBlock() {
			j++
		}

		run := op.Actions[i:j]
		for len(run) > 0 {
			chunk := len(run)
			if chunk > device.MaxActionsPerGroup {
				chunk = device.MaxActionsPerGroup
			}
			if chunk < minRunForMerge {
				out = append(out, run[:chunk]...)
				rep = append(rep, make([]bool, chunk)...)
			} else {
				hdr, err := action.NewRepeated(run[:chunk])
				if err != nil {
					return err
				}
				out = append(out, hdr)
				rep = append(rep, false)
				out = append(out, run[:chunk]...)
				for k := 0; k < chunk; k++ {
					rep = append(rep, true)
				}
			}
			run = run[chunk:]
		}
		i = j
	}

	op.Actions, op.Repeated = out, rep
	return nil
}
