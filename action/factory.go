package action

import (
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
)

// DescriptorKind is the external discriminant of a parsed action descriptor,
// as it appears in the executable container.
type DescriptorKind uint8

const (
	DescNone DescriptorKind = iota
	DescWriteDataCCW
	DescDisableLCU
	DescEnableLCU
	DescSwitchLcuBatch
	DescEnableSequencer
	DescWaitForSequencerDone
	DescAllowInputDataflow
	DescWaitForModuleConfigDone
	DescWaitOutputTransferDone
	DescWaitDmaIdle
	DescWaitNmsIdle
	DescEnableNms
	DescWriteCompressedData

	numDescriptorKinds
)

// Descriptor is one parsed action from the container. Only the fields of
// the active Kind are meaningful.
type Descriptor struct {
	Data              []byte
	KernelDoneCount   uint32
	KernelDoneAddress uint16
	Sequencer         EnableSequencerParams
	Nms               WaitNmsIdleParams
	ClassCount        uint16
	BurstSize         uint16
	Kind              DescriptorKind
	ConfigIndex       uint8
	Cluster           uint8
	LCU               uint8
	StreamIndex       uint8
	NetworkIndex      uint8
	ModuleIndex       uint8
	UnitIndex         uint8
	FlowKind          FlowKind
}

// FromDescriptor is the single boundary where external descriptors enter the
// closed action set. Unknown discriminants are rejected; recognized but
// unimplemented ones (compressed config writes) and sequencer actions on
// hardware without a sequencer fail as unsupported.
func FromDescriptor(d Descriptor, caps device.Caps) (Action, error) {
	switch d.Kind {
	case DescNone:
		return Action{Type: TypeNone, Params: NoneParams{}}, nil

	case DescWriteDataCCW:
		return Action{Type: TypeWriteDataCCW, Params: WriteDataCCWParams{
			Data:        d.Data,
			ConfigIndex: d.ConfigIndex,
		}}, nil

	case DescDisableLCU:
		return Action{Type: TypeDisableLCU, Params: DisableLCUParams{
			Cluster: d.Cluster,
			LCU:     d.LCU,
		}}, nil

	case DescEnableLCU:
		return NewEnableLCU(EnableLCUParams{
			Cluster:           d.Cluster,
			LCU:               d.LCU,
			KernelDoneAddress: d.KernelDoneAddress,
			KernelDoneCount:   d.KernelDoneCount,
			NetworkIndex:      d.NetworkIndex,
		}), nil

	case DescSwitchLcuBatch:
		return Action{Type: TypeSwitchLcuBatch, Params: SwitchLcuBatchParams{
			Cluster:         d.Cluster,
			LCU:             d.LCU,
			NetworkIndex:    d.NetworkIndex,
			KernelDoneCount: d.KernelDoneCount,
		}}, nil

	case DescEnableSequencer:
		if !caps.Sequencer {
			return Action{}, errors.Unsupported(errors.PhaseCompile,
				"sequencer action on hardware without sequencer")
		}
		return Action{Type: TypeEnableSequencer, Params: d.Sequencer}, nil

	case DescWaitForSequencerDone:
		if !caps.Sequencer {
			return Action{}, errors.Unsupported(errors.PhaseCompile,
				"sequencer action on hardware without sequencer")
		}
		return Action{Type: TypeWaitForSequencer, Params: WaitForSequencerParams{
			Cluster: d.Cluster,
		}}, nil

	case DescAllowInputDataflow:
		return Action{Type: TypeAllowInputDataflow, Params: AllowInputDataflowParams{
			StreamIndex: d.StreamIndex,
			Kind:        d.FlowKind,
		}}, nil

	case DescWaitForModuleConfigDone:
		return Action{Type: TypeWaitForModuleConfigDone, Params: WaitForModuleConfigDoneParams{
			ModuleIndex: d.ModuleIndex,
		}}, nil

	case DescWaitOutputTransferDone:
		return Action{Type: TypeWaitOutputTransferDone, Params: WaitOutputTransferDoneParams{
			StreamIndex: d.StreamIndex,
		}}, nil

	case DescWaitDmaIdle:
		return Action{Type: TypeWaitDmaIdle, Params: WaitDmaIdleParams{
			StreamIndex: d.StreamIndex,
		}}, nil

	case DescWaitNmsIdle:
		return Action{Type: TypeWaitNmsIdle, Params: d.Nms}, nil

	case DescEnableNms:
		return Action{Type: TypeEnableNms, Params: EnableNmsParams{
			UnitIndex:    d.UnitIndex,
			NetworkIndex: d.NetworkIndex,
			ClassCount:   d.ClassCount,
			BurstSize:    d.BurstSize,
		}}, nil

	case DescWriteCompressedData:
		return Action{}, errors.Unsupported(errors.PhaseCompile,
			"compressed config write")

	default:
		return Action{}, errors.InvalidDiscriminant(errors.PhaseCompile,
			[]string{"action descriptor"}, uint32(d.Kind), uint32(numDescriptorKinds-1))
	}
}
