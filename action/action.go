package action

import (
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
)

// Action is one tagged instruction. Values are built once, either by the
// FromDescriptor factory or by the compiler itself, and are immutable
// afterwards; compression membership is tracked outside the value.
type Action struct {
	Params Params
	Type   Type
}

// Params is the variant payload of an action. The set of implementations is
// closed; nothing outside this package can add one.
type Params interface {
	isParams()
}

type NoneParams struct{}

// WriteDataCCWParams carries raw configuration words destined for one
// config channel. Never serialized; consumed by the burst-fetch rewrite.
type WriteDataCCWParams struct {
	Data        []byte
	ConfigIndex uint8
}

type ActivateConfigChannelParams struct {
	Host        HostBufferInfo
	Channel     ChannelID
	ConfigIndex uint8
}

type DeactivateConfigChannelParams struct {
	Channel     ChannelID
	ConfigIndex uint8
}

type FetchCfgChannelDescriptorsParams struct {
	ConfigIndex uint8
	DescCount   uint16
}

type AddCCWBurstsParams struct {
	ConfigIndex uint8
	BurstCount  uint16
}

type StartBurstCreditsTaskParams struct{}

type ResetBurstCreditsTaskParams struct{}

type WaitForNetworkGroupChangeParams struct{}

// RepeatedParams is the header of a compressed block. LastExecuted is fixed
// at zero here; only firmware advances it at runtime.
type RepeatedParams struct {
	SubTag uint8
	Count  uint8
}

type DisableLCUParams struct {
	Cluster uint8
	LCU     uint8
}

type WaitForLCUParams struct {
	Cluster uint8
	LCU     uint8
}

type EnableLCUParams struct {
	KernelDoneCount   uint32
	KernelDoneAddress uint16
	Cluster           uint8
	LCU               uint8
	NetworkIndex      uint8
}

type EnableSequencerParams struct {
	ActiveSC        uint64
	ActiveL2        uint64
	ActiveApu       uint32
	ActiveIA        uint32
	L2Offset0       uint32
	L2Offset1       uint32
	InitialL3Cut    uint16
	InitialL3Offset uint16
	Cluster         uint8
}

type WaitForSequencerParams struct {
	Cluster uint8
}

// AllowInputDataflowParams is the data-admission action: it tells firmware
// that one input stream of the context may start moving data.
type AllowInputDataflowParams struct {
	StreamIndex uint8
	Kind        FlowKind
}

type WaitForModuleConfigDoneParams struct {
	ModuleIndex uint8
}

type DdrPairInfoParams struct {
	DescriptorsPerFrame uint32
	DescCount           uint16
	H2D                 ChannelID
	D2H                 ChannelID
}

type StartDdrBufferingTaskParams struct{}

type ResetDdrBufferingTaskParams struct{}

type ChangeDmaStreamMappingParams struct {
	Channel     ChannelID
	StreamIndex uint8
	IsDummy     bool
}

type WaitOutputTransferDoneParams struct {
	StreamIndex uint8
}

type OpenBoundaryInputChannelParams struct {
	Host    HostBufferInfo
	Channel ChannelID
}

type OpenBoundaryOutputChannelParams struct {
	Host    HostBufferInfo
	Channel ChannelID
}

type ActivateBoundaryInputChannelParams struct {
	Host          HostBufferInfo
	StreamReg     StreamRegInfo
	InitialCredit uint32
	Channel       ChannelID
	StreamIndex   uint8
	NetworkIndex  uint8
}

type ActivateBoundaryOutputChannelParams struct {
	Host         HostBufferInfo
	StreamReg    StreamRegInfo
	Channel      ChannelID
	StreamIndex  uint8
	NetworkIndex uint8
}

type ActivateInterContextInputChannelParams struct {
	Host          HostBufferInfo
	StreamReg     StreamRegInfo
	InitialCredit uint32
	Channel       ChannelID
	StreamIndex   uint8
	NetworkIndex  uint8
}

type ActivateInterContextOutputChannelParams struct {
	Host         HostBufferInfo
	StreamReg    StreamRegInfo
	Channel      ChannelID
	StreamIndex  uint8
	NetworkIndex uint8
}

type ActivateDdrInputChannelParams struct {
	Host          HostBufferInfo
	StreamReg     StreamRegInfo
	InitialCredit uint32
	Channel       ChannelID
	ConnectedD2H  ChannelID
	StreamIndex   uint8
}

type ActivateDdrOutputChannelParams struct {
	Host         HostBufferInfo
	StreamReg    StreamRegInfo
	BufferedRows uint32
	Channel      ChannelID
	StreamIndex  uint8
}

type ValidateChannelParams struct {
	Channel        ChannelID
	Direction      Direction
	CheckHostEmpty bool
}

type DeactivateChannelParams struct {
	Channel        ChannelID
	Direction      Direction
	CheckHostEmpty bool
}

type WaitDmaIdleParams struct {
	StreamIndex uint8
}

type WaitNmsIdleParams struct {
	AggregatorIndex      uint8
	PredClusterObIndex   uint8
	PredClusterObCluster uint8
	PredClusterObIface   uint8
	SuccPrePostObIndex   uint8
	SuccPrePostObIface   uint8
}

type EnableNmsParams struct {
	ClassCount   uint16
	BurstSize    uint16
	UnitIndex    uint8
	NetworkIndex uint8
}

type SwitchLcuBatchParams struct {
	KernelDoneCount uint32
	Cluster         uint8
	LCU             uint8
	NetworkIndex    uint8
}

// ActivationPositionMarkerParams is a zero-payload placement hint: firmware
// performs edge-layer activation when it reaches this action.
type ActivationPositionMarkerParams struct{}

func (NoneParams) isParams()                              {}
func (WriteDataCCWParams) isParams()                      {}
func (ActivateConfigChannelParams) isParams()             {}
func (DeactivateConfigChannelParams) isParams()           {}
func (FetchCfgChannelDescriptorsParams) isParams()        {}
func (AddCCWBurstsParams) isParams()                      {}
func (StartBurstCreditsTaskParams) isParams()             {}
func (ResetBurstCreditsTaskParams) isParams()             {}
func (WaitForNetworkGroupChangeParams) isParams()         {}
func (RepeatedParams) isParams()                          {}
func (DisableLCUParams) isParams()                        {}
func (WaitForLCUParams) isParams()                        {}
func (EnableLCUParams) isParams()                         {}
func (EnableSequencerParams) isParams()                   {}
func (WaitForSequencerParams) isParams()                  {}
func (AllowInputDataflowParams) isParams()                {}
func (WaitForModuleConfigDoneParams) isParams()           {}
func (DdrPairInfoParams) isParams()                       {}
func (StartDdrBufferingTaskParams) isParams()             {}
func (ResetDdrBufferingTaskParams) isParams()             {}
func (ChangeDmaStreamMappingParams) isParams()            {}
func (WaitOutputTransferDoneParams) isParams()            {}
func (OpenBoundaryInputChannelParams) isParams()          {}
func (OpenBoundaryOutputChannelParams) isParams()         {}
func (ActivateBoundaryInputChannelParams) isParams()      {}
func (ActivateBoundaryOutputChannelParams) isParams()     {}
func (ActivateInterContextInputChannelParams) isParams()  {}
func (ActivateInterContextOutputChannelParams) isParams() {}
func (ActivateDdrInputChannelParams) isParams()           {}
func (ActivateDdrOutputChannelParams) isParams()          {}
func (ValidateChannelParams) isParams()                   {}
func (DeactivateChannelParams) isParams()                 {}
func (WaitDmaIdleParams) isParams()                       {}
func (WaitNmsIdleParams) isParams()                       {}
func (EnableNmsParams) isParams()                         {}
func (SwitchLcuBatchParams) isParams()                    {}
func (ActivationPositionMarkerParams) isParams()          {}

// SupportsRepeatedBlock reports whether this action may be folded into a
// repeated block. The data-admission action for a ddr layer is the one
// parameter-dependent exception.
func (a Action) SupportsRepeatedBlock() bool {
	if a.Type == TypeAllowInputDataflow {
		p, ok := a.Params.(AllowInputDataflowParams)
		return ok && p.Kind != FlowDdr
	}
	return supportsRepeated[a.Type]
}

// WireTag returns the firmware tag of this action; ok is false for the
// actions with no wire representation.
func (a Action) WireTag() (uint32, bool) {
	return a.Type.WireTag()
}

// NewEnableLCU builds the enable action for one compute unit, collapsing to
// the short default wire form when the kernel-done parameters equal the
// architectural defaults.
func NewEnableLCU(p EnableLCUParams) Action {
	t := TypeEnableLCUNonDefault
	if p.KernelDoneAddress == device.DefaultKernelDoneAddress &&
		p.KernelDoneCount == device.DefaultKernelDoneCount {
		t = TypeEnableLCUDefault
	}
	return Action{Type: t, Params: p}
}

// NewRepeated builds the header for a compressed block over members. The
// members themselves stay in the owning sequence; the header only records
// their shared wire tag and count.
func NewRepeated(members []Action) (Action, error) {
	if len(members) == 0 {
		return Action{}, errors.Internal(errors.PhaseRewrite, "empty repeated block")
	}
	if len(members) > device.MaxActionsPerGroup {
		return Action{}, errors.Overflow(errors.PhaseRewrite, nil, len(members), "u8 repeated count")
	}
	first := members[0]
	if first.Type == TypeRepeated {
		return Action{}, errors.Internal(errors.PhaseRewrite, "nested repeated block")
	}
	if !first.SupportsRepeatedBlock() {
		return Action{}, errors.Internal(errors.PhaseRewrite,
			"action %s cannot be repeated", first.Type)
	}
	tag, ok := first.WireTag()
	if !ok {
		return Action{}, errors.Internal(errors.PhaseRewrite,
			"action %s has no wire tag", first.Type)
	}
	for _, m := range members[1:] {
		if m.Type != first.Type {
			return Action{}, errors.Internal(errors.PhaseRewrite,
				"mixed types in repeated block: %s and %s", first.Type, m.Type)
		}
	}
	return Action{
		Type:   TypeRepeated,
		Params: RepeatedParams{SubTag: uint8(tag), Count: uint8(len(members))},
	}, nil
}
