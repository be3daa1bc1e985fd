package action

import "fmt"

// Type is the logical discriminant of an action variant.
type Type uint8

const (
	TypeNone Type = iota
	TypeWriteDataCCW
	TypeActivateConfigChannel
	TypeDeactivateConfigChannel
	TypeFetchCfgChannelDescriptors
	TypeAddCCWBursts
	TypeStartBurstCreditsTask
	TypeResetBurstCreditsTask
	TypeWaitForNetworkGroupChange
	TypeRepeated
	TypeDisableLCU
	TypeWaitForLCU
	TypeEnableLCUDefault
	TypeEnableLCUNonDefault
	TypeEnableSequencer
	TypeWaitForSequencer
	TypeAllowInputDataflow
	TypeWaitForModuleConfigDone
	TypeDdrPairInfo
	TypeStartDdrBufferingTask
	TypeResetDdrBufferingTask
	TypeChangeDmaStreamMapping
	TypeWaitOutputTransferDone
	TypeOpenBoundaryInputChannel
	TypeOpenBoundaryOutputChannel
	TypeActivateBoundaryInputChannel
	TypeActivateBoundaryOutputChannel
	TypeActivateInterContextInputChannel
	TypeActivateInterContextOutputChannel
	TypeActivateDdrInputChannel
	TypeActivateDdrOutputChannel
	TypeValidateChannel
	TypeDeactivateChannel
	TypeWaitDmaIdle
	TypeWaitNmsIdle
	TypeEnableNms
	TypeSwitchLcuBatch
	TypeActivationPositionMarker

	numTypes
)

var typeNames = [numTypes]string{
	TypeNone:                              "none",
	TypeWriteDataCCW:                      "write_data_ccw",
	TypeActivateConfigChannel:             "activate_config_channel",
	TypeDeactivateConfigChannel:           "deactivate_config_channel",
	TypeFetchCfgChannelDescriptors:        "fetch_cfg_channel_descriptors",
	TypeAddCCWBursts:                      "add_ccw_bursts",
	TypeStartBurstCreditsTask:             "start_burst_credits_task",
	TypeResetBurstCreditsTask:             "reset_burst_credits_task",
	TypeWaitForNetworkGroupChange:         "wait_for_network_group_change",
	TypeRepeated:                          "repeated",
	TypeDisableLCU:                        "disable_lcu",
	TypeWaitForLCU:                        "wait_for_lcu",
	TypeEnableLCUDefault:                  "enable_lcu_default",
	TypeEnableLCUNonDefault:               "enable_lcu_non_default",
	TypeEnableSequencer:                   "enable_sequencer",
	TypeWaitForSequencer:                  "wait_for_sequencer",
	TypeAllowInputDataflow:                "allow_input_dataflow",
	TypeWaitForModuleConfigDone:           "wait_for_module_config_done",
	TypeDdrPairInfo:                       "ddr_pair_info",
	TypeStartDdrBufferingTask:             "start_ddr_buffering_task",
	TypeResetDdrBufferingTask:             "reset_ddr_buffering_task",
	TypeChangeDmaStreamMapping:            "change_dma_stream_mapping",
	TypeWaitOutputTransferDone:            "wait_output_transfer_done",
	TypeOpenBoundaryInputChannel:          "open_boundary_input_channel",
	TypeOpenBoundaryOutputChannel:         "open_boundary_output_channel",
	TypeActivateBoundaryInputChannel:      "activate_boundary_input_channel",
	TypeActivateBoundaryOutputChannel:     "activate_boundary_output_channel",
	TypeActivateInterContextInputChannel:  "activate_inter_context_input_channel",
	TypeActivateInterContextOutputChannel: "activate_inter_context_output_channel",
	TypeActivateDdrInputChannel:           "activate_ddr_input_channel",
	TypeActivateDdrOutputChannel:          "activate_ddr_output_channel",
	TypeValidateChannel:                   "validate_channel",
	TypeDeactivateChannel:                 "deactivate_channel",
	TypeWaitDmaIdle:                       "wait_dma_idle",
	TypeWaitNmsIdle:                       "wait_nms_idle",
	TypeEnableNms:                         "enable_nms",
	TypeSwitchLcuBatch:                    "switch_lcu_batch",
	TypeActivationPositionMarker:          "activation_position_marker",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Firmware wire tags. Part of the control protocol; values must not change.
const (
	WireTagActivateConfigChannel uint32 = iota
	WireTagDeactivateConfigChannel
	WireTagFetchCfgChannelDescriptors
	WireTagAddCCWBursts
	WireTagStartBurstCreditsTask
	WireTagResetBurstCreditsTask
	WireTagRepeated
	WireTagDisableLCU
	WireTagWaitForLCU
	WireTagEnableLCUDefault
	WireTagEnableLCUNonDefault
	WireTagEnableSequencer
	WireTagWaitForSequencer
	WireTagAllowInputDataflow
	WireTagWaitForModuleConfigDone
	WireTagDdrPairInfo
	WireTagStartDdrBufferingTask
	WireTagResetDdrBufferingTask
	WireTagChangeDmaStreamMapping
	WireTagWaitOutputTransferDone
	WireTagOpenBoundaryInputChannel
	WireTagOpenBoundaryOutputChannel
	WireTagActivateBoundaryInputChannel
	WireTagActivateBoundaryOutputChannel
	WireTagActivateInterContextInputChannel
	WireTagActivateInterContextOutputChannel
	WireTagActivateDdrInputChannel
	WireTagActivateDdrOutputChannel
	WireTagValidateChannel
	WireTagDeactivateChannel
	WireTagWaitDmaIdle
	WireTagWaitNmsIdle
	WireTagEnableNms
	WireTagSwitchLcuBatch
	WireTagActivationPositionMarker
	WireTagWaitForNetworkGroupChange
)

var wireTags = map[Type]uint32{
	TypeActivateConfigChannel:             WireTagActivateConfigChannel,
	TypeDeactivateConfigChannel:           WireTagDeactivateConfigChannel,
	TypeFetchCfgChannelDescriptors:        WireTagFetchCfgChannelDescriptors,
	TypeAddCCWBursts:                      WireTagAddCCWBursts,
	TypeStartBurstCreditsTask:             WireTagStartBurstCreditsTask,
	TypeResetBurstCreditsTask:             WireTagResetBurstCreditsTask,
	TypeRepeated:                          WireTagRepeated,
	TypeDisableLCU:                        WireTagDisableLCU,
	TypeWaitForLCU:                        WireTagWaitForLCU,
	TypeEnableLCUDefault:                  WireTagEnableLCUDefault,
	TypeEnableLCUNonDefault:               WireTagEnableLCUNonDefault,
	TypeEnableSequencer:                   WireTagEnableSequencer,
	TypeWaitForSequencer:                  WireTagWaitForSequencer,
	TypeAllowInputDataflow:                WireTagAllowInputDataflow,
	TypeWaitForModuleConfigDone:           WireTagWaitForModuleConfigDone,
	TypeDdrPairInfo:                       WireTagDdrPairInfo,
	TypeStartDdrBufferingTask:             WireTagStartDdrBufferingTask,
	TypeResetDdrBufferingTask:             WireTagResetDdrBufferingTask,
	TypeChangeDmaStreamMapping:            WireTagChangeDmaStreamMapping,
	TypeWaitOutputTransferDone:            WireTagWaitOutputTransferDone,
	TypeOpenBoundaryInputChannel:          WireTagOpenBoundaryInputChannel,
	TypeOpenBoundaryOutputChannel:         WireTagOpenBoundaryOutputChannel,
	TypeActivateBoundaryInputChannel:      WireTagActivateBoundaryInputChannel,
	TypeActivateBoundaryOutputChannel:     WireTagActivateBoundaryOutputChannel,
	TypeActivateInterContextInputChannel:  WireTagActivateInterContextInputChannel,
	TypeActivateInterContextOutputChannel: WireTagActivateInterContextOutputChannel,
	TypeActivateDdrInputChannel:           WireTagActivateDdrInputChannel,
	TypeActivateDdrOutputChannel:          WireTagActivateDdrOutputChannel,
	TypeValidateChannel:                   WireTagValidateChannel,
	TypeDeactivateChannel:                 WireTagDeactivateChannel,
	TypeWaitDmaIdle:                       WireTagWaitDmaIdle,
	TypeWaitNmsIdle:                       WireTagWaitNmsIdle,
	TypeEnableNms:                         WireTagEnableNms,
	TypeSwitchLcuBatch:                    WireTagSwitchLcuBatch,
	TypeActivationPositionMarker:          WireTagActivationPositionMarker,
	TypeWaitForNetworkGroupChange:         WireTagWaitForNetworkGroupChange,
}

// WireTag returns the firmware tag for a logical type. The second result is
// false for the types that never reach firmware (none, raw CCW writes).
func (t Type) WireTag() (uint32, bool) {
	tag, ok := wireTags[t]
	return tag, ok
}

// supportsRepeated is the fixed per-variant compression capability. Wait
// actions are deliberately left out even where firmware could cope, to keep
// single-step debugging of stuck contexts usable.
var supportsRepeated = map[Type]bool{
	TypeFetchCfgChannelDescriptors: true,
	TypeDisableLCU:                 true,
	TypeEnableLCUDefault:           true,
	TypeEnableLCUNonDefault:        true,
	TypeEnableSequencer:            true,
	TypeAllowInputDataflow:         true,
	TypeDdrPairInfo:                true,
	TypeChangeDmaStreamMapping:     true,
	TypeEnableNms:                  true,
	TypeSwitchLcuBatch:             true,
}
