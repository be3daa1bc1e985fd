package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/compiler"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/layer"
)

// networkGroupFile is the on-disk description the CLI compiles. YAML, with
// JSON accepted since yaml.v3 parses it.
type networkGroupFile struct {
	Name        string        `yaml:"name"`
	Arch        string        `yaml:"arch"`
	Features    featuresFile  `yaml:"features"`
	Preliminary *contextFile  `yaml:"preliminary"`
	Contexts    []contextFile `yaml:"contexts"`
}

type featuresFile struct {
	PreliminaryRunAsap bool `yaml:"preliminary_run_asap"`
}

type contextFile struct {
	EdgeLayers []edgeLayerFile `yaml:"edge_layers"`
	Operations []operationFile `yaml:"operations"`
}

type edgeLayerFile struct {
	Name                 string `yaml:"name"`
	Direction            string `yaml:"direction"`  // h2d or d2h
	Connection           string `yaml:"connection"` // boundary, inter_context, ddr
	Order                string `yaml:"order"`
	CoreBytesPerBuffer   uint32 `yaml:"core_bytes_per_buffer"`
	PaddedBytesPerBuffer uint32 `yaml:"padded_bytes_per_buffer"`
	BuffersPerFrame      uint32 `yaml:"buffers_per_frame"`
	MinBufferedRows      uint32 `yaml:"min_buffered_rows"`
	ConnectedContext     uint8  `yaml:"connected_context"`
	StreamIndex          uint8  `yaml:"stream_index"`
	NetworkIndex         uint8  `yaml:"network_index"`
	IsMux                bool   `yaml:"is_mux"`
}

type operationFile struct {
	Trigger triggerFile  `yaml:"trigger"`
	Actions []actionFile `yaml:"actions"`
}

type triggerFile struct {
	Kind    string `yaml:"kind"`
	Stream  uint8  `yaml:"stream"`
	Cluster uint8  `yaml:"cluster"`
	LCU     uint8  `yaml:"lcu"`
}

type actionFile struct {
	Kind              string `yaml:"kind"`
	Data              string `yaml:"data"` // base64 configuration words
	ConfigIndex       uint8  `yaml:"config_index"`
	Cluster           uint8  `yaml:"cluster"`
	LCU               uint8  `yaml:"lcu"`
	KernelDoneAddress uint16 `yaml:"kernel_done_address"`
	KernelDoneCount   uint32 `yaml:"kernel_done_count"`
	StreamIndex       uint8  `yaml:"stream_index"`
	NetworkIndex      uint8  `yaml:"network_index"`
	ModuleIndex       uint8  `yaml:"module_index"`
	UnitIndex         uint8  `yaml:"unit_index"`
	Flow              string `yaml:"flow"`
	ClassCount        uint16 `yaml:"class_count"`
	BurstSize         uint16 `yaml:"burst_size"`
}

var descriptorKinds = map[string]action.DescriptorKind{
	"none":                        action.DescNone,
	"write_data_ccw":              action.DescWriteDataCCW,
	"disable_lcu":                 action.DescDisableLCU,
	"enable_lcu":                  action.DescEnableLCU,
	"switch_lcu_batch":            action.DescSwitchLcuBatch,
	"enable_sequencer":            action.DescEnableSequencer,
	"wait_for_sequencer_done":     action.DescWaitForSequencerDone,
	"allow_input_dataflow":        action.DescAllowInputDataflow,
	"wait_for_module_config_done": action.DescWaitForModuleConfigDone,
	"wait_output_transfer_done":   action.DescWaitOutputTransferDone,
	"wait_dma_idle":               action.DescWaitDmaIdle,
	"wait_nms_idle":               action.DescWaitNmsIdle,
	"enable_nms":                  action.DescEnableNms,
	"write_compressed_data":       action.DescWriteCompressedData,
}

var flowKinds = map[string]action.FlowKind{
	"boundary":      action.FlowBoundary,
	"inter_context": action.FlowInterContext,
	"ddr":           action.FlowDdr,
}

var orders = map[string]layer.Order{
	"nhwc":  layer.OrderNHWC,
	"nhcw":  layer.OrderNHCW,
	"nc":    layer.OrderNC,
	"fcr":   layer.OrderFCR,
	"bayer": layer.OrderBayerRGB,
	"nms":   layer.OrderNMS,
}

func loadNetworkGroup(path string) (*compiler.NetworkGroup, device.Arch, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, device.ArchUnknown, err
	}

	var f networkGroupFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, device.ArchUnknown, fmt.Errorf("parse %s: %w", path, err)
	}

	arch, ok := device.ParseArch(f.Arch)
	if !ok {
		return nil, device.ArchUnknown, fmt.Errorf("unknown arch %q", f.Arch)
	}

	ng := &compiler.NetworkGroup{
		Name:     f.Name,
		Features: compiler.Features{PreliminaryRunAsap: f.Features.PreliminaryRunAsap},
	}
	if f.Preliminary != nil {
		pre, err := convertContext(*f.Preliminary)
		if err != nil {
			return nil, device.ArchUnknown, fmt.Errorf("preliminary: %w", err)
		}
		ng.Preliminary = pre
	}
	for i, cf := range f.Contexts {
		ctx, err := convertContext(cf)
		if err != nil {
			return nil, device.ArchUnknown, fmt.Errorf("context %d: %w", i, err)
		}
		ng.Dynamic = append(ng.Dynamic, ctx)
	}
	return ng, arch, nil
}

func convertContext(cf contextFile) (compiler.ContextMetadata, error) {
	var meta compiler.ContextMetadata

	for _, lf := range cf.EdgeLayers {
		d, err := convertEdgeLayer(lf)
		if err != nil {
			return meta, fmt.Errorf("layer %q: %w", lf.Name, err)
		}
		meta.EdgeLayers = append(meta.EdgeLayers, d)
	}

	for i, of := range cf.Operations {
		trigger, err := convertTrigger(of.Trigger)
		if err != nil {
			return meta, fmt.Errorf("operation %d: %w", i, err)
		}
		om := compiler.OperationMetadata{Trigger: trigger}
		for j, af := range of.Actions {
			d, err := convertAction(af)
			if err != nil {
				return meta, fmt.Errorf("operation %d action %d: %w", i, j, err)
			}
			om.Actions = append(om.Actions, d)
		}
		meta.Operations = append(meta.Operations, om)
	}
	return meta, nil
}

func convertEdgeLayer(lf edgeLayerFile) (layer.Descriptor, error) {
	dir, err := parseDirection(lf.Direction)
	if err != nil {
		return layer.Descriptor{}, err
	}
	conn, ok := flowKinds[lf.Connection]
	if !ok {
		return layer.Descriptor{}, fmt.Errorf("unknown connection %q", lf.Connection)
	}
	order, ok := orders[lf.Order]
	if !ok {
		return layer.Descriptor{}, fmt.Errorf("unknown order %q", lf.Order)
	}
	return layer.Descriptor{
		Name:                 lf.Name,
		CoreBytesPerBuffer:   lf.CoreBytesPerBuffer,
		PaddedBytesPerBuffer: lf.PaddedBytesPerBuffer,
		BuffersPerFrame:      lf.BuffersPerFrame,
		MinBufferedRows:      lf.MinBufferedRows,
		ConnectedContext:     lf.ConnectedContext,
		StreamIndex:          lf.StreamIndex,
		NetworkIndex:         lf.NetworkIndex,
		Direction:            dir,
		Connection:           conn,
		Order:                order,
		IsMux:                lf.IsMux,
	}, nil
}

func parseDirection(s string) (action.Direction, error) {
	switch s {
	case "h2d":
		return action.HostToDevice, nil
	case "d2h":
		return action.DeviceToHost, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

func convertTrigger(tf triggerFile) (action.Trigger, error) {
	switch tf.Kind {
	case "", "none":
		return action.NoneTrigger(), nil
	case "input_stream":
		return action.InputStreamTrigger(tf.Stream), nil
	case "output_stream":
		return action.OutputStreamTrigger(tf.Stream), nil
	case "lcu":
		return action.LCUTrigger(tf.Cluster, tf.LCU), nil
	case "dma_idle":
		return action.DmaIdleTrigger(tf.Stream), nil
	default:
		return action.Trigger{}, fmt.Errorf("unknown trigger kind %q", tf.Kind)
	}
}

func convertAction(af actionFile) (action.Descriptor, error) {
	kind, ok := descriptorKinds[af.Kind]
	if !ok {
		return action.Descriptor{}, fmt.Errorf("unknown action kind %q", af.Kind)
	}

	var data []byte
	if af.Data != "" {
		var err error
		data, err = base64.StdEncoding.DecodeString(af.Data)
		if err != nil {
			return action.Descriptor{}, fmt.Errorf("decode data: %w", err)
		}
	}

	kdAddr := af.KernelDoneAddress
	kdCount := af.KernelDoneCount
	if kind == action.DescEnableLCU && kdAddr == 0 && kdCount == 0 {
		kdAddr = device.DefaultKernelDoneAddress
		kdCount = device.DefaultKernelDoneCount
	}

	return action.Descriptor{
		Kind:              kind,
		Data:              data,
		ConfigIndex:       af.ConfigIndex,
		Cluster:           af.Cluster,
		LCU:               af.LCU,
		KernelDoneAddress: kdAddr,
		KernelDoneCount:   kdCount,
		StreamIndex:       af.StreamIndex,
		NetworkIndex:      af.NetworkIndex,
		ModuleIndex:       af.ModuleIndex,
		UnitIndex:         af.UnitIndex,
		FlowKind:          flowKinds[af.Flow],
		ClassCount:        af.ClassCount,
		BurstSize:         af.BurstSize,
	}, nil
}
