package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
	"github.com/tensorlane/actionc/internal/binary"
)

func disableLCU(cluster, lcu uint8) action.Action {
	return action.Action{
		Type:   action.TypeDisableLCU,
		Params: action.DisableLCUParams{Cluster: cluster, LCU: lcu},
	}
}

func ccwAction(configIndex uint8, words int) action.Action {
	return action.Action{
		Type: action.TypeWriteDataCCW,
		Params: action.WriteDataCCWParams{
			ConfigIndex: configIndex,
			Data:        make([]byte, words*device.CCWWordSize),
		},
	}
}

func testResources(t *testing.T, totals map[uint8]uint32, burstPad bool) *contextResources {
	t.Helper()
	res := newContextResources(0)
	for idx, total := range totals {
		res.configBuffers[idx] = newConfigBuffer(
			&fakeConfigChannel{id: action.ChannelID{Engine: 3, Index: idx}},
			idx, total, burstPad)
	}
	return res
}

func TestBurstFetchReplacesWriteRuns(t *testing.T) {
	res := testResources(t, map[uint8]uint32{0: 48, 1: 16}, false)
	op := NewOperation(action.NoneTrigger(), []action.Action{
		ccwAction(0, 4),
		ccwAction(1, 2),
		ccwAction(0, 2),
		disableLCU(0, 1),
	})

	if err := rewriteBurstFetch(op, res, false); err != nil {
		t.Fatalf("rewriteBurstFetch: %v", err)
	}

	want := []action.Type{
		action.TypeFetchCfgChannelDescriptors,
		action.TypeFetchCfgChannelDescriptors,
		action.TypeDisableLCU,
	}
	if diff := cmp.Diff(want, typesOf(op)); diff != "" {
		t.Fatalf("action types mismatch (-want +got):\n%s", diff)
	}

	// Per touched index in ascending order, one fetch per run.
	first := op.Actions[0].Params.(action.FetchCfgChannelDescriptorsParams)
	second := op.Actions[1].Params.(action.FetchCfgChannelDescriptorsParams)
	if first.ConfigIndex != 0 || second.ConfigIndex != 1 {
		t.Fatalf("fetch order = %d,%d, want 0,1", first.ConfigIndex, second.ConfigIndex)
	}
}

func TestBurstFetchAccumulatesBursts(t *testing.T) {
	res := testResources(t, map[uint8]uint32{0: 56}, true)
	op := NewOperation(action.NoneTrigger(), []action.Action{
		ccwAction(0, 4),
		ccwAction(0, 3),
	})

	if err := rewriteBurstFetch(op, res, true); err != nil {
		t.Fatalf("rewriteBurstFetch: %v", err)
	}
	if len(op.Actions) != 1 {
		t.Fatalf("actions = %v, want one burst bump", typesOf(op))
	}
	p := op.Actions[0].Params.(action.AddCCWBurstsParams)
	if p.BurstCount != 7 {
		t.Fatalf("burst count = %d, want 7", p.BurstCount)
	}
}

func TestBurstFetchIdempotent(t *testing.T) {
	res := testResources(t, map[uint8]uint32{0: 16}, false)
	op := NewOperation(action.NoneTrigger(), []action.Action{
		ccwAction(0, 2),
		disableLCU(1, 0),
	})

	if err := rewriteBurstFetch(op, res, false); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	before := typesOf(op)
	if err := rewriteBurstFetch(op, res, false); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if diff := cmp.Diff(before, typesOf(op)); diff != "" {
		t.Fatalf("second pass changed the operation (-want +got):\n%s", diff)
	}
}

func TestBurstFetchRejectsUnalignedWrite(t *testing.T) {
	res := testResources(t, map[uint8]uint32{0: 16}, false)
	op := NewOperation(action.NoneTrigger(), []action.Action{{
		Type:   action.TypeWriteDataCCW,
		Params: action.WriteDataCCWParams{ConfigIndex: 0, Data: make([]byte, 5)},
	}})

	if err := rewriteBurstFetch(op, res, false); !errors.IsKind(err, errors.KindInvalidProgram) {
		t.Fatalf("err = %v, want invalid program", err)
	}
}

func admit(stream uint8) action.Action {
	return action.Action{
		Type:   action.TypeAllowInputDataflow,
		Params: action.AllowInputDataflowParams{StreamIndex: stream, Kind: action.FlowBoundary},
	}
}

func TestPlaceActivationAnchorsAtAdmission(t *testing.T) {
	res := newContextResources(0)
	res.activation = []action.Action{{
		Type:   action.TypeOpenBoundaryInputChannel,
		Params: action.OpenBoundaryInputChannelParams{},
	}}

	op := NewOperation(action.NoneTrigger(), []action.Action{
		disableLCU(0, 0),
		admit(0),
		admit(1),
		disableLCU(0, 1),
	})

	if err := placeActivation(op, res); err != nil {
		t.Fatalf("placeActivation: %v", err)
	}

	want := []action.Type{
		action.TypeDisableLCU,
		action.TypeActivationPositionMarker,
		action.TypeOpenBoundaryInputChannel,
		action.TypeAllowInputDataflow,
		action.TypeAllowInputDataflow,
		action.TypeStartBurstCreditsTask,
		action.TypeDisableLCU,
	}
	if diff := cmp.Diff(want, typesOf(op)); diff != "" {
		t.Fatalf("placement mismatch (-want +got):\n%s", diff)
	}

	// Re-running must not duplicate the block.
	if err := placeActivation(op, res); err != nil {
		t.Fatalf("second placeActivation: %v", err)
	}
	if diff := cmp.Diff(want, typesOf(op)); diff != "" {
		t.Fatalf("second placement changed the operation (-want +got):\n%s", diff)
	}
}

func TestPlaceActivationRejectsSplitAdmission(t *testing.T) {
	res := newContextResources(0)

	op := NewOperation(action.NoneTrigger(), []action.Action{
		admit(0),
		disableLCU(0, 0),
		admit(1),
	})

	if err := placeActivation(op, res); !errors.IsKind(err, errors.KindInternal) {
		t.Fatalf("err = %v, want internal", err)
	}
}

func TestPlaceActivationRejectsMissingAdmission(t *testing.T) {
	res := newContextResources(0)

	op := NewOperation(action.NoneTrigger(), []action.Action{disableLCU(0, 0)})
	if err := placeActivation(op, res); !errors.IsKind(err, errors.KindInternal) {
		t.Fatalf("err = %v, want internal", err)
	}
}

func TestPlaceActivationRejectsOutputOnlyContext(t *testing.T) {
	res := newContextResources(0)
	res.activation = []action.Action{{
		Type:   action.TypeOpenBoundaryOutputChannel,
		Params: action.OpenBoundaryOutputChannelParams{},
	}}

	// Output-only contexts still have no admission run to anchor on.
	op := NewOperation(action.NoneTrigger(), []action.Action{disableLCU(0, 0)})
	if err := placeActivation(op, res); !errors.IsKind(err, errors.KindInternal) {
		t.Fatalf("err = %v, want internal", err)
	}
}

func TestPlaceActivationDdrCredits(t *testing.T) {
	res := newContextResources(0)
	res.ddrPairs = []DdrChannelsInfo{{
		RowSize:              512,
		MinBufferedRows:      2,
		TotalBuffersPerFrame: 8,
		DescPageSize:         device.DescPageSize,
		HostH2D:              action.HostBufferInfo{TotalDescCount: 16},
		H2D:                  action.ChannelID{Engine: 2, Index: 0},
		D2H:                  action.ChannelID{Engine: 2, Index: 1},
	}}

	op := NewOperation(action.NoneTrigger(), []action.Action{admit(3)})
	if err := placeActivation(op, res); err != nil {
		t.Fatalf("placeActivation: %v", err)
	}

	want := []action.Type{
		action.TypeActivationPositionMarker,
		action.TypeDdrPairInfo,
		action.TypeAllowInputDataflow,
		action.TypeStartBurstCreditsTask,
	}
	if diff := cmp.Diff(want, typesOf(op)); diff != "" {
		t.Fatalf("placement mismatch (-want +got):\n%s", diff)
	}

	p := op.Actions[1].Params.(action.DdrPairInfoParams)
	if p.DescriptorsPerFrame != 8 {
		t.Fatalf("descriptors per frame = %d, want 8", p.DescriptorsPerFrame)
	}
	if p.DescCount != 16 {
		t.Fatalf("desc count = %d, want 16", p.DescCount)
	}
}

func TestCompressFoldsRun(t *testing.T) {
	op := NewOperation(action.NoneTrigger(), []action.Action{
		disableLCU(0, 0),
		disableLCU(0, 1),
		disableLCU(0, 2),
		disableLCU(0, 3),
		disableLCU(0, 4),
	})

	if err := compressRepeated(op); err != nil {
		t.Fatalf("compressRepeated: %v", err)
	}

	if len(op.Actions) != 6 {
		t.Fatalf("actions = %d, want header plus 5 members", len(op.Actions))
	}
	hdr := op.Actions[0]
	if hdr.Type != action.TypeRepeated {
		t.Fatalf("first action = %s, want repeated header", hdr.Type)
	}
	p := hdr.Params.(action.RepeatedParams)
	if p.Count != 5 {
		t.Fatalf("count = %d, want 5", p.Count)
	}
	for i := 1; i < 6; i++ {
		if !op.Repeated[i] {
			t.Fatalf("member %d not flagged", i)
		}
	}

	count, err := op.wireCount()
	if err != nil {
		t.Fatalf("wireCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("wire count = %d, want 1", count)
	}
}

func TestCompressSplitsLongRun(t *testing.T) {
	acts := make([]action.Action, 300)
	for i := range acts {
		acts[i] = disableLCU(uint8(i/32), uint8(i%32))
	}
	op := NewOperation(action.NoneTrigger(), acts)

	if err := compressRepeated(op); err != nil {
		t.Fatalf("compressRepeated: %v", err)
	}

	// 300 members split into a full block of 255 and a block of 45.
	if len(op.Actions) != 302 {
		t.Fatalf("actions = %d, want 302", len(op.Actions))
	}
	first := op.Actions[0].Params.(action.RepeatedParams)
	if first.Count != device.MaxActionsPerGroup {
		t.Fatalf("first block count = %d, want %d", first.Count, device.MaxActionsPerGroup)
	}
	second := op.Actions[256].Params.(action.RepeatedParams)
	if second.Count != 45 {
		t.Fatalf("second block count = %d, want 45", second.Count)
	}
}

func TestCompressLeavesSinglesAndMixed(t *testing.T) {
	op := NewOperation(action.NoneTrigger(), []action.Action{
		disableLCU(0, 0),
		admit(0),
		// ddr admission cannot be folded, so it splits the run.
		{
			Type:   action.TypeAllowInputDataflow,
			Params: action.AllowInputDataflowParams{StreamIndex: 1, Kind: action.FlowDdr},
		},
		admit(2),
	})

	if err := compressRepeated(op); err != nil {
		t.Fatalf("compressRepeated: %v", err)
	}
	want := []action.Type{
		action.TypeDisableLCU,
		action.TypeAllowInputDataflow,
		action.TypeAllowInputDataflow,
		action.TypeAllowInputDataflow,
	}
	if diff := cmp.Diff(want, typesOf(op)); diff != "" {
		t.Fatalf("compression changed singles (-want +got):\n%s", diff)
	}
	for i, r := range op.Repeated {
		if r {
			t.Fatalf("action %d flagged without a block", i)
		}
	}
}

func TestCompressIdempotent(t *testing.T) {
	op := NewOperation(action.NoneTrigger(), []action.Action{
		disableLCU(0, 0),
		disableLCU(0, 1),
		disableLCU(0, 2),
	})

	if err := compressRepeated(op); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	before := typesOf(op)
	if err := compressRepeated(op); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if diff := cmp.Diff(before, typesOf(op)); diff != "" {
		t.Fatalf("second pass changed the operation (-want +got):\n%s", diff)
	}
}

func TestExpandDropsBlockHeaders(t *testing.T) {
	acts := []action.Action{
		disableLCU(0, 0),
		disableLCU(0, 1),
		disableLCU(0, 2),
		admit(0),
	}
	op := NewOperation(action.NoneTrigger(), append([]action.Action{}, acts...))

	if err := compressRepeated(op); err != nil {
		t.Fatalf("compressRepeated: %v", err)
	}
	if diff := cmp.Diff(acts, op.Expand()); diff != "" {
		t.Fatalf("expand mismatch (-want +got):\n%s", diff)
	}
}

func TestOperationSerializeCompressed(t *testing.T) {
	op := NewOperation(action.NoneTrigger(), []action.Action{
		disableLCU(0, 0),
		disableLCU(0, 1),
		disableLCU(0, 2),
	})
	if err := compressRepeated(op); err != nil {
		t.Fatalf("compressRepeated: %v", err)
	}

	w := binary.NewWriter()
	if err := op.serialize(w, newContextResources(0)); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	// Trigger record, u16 count of 1, block header, three 1 byte members.
	wantLen := action.TriggerSize + 2 +
		action.HeaderSize + action.RepeatedHeaderSize + 3
	if got := w.Len(); got != wantLen {
		t.Fatalf("wire length = %d, want %d", got, wantLen)
	}
}
