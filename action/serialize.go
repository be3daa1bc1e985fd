package action

import (
	"github.com/tensorlane/actionc/internal/binary"
	"github.com/tensorlane/actionc/errors"
)

// Header sizes in bytes. The repeated-block profitability threshold in the
// compression rewrite is derived from these two values; change one and the
// other site must be revisited.
const (
	HeaderSize         = 5 // u32 wire tag + u8 is-repeated flag
	RepeatedHeaderSize = 3 // u8 sub tag + u8 last-executed + u8 count
	TriggerSize        = 7 // u8 kind + 6 payload bytes
)

// Resolver supplies channel identities that are only known after wiring.
// Stream-addressed actions look their channel up here at serialize time.
type Resolver interface {
	ResolveStream(stream uint8) (ChannelID, error)
	ResolveConfigChannel(configIndex uint8) (ChannelID, error)
}

// Serialize encodes one action: the 5 byte header followed by the variant's
// packed parameter record. Members of a repeated block (inRepeated true)
// emit only their parameter record; their tag lives in the shared block
// header, which is where the compression saving comes from. The none action
// and raw CCW writes return nil bytes.
func Serialize(a Action, res Resolver, inRepeated bool) ([]byte, error) {
	switch a.Type {
	case TypeNone, TypeWriteDataCCW:
		return nil, nil
	}

	tag, ok := a.Type.WireTag()
	if !ok {
		return nil, errors.Internal(errors.PhaseSerialize, "no wire tag for %s", a.Type)
	}

	w := binary.NewWriter()
	if !inRepeated {
		w.U32(tag)
		w.Bool(a.Type == TypeRepeated)
	}

	switch p := a.Params.(type) {
	case ActivateConfigChannelParams:
		w.Byte(p.ConfigIndex)
		w.Byte(p.Channel.Pack())
		writeHostBuffer(w, p.Host)

	case DeactivateConfigChannelParams:
		w.Byte(p.ConfigIndex)
		w.Byte(p.Channel.Pack())

	case FetchCfgChannelDescriptorsParams:
		ch, err := res.ResolveConfigChannel(p.ConfigIndex)
		if err != nil {
			return nil, err
		}
		w.Byte(ch.Pack())
		w.U16(p.DescCount)

	case AddCCWBurstsParams:
		w.Byte(p.ConfigIndex)
		w.U16(p.BurstCount)

	case StartBurstCreditsTaskParams,
		ResetBurstCreditsTaskParams,
		WaitForNetworkGroupChangeParams,
		StartDdrBufferingTaskParams,
		ResetDdrBufferingTaskParams,
		ActivationPositionMarkerParams:
		// no payload

	case RepeatedParams:
		w.Byte(p.SubTag)
		w.Byte(0) // last executed, firmware-owned
		w.Byte(p.Count)

	case DisableLCUParams:
		w.Byte(PackLCU(p.Cluster, p.LCU))

	case WaitForLCUParams:
		w.Byte(PackLCU(p.Cluster, p.LCU))

	case EnableLCUParams:
		w.Byte(PackLCU(p.Cluster, p.LCU))
		if a.Type == TypeEnableLCUNonDefault {
			w.U16(p.KernelDoneAddress)
			w.U32(p.KernelDoneCount)
		}
		w.Byte(p.NetworkIndex)

	case EnableSequencerParams:
		w.Byte(p.Cluster)
		w.U16(p.InitialL3Cut)
		w.U16(p.InitialL3Offset)
		w.U32(p.ActiveApu)
		w.U32(p.ActiveIA)
		w.U64(p.ActiveSC)
		w.U64(p.ActiveL2)
		w.U32(p.L2Offset0)
		w.U32(p.L2Offset1)

	case WaitForSequencerParams:
		w.Byte(p.Cluster)

	case AllowInputDataflowParams:
		w.Byte(p.StreamIndex)
		w.Byte(uint8(p.Kind))

	case WaitForModuleConfigDoneParams:
		w.Byte(p.ModuleIndex)

	case DdrPairInfoParams:
		w.Byte(p.H2D.Pack())
		w.Byte(p.D2H.Pack())
		w.U32(p.DescriptorsPerFrame)
		w.U16(p.DescCount)

	case ChangeDmaStreamMappingParams:
		w.Byte(p.Channel.Pack())
		w.Byte(p.StreamIndex)
		w.Bool(p.IsDummy)

	case WaitOutputTransferDoneParams:
		ch, err := res.ResolveStream(p.StreamIndex)
		if err != nil {
			return nil, err
		}
		w.Byte(ch.Pack())

	case OpenBoundaryInputChannelParams:
		w.Byte(p.Channel.Pack())
		writeHostBuffer(w, p.Host)

	case OpenBoundaryOutputChannelParams:
		w.Byte(p.Channel.Pack())
		writeHostBuffer(w, p.Host)

	case ActivateBoundaryInputChannelParams:
		w.Byte(p.Channel.Pack())
		w.Byte(p.StreamIndex)
		w.Byte(p.NetworkIndex)
		writeHostBuffer(w, p.Host)
		writeStreamReg(w, p.StreamReg)
		w.U32(p.InitialCredit)

	case ActivateBoundaryOutputChannelParams:
		w.Byte(p.Channel.Pack())
		w.Byte(p.StreamIndex)
		w.Byte(p.NetworkIndex)
		writeHostBuffer(w, p.Host)
		writeStreamReg(w, p.StreamReg)

	case ActivateInterContextInputChannelParams:
		w.Byte(p.Channel.Pack())
		w.Byte(p.StreamIndex)
		w.Byte(p.NetworkIndex)
		writeHostBuffer(w, p.Host)
		writeStreamReg(w, p.StreamReg)
		w.U32(p.InitialCredit)

	case ActivateInterContextOutputChannelParams:
		w.Byte(p.Channel.Pack())
		w.Byte(p.StreamIndex)
		w.Byte(p.NetworkIndex)
		writeHostBuffer(w, p.Host)
		writeStreamReg(w, p.StreamReg)

	case ActivateDdrInputChannelParams:
		w.Byte(p.Channel.Pack())
		w.Byte(p.StreamIndex)
		writeHostBuffer(w, p.Host)
		writeStreamReg(w, p.StreamReg)
		w.U32(p.InitialCredit)
		w.Byte(p.ConnectedD2H.Pack())

	case ActivateDdrOutputChannelParams:
		w.Byte(p.Channel.Pack())
		w.Byte(p.StreamIndex)
		writeHostBuffer(w, p.Host)
		writeStreamReg(w, p.StreamReg)
		w.U32(p.BufferedRows)

	case ValidateChannelParams:
		w.Byte(p.Channel.Pack())
		w.Byte(uint8(p.Direction))
		w.Bool(p.CheckHostEmpty)

	case DeactivateChannelParams:
		w.Byte(p.Channel.Pack())
		w.Byte(uint8(p.Direction))
		w.Bool(p.CheckHostEmpty)

	case WaitDmaIdleParams:
		ch, err := res.ResolveStream(p.StreamIndex)
		if err != nil {
			return nil, err
		}
		w.Byte(ch.Pack())
		w.Byte(p.StreamIndex)

	case WaitNmsIdleParams:
		w.Byte(p.AggregatorIndex)
		w.Byte(p.PredClusterObIndex)
		w.Byte(p.PredClusterObCluster)
		w.Byte(p.PredClusterObIface)
		w.Byte(p.SuccPrePostObIndex)
		w.Byte(p.SuccPrePostObIface)

	case EnableNmsParams:
		w.Byte(p.UnitIndex)
		w.Byte(p.NetworkIndex)
		w.U16(p.ClassCount)
		w.U16(p.BurstSize)

	case SwitchLcuBatchParams:
		w.Byte(PackLCU(p.Cluster, p.LCU))
		w.Byte(p.NetworkIndex)
		w.U32(p.KernelDoneCount)

	default:
		return nil, errors.Internal(errors.PhaseSerialize,
			"params %T do not match type %s", a.Params, a.Type)
	}

	return w.Bytes(), nil
}

// SerializeTrigger encodes a trigger as its fixed 7 byte record.
func SerializeTrigger(t Trigger) []byte {
	w := binary.NewWriter()
	w.Byte(uint8(t.Kind))
	switch t.Kind {
	case TriggerInputStreamReceived, TriggerOutputStreamSent, TriggerDmaIdle:
		w.Byte(t.Stream)
		w.Zero(5)
	case TriggerLCU:
		w.Byte(PackLCU(t.Cluster, t.LCU))
		w.Zero(5)
	case TriggerNms:
		w.WriteBytes(t.Nms[:])
	default:
		w.Zero(6)
	}
	return w.Bytes()
}

func writeHostBuffer(w *binary.Writer, h HostBufferInfo) {
	w.Byte(h.BufferType)
	w.U16(h.DescPageSize)
	w.U32(h.TotalDescCount)
	w.U32(h.BytesInPattern)
	w.U64(h.DMAAddress)
}

func writeStreamReg(w *binary.Writer, r StreamRegInfo) {
	w.U16(r.CoreBytesPerBuffer)
	w.U16(r.CoreBuffersPerFrame)
	w.U16(r.PeriphBytesPerBuffer)
	w.U16(r.PeriphBuffersPerFrame)
	w.U16(r.FeaturePadding)
	w.U16(r.BufferPadding)
	w.U16(r.BufferPaddingPayload)
}
