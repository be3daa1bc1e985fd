package action

import "fmt"

// TriggerKind discriminates the condition under which an operation's
// actions execute.
type TriggerKind uint8

const (
	TriggerNone TriggerKind = iota
	TriggerInputStreamReceived
	TriggerOutputStreamSent
	TriggerLCU
	TriggerNms
	TriggerDmaIdle
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerNone:
		return "none"
	case TriggerInputStreamReceived:
		return "input_stream_received"
	case TriggerOutputStreamSent:
		return "output_stream_sent"
	case TriggerLCU:
		return "lcu"
	case TriggerNms:
		return "nms"
	case TriggerDmaIdle:
		return "dma_idle"
	default:
		return fmt.Sprintf("trigger(%d)", uint8(k))
	}
}

// Trigger is a tagged variant; only the fields of the active kind are
// meaningful. Serialized as a fixed 7 byte record.
type Trigger struct {
	Kind    TriggerKind
	Stream  uint8    // input/output stream and dma-idle kinds
	Cluster uint8    // lcu kind
	LCU     uint8    // lcu kind
	Nms     [6]uint8 // nms kind
}

func NoneTrigger() Trigger {
	return Trigger{Kind: TriggerNone}
}

// InputStreamTrigger fires once all data for the stream has been received.
func InputStreamTrigger(stream uint8) Trigger {
	return Trigger{Kind: TriggerInputStreamReceived, Stream: stream}
}

// OutputStreamTrigger fires once all data for the stream has been sent.
func OutputStreamTrigger(stream uint8) Trigger {
	return Trigger{Kind: TriggerOutputStreamSent, Stream: stream}
}

func LCUTrigger(cluster, lcu uint8) Trigger {
	return Trigger{Kind: TriggerLCU, Cluster: cluster, LCU: lcu}
}

func NmsTrigger(indices [6]uint8) Trigger {
	return Trigger{Kind: TriggerNms, Nms: indices}
}

func DmaIdleTrigger(stream uint8) Trigger {
	return Trigger{Kind: TriggerDmaIdle, Stream: stream}
}
