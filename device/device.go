package device

import "fmt"

// Arch identifies a hardware generation of the accelerator.
type Arch uint8

const (
	ArchUnknown Arch = iota
	ArchA10          // first generation: sequencer hardware, no burst prefetch
	ArchA10L         // cut-down A10: fewer clusters, same control interface
	ArchM20          // second generation: burst prefetch engine, no sequencer
)

func (a Arch) String() string {
	switch a {
	case ArchA10:
		return "a10"
	case ArchA10L:
		return "a10l"
	case ArchM20:
		return "m20"
	default:
		return fmt.Sprintf("arch(%d)", uint8(a))
	}
}

// ParseArch maps a descriptor-file architecture name to its Arch value.
func ParseArch(s string) (Arch, bool) {
	switch s {
	case "a10":
		return ArchA10, true
	case "a10l":
		return ArchA10L, true
	case "m20":
		return ArchM20, true
	default:
		return ArchUnknown, false
	}
}

// Caps describes what the control interface of an architecture can do.
type Caps struct {
	// Sequencer reports whether the cluster configuration sequencer
	// exists on this generation. Sequencer actions are rejected when false.
	Sequencer bool

	// BurstPrefetch reports whether the config DMA engine can prefetch
	// bursts of configuration words. Without it the compiler falls back
	// to explicit descriptor programming per fetch.
	BurstPrefetch bool
}

var capsTable = map[Arch]Caps{
	ArchA10:  {Sequencer: true, BurstPrefetch: false},
	ArchA10L: {Sequencer: true, BurstPrefetch: false},
	ArchM20:  {Sequencer: false, BurstPrefetch: true},
}

// CapsOf returns the capability set of an architecture. Unknown
// architectures get the empty capability set.
func (a Arch) CapsOf() Caps {
	return capsTable[a]
}

// Fixed limits of the control protocol. All of these cross the wire in
// narrow fields and are a compatibility contract with firmware.
const (
	// MaxDynamicContexts bounds the dynamic context count of one program.
	MaxDynamicContexts = 64

	// MaxActionsPerGroup is the widest count a repeated-group header can
	// carry; the field is a single byte.
	MaxActionsPerGroup = 255

	// EngineShift is the bit position of the engine index inside a packed
	// channel-id byte; the channel index occupies the low bits.
	EngineShift = 5

	// ClusterShift is the bit position of the cluster index inside a
	// packed LCU-id byte.
	ClusterShift = 5

	// DescPageSize is the size of one DMA descriptor page in bytes.
	DescPageSize = 512

	// CCWWordSize is the size of one configuration word on the config bus.
	CCWWordSize = 8
)

// LCU enable defaults. An enable action whose kernel-done parameters equal
// these collapses to the short wire form.
const (
	DefaultKernelDoneAddress uint16 = 0x640
	DefaultKernelDoneCount   uint32 = 1
)

// MaxPeriphBytesPerBuffer is the widest per-buffer byte count the stream
// peripheral registers can hold for the given architecture. Hardware
// padding is disabled for layers wider than this.
func MaxPeriphBytesPerBuffer(a Arch) uint32 {
	// The periph register block stores this as u16 on every shipped
	// generation.
	return 0xFFFF
}
