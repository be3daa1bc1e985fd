package compiler

import (
	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/device"
	"github.com/tensorlane/actionc/errors"
)

// ccwNop is one no-op configuration word.
var ccwNop = make([]byte, device.CCWWordSize)

// ConfigBuffer accumulates the raw configuration words of one config
// channel index. It tracks its running size against the precomputed total
// so it knows when the current write is the last one, which is when burst
// prefetching hardware needs the payload padded out to a descriptor page
// boundary.
type ConfigBuffer struct {
	ch       ConfigChannel
	total    uint32
	written  uint32 // payload bytes only
	pushed   uint32 // payload plus padding
	index    uint8
	burstPad bool
}

func newConfigBuffer(ch ConfigChannel, index uint8, total uint32, burstPad bool) *ConfigBuffer {
	return &ConfigBuffer{ch: ch, index: index, total: total, burstPad: burstPad}
}

// Channel is the DMA channel the buffer drains into.
func (b *ConfigBuffer) Channel() action.ChannelID {
	return b.ch.Channel()
}

// Host is the host-side descriptor list backing the channel.
func (b *ConfigBuffer) Host() action.HostBufferInfo {
	return b.ch.Host()
}

// SizeLeft is how many payload bytes are still expected.
func (b *ConfigBuffer) SizeLeft() uint32 {
	return b.total - b.written
}

// Write appends one run of configuration words. When burst prefetch is in
// use, the final write is preceded by no-op padding that rounds the channel
// total up to a descriptor page boundary, so the last pattern never shares
// its page with padding, and the finished payload is handed over for
// descriptor programming.
func (b *ConfigBuffer) Write(data []byte) error {
	if uint32(len(data)) > b.SizeLeft() {
		return errors.Internal(errors.PhaseRewrite,
			"config channel %d overflows precomputed total: %d left, %d written",
			b.index, b.SizeLeft(), len(data))
	}
	isLast := uint32(len(data)) == b.SizeLeft()

	if isLast && b.burstPad {
		if err := b.padToPageBoundary(); err != nil {
			return err
		}
	}

	if err := b.ch.Write(data); err != nil {
		return err
	}
	b.written += uint32(len(data))
	b.pushed += uint32(len(data))

	if isLast && b.burstPad {
		if _, err := b.ch.ProgramDescriptors(); err != nil {
			return err
		}
	}
	return nil
}

// padToPageBoundary runs ahead of the final write, so the residue counts
// the bytes still owed on top of what has already been pushed.
func (b *ConfigBuffer) padToPageBoundary() error {
	residue := (b.pushed + b.SizeLeft()) % device.DescPageSize
	if residue == 0 {
		return nil
	}
	pad := device.DescPageSize - residue
	if pad%device.CCWWordSize != 0 {
		return errors.Internal(errors.PhaseRewrite,
			"config channel %d payload not word aligned", b.index)
	}
	for i := uint32(0); i < pad/device.CCWWordSize; i++ {
		if err := b.ch.Write(ccwNop); err != nil {
			return err
		}
	}
	b.pushed += pad
	return nil
}

// ProgramDescriptors hands the bytes written since the previous call to the
// allocator for descriptor programming and reports the descriptor count.
func (b *ConfigBuffer) ProgramDescriptors() (uint16, error) {
	return b.ch.ProgramDescriptors()
}
