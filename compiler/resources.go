package compiler

import (
	"fmt"
	"sort"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/errors"
)

// streamKey addresses a wired stream channel inside one context.
type streamKey struct {
	dir    action.Direction
	stream uint8
}

// contextResources holds everything one context's wiring produced: the
// channel identities behind its streams, its config buffers, its spill
// pairs, the activation actions for its edge layers, and the ephemeral
// leases to drop when the context is done.
type contextResources struct {
	streams       map[streamKey]action.ChannelID
	configBuffers map[uint8]*ConfigBuffer
	ddrPairs      []DdrChannelsInfo
	activation    []action.Action
	teardown      []action.Action // appended to the context's last operation
	leases        []*ChannelLease // inter-context and ddr only
	index         int             // -1 for the preliminary context
}

func newContextResources(index int) *contextResources {
	return &contextResources{
		streams:       make(map[streamKey]action.ChannelID),
		configBuffers: make(map[uint8]*ConfigBuffer),
		index:         index,
	}
}

func (r *contextResources) registerStream(dir action.Direction, stream uint8, ch action.ChannelID) {
	r.streams[streamKey{dir: dir, stream: stream}] = ch
}

// ResolveStream finds the channel behind a stream index. Output streams are
// tried first; the wait actions that resolve by stream address outputs.
func (r *contextResources) ResolveStream(stream uint8) (action.ChannelID, error) {
	if ch, ok := r.streams[streamKey{dir: action.DeviceToHost, stream: stream}]; ok {
		return ch, nil
	}
	if ch, ok := r.streams[streamKey{dir: action.HostToDevice, stream: stream}]; ok {
		return ch, nil
	}
	return action.ChannelID{}, errors.NotFound(errors.PhaseSerialize,
		"stream channel", fmt.Sprintf("context %d stream %d", r.index, stream))
}

func (r *contextResources) ResolveConfigChannel(configIndex uint8) (action.ChannelID, error) {
	b, ok := r.configBuffers[configIndex]
	if !ok {
		return action.ChannelID{}, errors.NotFound(errors.PhaseSerialize,
			"config channel", fmt.Sprintf("context %d index %d", r.index, configIndex))
	}
	return b.ch.Channel(), nil
}

func (r *contextResources) configBuffer(configIndex uint8) (*ConfigBuffer, error) {
	b, ok := r.configBuffers[configIndex]
	if !ok {
		return nil, errors.Internal(errors.PhaseRewrite,
			"ccw write targets unopened config channel %d", configIndex)
	}
	return b, nil
}

// configIndexes returns the open config channel indexes in ascending order.
func (r *contextResources) configIndexes() []uint8 {
	out := make([]uint8, 0, len(r.configBuffers))
	for idx := range r.configBuffers {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// releaseEphemeral drops the inter-context and ddr leases of this context.
// Boundary leases are deliberately absent from the list; their channel
// identity is stable for the life of the program.
func (r *contextResources) releaseEphemeral() error {
	for _, l := range r.leases {
		if err := l.Release(); err != nil {
			return err
		}
	}
	r.leases = nil
	return nil
}
