// Package resource provides the in-memory channel allocator behind the
// compiler's resource interface.
//
// A compile leases DMA channels, registers hand-off buffers and streams
// configuration words through this package. The local allocator models
// the device's engine pools without touching hardware, which makes it the
// backend for offline compilation and for tests.
//
// # Channel Pools
//
// Channels live in per-engine free lists:
//
//	alloc := resource.NewLocalAllocator()
//	lease, err := alloc.AcquireChannel(key, engineHint)
//	defer lease.Release()
//
// A lease pins one (engine, index) pair. The hinted engine is tried
// first; a dry pool falls through to the next engine. Releasing returns
// the index to its pool.
//
// # Buffer Registries
//
// Inter-context and ddr buffers are created by the producing context and
// found by the consuming one:
//
//	host, err := alloc.CreateInterContextBuffer(frameBytes, stream, ctx, name)
//	host, err = alloc.LookupInterContextBuffer(ctx, stream)
//
// # Config Channels
//
// OpenConfigChannel returns a byte-backed sink for one config stream.
// Writes accumulate; ProgramDescriptors converts the bytes written since
// the previous call into descriptor counts for fetch actions.
//
// Call Materialize once compilation finishes to release config channel
// leases, and Close to tear the allocator down.
package resource
