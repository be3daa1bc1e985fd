// Package compiler lowers parsed network-group metadata into the binary
// action program a device's control firmware executes.
//
// A network group describes per-context edge layers and trigger-gated
// operation lists. Compilation wires every context's channels through a
// ChannelAllocator, rewrites the operation lists and serializes them into
// per-context images:
//
//	alloc := resource.NewLocalAllocator()
//	c, err := compiler.New(alloc, device.ArchM20)
//	prog, err := c.Compile(group)
//
// # Contexts
//
// The preliminary context loads configuration before the first inference;
// dynamic contexts then execute in order, once per frame. With the
// run-asap feature the preliminary context also activates the first
// dynamic context's edge layers so inference starts without waiting for a
// context switch.
//
// # Rewrite Passes
//
// Each operation passes through three rewrites, in order:
//
//   - raw configuration writes fold into config buffers and become fetch
//     actions (burst bumps on prefetching hardware, explicit descriptor
//     fetches otherwise)
//   - edge-layer activation anchors at the operation's input admission
//     point, together with spill-pair records and the credit task
//   - runs of identical repeatable actions fold into repeated blocks
//
// Every pass is idempotent, so a partially rewritten operation can be fed
// back through without corruption.
//
// # Teardown
//
// A dynamic context's last operation validates its boundary channels and
// deactivates its ephemeral ones. Single-context programs additionally end
// by waiting for a network-group change.
package compiler
