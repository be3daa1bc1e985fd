// Package actionc compiles multi-context neural network executables into
// the binary action programs a device's control firmware runs.
//
// A network executable is split into contexts: a preliminary context that
// loads configuration, then dynamic contexts executed in order for every
// inference. Each context is a list of trigger-gated operations whose
// actions configure compute units, program DMA channels and hand data
// between contexts. This module parses that metadata, wires device
// resources, rewrites the action lists and serializes them to the wire
// format.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	actionc/           Root package documentation
//	├── compiler/      Lowering driver: wiring, rewrite passes, assembly
//	├── action/        The closed action set, packing and serialization
//	├── layer/         Edge-layer classification and stream geometry
//	├── device/        Architecture capabilities and protocol limits
//	├── resource/      In-memory channel allocator
//	├── errors/        Structured error types for diagnostics
//	└── cmd/actionc/   CLI: compile, dump and browse programs
//
// # Quick Start
//
// Compile a parsed network group:
//
//	alloc := resource.NewLocalAllocator()
//	defer alloc.Close()
//
//	c, err := compiler.New(alloc, device.ArchM20)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog, err := c.Compile(group)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i, ctx := range prog.Dynamic {
//	    fmt.Printf("context %d: %d bytes\n", i, len(ctx.Image))
//	}
//
// # Error Handling
//
// Compilation failures carry a phase and a kind:
//
//	if errors.IsKind(err, errors.KindInvalidProgram) {
//	    // the input metadata violates a structural invariant
//	}
//
// Invalid programs are the caller's to fix; internal kinds indicate a bug
// in the compiler itself and include the violated invariant.
package actionc
