// Package errors provides structured error types for the action compiler.
//
// Errors are categorized by Phase (where in the pipeline the error occurred)
// and Kind (error category). Four kinds cover every failure mode: an invalid
// input graph, an exhausted channel allocator, an unsupported action or
// feature, and a violated internal invariant. Every error is terminal for
// the compile attempt; nothing in this package implies a retry.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseWire, errors.KindResourceExhausted).
//		Path("context 3", "stream 5").
//		Detail("no free channel on engine 1").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidProgram(errors.PhaseClassify, path, "unmatched ddr pair")
//	err := errors.Internal(errors.PhaseRewrite, "found %d input runs", n)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
