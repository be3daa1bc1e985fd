// Package action models the closed set of firmware instructions that make up
// a compiled action program, together with their triggers and their binary
// wire encoding.
//
// Every action is a tagged variant: a logical Type, a variant-specific
// parameter struct, an optional firmware wire tag, and a fixed answer to
// whether the action may be folded into a repeated block. The set is closed;
// descriptors enter through the single FromDescriptor factory and unknown
// discriminants are rejected there.
//
// Two actions never reach firmware at all: the none action and the raw
// configuration-word write. The latter exists only as input to the
// burst-fetch rewrite, which absorbs its payload into config buffers and
// replaces it with fetch actions.
package action
