package compiler

import (
	"math"

	"github.com/tensorlane/actionc/action"
	"github.com/tensorlane/actionc/internal/binary"
	"github.com/tensorlane/actionc/errors"
)

// Operation is one trigger-gated action list. Repeated runs parallel to
// Actions and marks members that belong to a preceding repeated block
// header; it stays out of the actions themselves so a rewrite pass can
// re-evaluate runs without mutating action values.
type Operation struct {
	Actions  []action.Action
	Repeated []bool
	Trigger  action.Trigger
}

// NewOperation builds an operation over an already-materialized action list.
func NewOperation(trigger action.Trigger, actions []action.Action) *Operation {
	return &Operation{
		Actions:  actions,
		Repeated: make([]bool, len(actions)),
		Trigger:  trigger,
	}
}

func (op *Operation) append(acts ...action.Action) {
	op.Actions = append(op.Actions, acts...)
	op.Repeated = append(op.Repeated, make([]bool, len(acts))...)
}

// insert places acts before position at, as standalone actions.
func (op *Operation) insert(at int, acts ...action.Action) {
	op.Actions = append(op.Actions[:at], append(append([]action.Action{}, acts...), op.Actions[at:]...)...)
	op.Repeated = append(op.Repeated[:at], append(make([]bool, len(acts)), op.Repeated[at:]...)...)
}

// contains reports whether any action of type t is present.
func (op *Operation) contains(t action.Type) bool {
	for _, a := range op.Actions {
		if a.Type == t {
			return true
		}
	}
	return false
}

// Expand returns the action list with repeated-block headers removed, which
// is the list an uncompressed rendition of the operation would carry.
func (op *Operation) Expand() []action.Action {
	out := make([]action.Action, 0, len(op.Actions))
	for _, a := range op.Actions {
		if a.Type == action.TypeRepeated {
			continue
		}
		out = append(out, a)
	}
	return out
}

// wireCount is how many standalone action records the firmware will walk:
// repeated-block members ride inside their header's count and untagged
// actions emit nothing.
func (op *Operation) wireCount() (uint16, error) {
	n := 0
	for i, a := range op.Actions {
		if op.Repeated[i] {
			continue
		}
		if _, ok := a.Type.WireTag(); !ok {
			continue
		}
		n++
	}
	if n > math.MaxUint16 {
		return 0, errors.Overflow(errors.PhaseSerialize, nil, n, "uint16 action count")
	}
	return uint16(n), nil
}

// serialize appends the operation's wire image: trigger record, standalone
// action count, then every action in order.
func (op *Operation) serialize(w *binary.Writer, res action.Resolver) error {
	w.WriteBytes(action.SerializeTrigger(op.Trigger))

	count, err := op.wireCount()
	if err != nil {
		return err
	}
	w.U16(count)

	for i, a := range op.Actions {
		b, err := action.Serialize(a, res, op.Repeated[i])
		if err != nil {
			return err
		}
		w.WriteBytes(b)
	}
	return nil
}

// Context is one compiled context: its operations' wire image plus the
// channel identities the image was resolved against.
type Context struct {
	Operations []*Operation
	Image      []byte
}

func (c *Context) serialize(res action.Resolver) error {
	w := binary.NewWriter()
	w.U16(uint16(len(c.Operations)))
	for _, op := range c.Operations {
		if err := op.serialize(w, res); err != nil {
			return err
		}
	}
	c.Image = w.Bytes()
	return nil
}

// Program is the compiled executable: one optional preliminary context
// followed by the dynamic contexts in execution order.
type Program struct {
	Name        string
	Preliminary *Context
	Dynamic     []*Context
}
