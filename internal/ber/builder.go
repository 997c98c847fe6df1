package ber

import "errors"

// ErrUnbalancedFrame is returned when End* is called without a matching
// Begin*, or the supplied position token does not match the open frame.
var ErrUnbalancedFrame = errors.New("ber: unbalanced begin/end")

// frame holds the parent buffer and tag metadata for a constructed value
// whose length is not yet known because its contents are still being
// written.
type frame struct {
	parent      []byte
	class       int
	constructed int
	number      int
}

// beginConstructed suspends the current buffer, pushing it (along with the
// tag that will eventually wrap it) onto the frame stack, and starts a fresh
// buffer for the nested content. The returned position identifies the frame
// and must be passed to the matching End call.
func (e *BEREncoder) beginConstructed(class, number int) int {
	e.stack = append(e.stack, frame{
		parent:      e.buf,
		class:       class,
		constructed: TypeConstructed,
		number:      number,
	})
	e.buf = make([]byte, 0, 64)
	return len(e.stack) - 1
}

// endConstructed closes the frame opened at pos: it writes the frame's tag
// and the now-known length of its accumulated content into the parent
// buffer, followed by the content itself, and restores the parent buffer as
// current.
func (e *BEREncoder) endConstructed(pos int) error {
	if pos < 0 || pos != len(e.stack)-1 {
		return ErrUnbalancedFrame
	}

	content := e.buf
	f := e.stack[pos]
	e.stack = e.stack[:pos]
	e.buf = f.parent

	if err := e.WriteTag(f.class, f.constructed, f.number); err != nil {
		return err
	}
	if err := e.WriteLength(len(content)); err != nil {
		return err
	}
	e.buf = append(e.buf, content...)
	return nil
}

// BeginSequence starts a universal SEQUENCE. Writes issued after this call
// become the sequence's contents until the matching EndSequence.
func (e *BEREncoder) BeginSequence() int {
	return e.beginConstructed(ClassUniversal, TagSequence)
}

// EndSequence closes the SEQUENCE opened at pos.
func (e *BEREncoder) EndSequence(pos int) error {
	return e.endConstructed(pos)
}

// BeginSet starts a universal SET.
func (e *BEREncoder) BeginSet() int {
	return e.beginConstructed(ClassUniversal, TagSet)
}

// EndSet closes the SET opened at pos.
func (e *BEREncoder) EndSet(pos int) error {
	return e.endConstructed(pos)
}

// WriteApplicationTag starts an APPLICATION-class tagged value, such as an
// LDAP protocolOp. The constructed flag matches the LDAP operation shape:
// most operations are constructed SEQUENCEs, but a handful (UnbindRequest,
// AbandonRequest, DelRequest) are primitive.
func (e *BEREncoder) WriteApplicationTag(number int, constructed bool) int {
	if !constructed {
		e.stack = append(e.stack, frame{
			parent:      e.buf,
			class:       ClassApplication,
			constructed: TypePrimitive,
			number:      number,
		})
		e.buf = make([]byte, 0, 64)
		return len(e.stack) - 1
	}
	return e.beginConstructed(ClassApplication, number)
}

// EndApplicationTag closes the APPLICATION tag opened at pos.
func (e *BEREncoder) EndApplicationTag(pos int) error {
	return e.endConstructed(pos)
}

// WriteContextTag starts a context-specific tagged value, such as an LDAP
// controls envelope or a filter choice.
func (e *BEREncoder) WriteContextTag(number int, constructed bool) int {
	if !constructed {
		e.stack = append(e.stack, frame{
			parent:      e.buf,
			class:       ClassContextSpecific,
			constructed: TypePrimitive,
			number:      number,
		})
		e.buf = make([]byte, 0, 64)
		return len(e.stack) - 1
	}
	return e.beginConstructed(ClassContextSpecific, number)
}

// EndContextTag closes the context tag opened at pos.
func (e *BEREncoder) EndContextTag(pos int) error {
	return e.endConstructed(pos)
}
