package ldap

import (
	"github.com/oba-ldap/oba/internal/ber"
)

// ParseLDAPMessage decodes one complete message envelope: the outer
// SEQUENCE, the messageID, the APPLICATION-tagged operation (captured
// raw, for the reader loop to route before anything decodes it), and the
// optional [0]-tagged controls.
func ParseLDAPMessage(data []byte) (*LDAPMessage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	d := ber.NewBERDecoder(data)
	seqLen, err := d.ExpectSequence()
	if err != nil {
		return nil, NewParseError(0, "expected SEQUENCE for LDAPMessage", err)
	}
	envelopeEnd := d.Offset() + seqLen

	id, err := d.ReadInteger()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read messageID", err)
	}
	if id < MinMessageID || id > MaxMessageID {
		return nil, ErrInvalidMessageID
	}

	op, opEnd, err := readRawOperation(d, data)
	if err != nil {
		return nil, err
	}

	msg := &LDAPMessage{MessageID: int(id), Operation: op}

	if opEnd < envelopeEnd {
		trailer := ber.NewBERDecoder(data[opEnd:envelopeEnd])
		if trailer.IsContextTag(ContextTagControls) {
			controls, err := parseControls(trailer)
			if err != nil {
				return nil, NewParseError(opEnd, "failed to parse controls", err)
			}
			msg.Controls = controls
		}
	}

	return msg, nil
}

// readRawOperation captures the protocolOp's tag and content octets
// without interpreting them, returning the offset just past the TLV.
func readRawOperation(d *ber.BERDecoder, data []byte) (*RawOperation, int, error) {
	tagStart := d.Offset()
	class, _, tag, err := d.ReadTag()
	if err != nil {
		return nil, 0, NewParseError(tagStart, "failed to read protocolOp tag", err)
	}
	if class != ber.ClassApplication {
		return nil, 0, NewParseError(tagStart, "protocolOp must have APPLICATION tag class", ErrInvalidOperation)
	}

	length, err := d.ReadLength()
	if err != nil {
		return nil, 0, NewParseError(d.Offset(), "failed to read protocolOp length", err)
	}
	start := d.Offset()
	end := start + length
	if end > len(data) {
		return nil, 0, NewParseError(start, "truncated protocolOp data", ber.ErrUnexpectedEOF)
	}

	content := make([]byte, length)
	copy(content, data[start:end])
	return &RawOperation{Tag: tag, Data: content}, end, nil
}

// parseControls reads the [0]-wrapped control list. The standard layout
// is a SEQUENCE OF Control inside the context tag; controls emitted
// without the wrapper SEQUENCE (seen from some implementations) are
// accepted too, distinguished by whether the first inner element is a
// Control's leading OID octet string or another SEQUENCE.
func parseControls(d *ber.BERDecoder) ([]Control, error) {
	wrapLen, err := d.ExpectContextTag(ContextTagControls)
	if err != nil {
		return nil, err
	}
	if wrapLen == 0 {
		return nil, nil
	}

	class, _, tag, err := d.PeekTag()
	if err != nil {
		return nil, err
	}
	if class != ber.ClassUniversal || tag != ber.TagSequence {
		return nil, NewParseError(d.Offset(), "expected SEQUENCE for controls", nil)
	}

	seqStart := d.Offset()
	seqLen, err := d.ExpectSequence()
	if err != nil {
		return nil, err
	}
	seqEnd := d.Offset() + seqLen

	if d.Remaining() > 0 {
		if innerClass, _, innerTag, perr := d.PeekTag(); perr == nil &&
			innerClass == ber.ClassUniversal && innerTag == ber.TagOctetString {
			// No wrapper: the SEQUENCE just read is itself a Control.
			d.SetOffset(seqStart)
			return parseBareControls(d)
		}
	}

	var controls []Control
	for d.Offset() < seqEnd && d.Remaining() > 0 {
		ctrl, err := parseControl(d)
		if err != nil {
			return nil, err
		}
		controls = append(controls, ctrl)
	}
	return controls, nil
}

func parseBareControls(d *ber.BERDecoder) ([]Control, error) {
	first, err := parseControl(d)
	if err != nil {
		return nil, err
	}
	controls := []Control{first}
	for d.Remaining() > 0 {
		ctrl, err := parseControl(d)
		if err != nil {
			break
		}
		controls = append(controls, ctrl)
	}
	return controls, nil
}

// parseControl reads one Control SEQUENCE: the OID, then the optional
// criticality BOOLEAN (absent means false), then the optional value.
func parseControl(d *ber.BERDecoder) (Control, error) {
	var ctrl Control

	body, err := d.ReadSequenceContents()
	if err != nil {
		return ctrl, err
	}

	oid, err := body.ReadOctetString()
	if err != nil {
		return ctrl, NewParseError(body.Offset(), "failed to read control OID", err)
	}
	ctrl.OID = string(oid)

	if nextIs(body, ber.TagBoolean) {
		critical, err := body.ReadBoolean()
		if err != nil {
			return ctrl, NewParseError(body.Offset(), "failed to read control criticality", err)
		}
		ctrl.Criticality = critical
	}

	if nextIs(body, ber.TagOctetString) {
		value, err := body.ReadOctetString()
		if err != nil {
			return ctrl, NewParseError(body.Offset(), "failed to read control value", err)
		}
		ctrl.Value = value
	}

	return ctrl, nil
}

// nextIs reports whether the decoder's next element is the given
// universal tag, without consuming it.
func nextIs(d *ber.BERDecoder, tag int) bool {
	if d.Remaining() == 0 {
		return false
	}
	class, _, got, err := d.PeekTag()
	return err == nil && class == ber.ClassUniversal && got == tag
}

// Encode serializes the envelope. The operation's content octets are
// written under its APPLICATION tag; three operations (unbind, abandon,
// delete) are primitive on the wire, the rest constructed.
func (m *LDAPMessage) Encode() ([]byte, error) {
	if m.MessageID < MinMessageID || m.MessageID > MaxMessageID {
		return nil, ErrInvalidMessageID
	}
	if m.Operation == nil {
		return nil, ErrMissingOperation
	}

	e := ber.NewBEREncoder(256)
	envelope := e.BeginSequence()

	if err := e.WriteInteger(int64(m.MessageID)); err != nil {
		return nil, err
	}

	opPos := e.WriteApplicationTag(m.Operation.Tag, isConstructedOperation(m.Operation.Tag))
	e.WriteRaw(m.Operation.Data)
	if err := e.EndApplicationTag(opPos); err != nil {
		return nil, err
	}

	if len(m.Controls) > 0 {
		if err := encodeControls(e, m.Controls); err != nil {
			return nil, err
		}
	}

	if err := e.EndSequence(envelope); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func isConstructedOperation(tag int) bool {
	switch tag {
	case ApplicationUnbindRequest, ApplicationAbandonRequest, ApplicationDelRequest:
		// NULL, INTEGER, and LDAPDN respectively: primitive.
		return false
	}
	return true
}

func encodeControls(e *ber.BEREncoder, controls []Control) error {
	wrap := e.WriteContextTag(ContextTagControls, true)
	seq := e.BeginSequence()
	for _, ctrl := range controls {
		if err := encodeControl(e, ctrl); err != nil {
			return err
		}
	}
	if err := e.EndSequence(seq); err != nil {
		return err
	}
	return e.EndContextTag(wrap)
}

func encodeControl(e *ber.BEREncoder, ctrl Control) error {
	seq := e.BeginSequence()
	if err := e.WriteOctetString([]byte(ctrl.OID)); err != nil {
		return err
	}
	// criticality is DEFAULT FALSE; DER-style omission when false.
	if ctrl.Criticality {
		if err := e.WriteBoolean(true); err != nil {
			return err
		}
	}
	if len(ctrl.Value) > 0 {
		if err := e.WriteOctetString(ctrl.Value); err != nil {
			return err
		}
	}
	return e.EndSequence(seq)
}
