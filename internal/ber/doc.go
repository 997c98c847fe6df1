// Package ber implements the subset of ASN.1 BER (ITU-T X.690) that
// LDAP messages are encoded in: definite-length TLVs over the
// universal primitives (BOOLEAN, INTEGER, OCTET STRING, NULL,
// ENUMERATED), constructed SEQUENCE/SET, and application- and
// context-specific wrappers.
//
// BEREncoder builds values append-only; constructed types open with a
// Begin*/Write*Tag call and close with the matching End* call, which
// back-fills the definite length once the content size is known:
//
//	e := ber.NewBEREncoder(256)
//	seq := e.BeginSequence()
//	e.WriteInteger(1)
//	e.WriteOctetString([]byte("cn=admin"))
//	e.EndSequence(seq)
//	wire := e.Bytes()
//
// BERDecoder reads values sequentially from a byte slice, with
// Expect*/Read*Contents pairs for descending into constructed types
// and offset-carrying errors for malformed input:
//
//	d := ber.NewBERDecoder(wire)
//	n, err := d.ExpectSequence()
//	// read exactly n content bytes
//
// ScanMessageLength supports streaming callers: given a possibly
// truncated buffer it reports the total frame size, or NeedMoreBytes
// with the minimum further bytes required, so a connection reader can
// frame messages without pre-reading whole values.
package ber
