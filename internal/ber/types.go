package ber

// Identifier-octet bit fields (X.690 §8.1.2). Class and constructed
// values are the raw masked bits, so a tag byte is composed by ORing
// one constant from each group with the tag number.
const (
	ClassUniversal       = 0x00
	ClassApplication     = 0x40
	ClassContextSpecific = 0x80
	ClassPrivate         = 0xC0

	TypePrimitive   = 0x00
	TypeConstructed = 0x20
)

// Universal tag numbers for the types LDAP's BER subset uses.
const (
	TagBoolean     = 0x01
	TagInteger     = 0x02
	TagBitString   = 0x03
	TagOctetString = 0x04
	TagNull        = 0x05
	TagOID         = 0x06
	TagEnumerated  = 0x0A
	TagUTF8String  = 0x0C
	TagSequence    = 0x10
	TagSet         = 0x11
)

// Length-octet constants (X.690 §8.1.3).
const (
	// LengthLongFormBit set in the first length octet selects long
	// form; the low 7 bits then count the following length octets.
	LengthLongFormBit = 0x80
	// MaxShortFormLength is the largest length the single-octet short
	// form can express.
	MaxShortFormLength = 127
)
