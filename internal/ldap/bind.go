package ldap

import (
	"errors"

	"github.com/oba-ldap/oba/internal/ber"
)

// AuthenticationChoice tags (RFC 4511 §4.2): [0] simple, [3] sasl.
// Tags 1 and 2 were retired by RFC 2251 and never assigned since.
const (
	AuthSimple = 0
	AuthSASL   = 3
)

// AuthMethod names the authentication choice a BindRequest carries.
type AuthMethod int

const (
	AuthMethodSimple AuthMethod = iota
	AuthMethodSASL
)

func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimple:
		return "Simple"
	case AuthMethodSASL:
		return "SASL"
	}
	return "Unknown"
}

// SASLCredentials is the [3] SaslCredentials sequence: a mechanism name
// and the mechanism's opaque credential bytes (absent for mechanisms
// with no initial response).
type SASLCredentials struct {
	Mechanism   string
	Credentials []byte
}

// BindRequest is the [APPLICATION 0] bind operation: protocol version,
// bind DN, and one of the authentication choices. Exactly one of
// SimplePassword or SASLCredentials is meaningful, selected by
// AuthMethod.
type BindRequest struct {
	Version         int
	Name            string
	AuthMethod      AuthMethod
	SimplePassword  []byte
	SASLCredentials *SASLCredentials
}

var (
	ErrInvalidBindVersion     = errors.New("ldap: bind version must be between 1 and 127")
	ErrUnknownAuthMethod      = errors.New("ldap: unknown authentication method")
	ErrInvalidSASLCredentials = errors.New("ldap: invalid SASL credentials")
)

// Encode produces the bind request's content octets (the caller wraps
// them in the APPLICATION 0 tag at the envelope layer).
func (r *BindRequest) Encode() ([]byte, error) {
	e := ber.NewBEREncoder(128)

	if err := e.WriteInteger(int64(r.Version)); err != nil {
		return nil, err
	}
	if err := e.WriteOctetString([]byte(r.Name)); err != nil {
		return nil, err
	}

	switch r.AuthMethod {
	case AuthMethodSimple:
		if err := e.WriteTaggedValue(AuthSimple, false, r.SimplePassword); err != nil {
			return nil, err
		}

	case AuthMethodSASL:
		sasl := ber.NewBEREncoder(64)
		if err := sasl.WriteOctetString([]byte(r.SASLCredentials.Mechanism)); err != nil {
			return nil, err
		}
		if len(r.SASLCredentials.Credentials) > 0 {
			if err := sasl.WriteOctetString(r.SASLCredentials.Credentials); err != nil {
				return nil, err
			}
		}
		if err := e.WriteTaggedValue(AuthSASL, true, sasl.Bytes()); err != nil {
			return nil, err
		}

	default:
		return nil, ErrUnknownAuthMethod
	}

	return e.Bytes(), nil
}

// ParseBindRequest decodes bind-request content octets; the decode
// mirror of Encode, used by the round-trip tests and wire-level test
// servers.
func ParseBindRequest(data []byte) (*BindRequest, error) {
	if len(data) == 0 {
		return nil, NewParseError(0, "empty bind request data", nil)
	}

	d := ber.NewBERDecoder(data)
	req := &BindRequest{}

	version, err := d.ReadInteger()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read bind version", err)
	}
	if version < 1 || version > 127 {
		return nil, ErrInvalidBindVersion
	}
	req.Version = int(version)

	name, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read bind name", err)
	}
	req.Name = string(name)

	tag, constructed, auth, err := d.ReadTaggedValue()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read authentication", err)
	}

	switch tag {
	case AuthSimple:
		req.AuthMethod = AuthMethodSimple
		req.SimplePassword = auth

	case AuthSASL:
		if !constructed {
			return nil, NewParseError(d.Offset(), "SASL credentials must be constructed", ErrInvalidSASLCredentials)
		}
		creds, err := parseSASLCredentials(auth)
		if err != nil {
			return nil, err
		}
		req.AuthMethod = AuthMethodSASL
		req.SASLCredentials = creds

	default:
		return nil, NewParseError(d.Offset(), "unknown authentication method tag", ErrUnknownAuthMethod)
	}

	return req, nil
}

func parseSASLCredentials(data []byte) (*SASLCredentials, error) {
	d := ber.NewBERDecoder(data)

	mech, err := d.ReadOctetString()
	if err != nil {
		return nil, NewParseError(d.Offset(), "failed to read SASL mechanism", err)
	}
	creds := &SASLCredentials{Mechanism: string(mech)}

	if d.Remaining() > 0 {
		raw, err := d.ReadOctetString()
		if err != nil {
			return nil, NewParseError(d.Offset(), "failed to read SASL credentials", err)
		}
		creds.Credentials = raw
	}
	return creds, nil
}

// IsAnonymous reports whether this is an anonymous simple bind (empty
// name, empty password).
func (r *BindRequest) IsAnonymous() bool {
	return r.Name == "" && r.AuthMethod == AuthMethodSimple && len(r.SimplePassword) == 0
}
