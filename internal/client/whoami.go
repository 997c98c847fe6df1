package client

import (
	"context"

	"github.com/oba-ldap/oba/internal/ext"
)

// WhoAmIOID is the "Who am I?" extended operation OID (RFC 4532).
const WhoAmIOID = "1.3.6.1.4.1.4203.1.11.3"

// WhoAmI is the namespace registered under the "whoami" extension name:
// conn.Extension("whoami") returns one of these, bound to the connection
// that constructed it.
type WhoAmI struct {
	conn *Connection
}

func init() {
	ext.Register("whoami", func(host any) any {
		return &WhoAmI{conn: host.(*Connection)}
	})
}

// Authzid issues the WhoAmI extended operation and returns the
// authorization identity string the server reports (an empty string for
// an anonymous bind, or "dn:..."/"u:..." per RFC 4532 §2).
func (w *WhoAmI) Authzid(ctx context.Context) (string, error) {
	resp, err := w.conn.Extended(ctx, WhoAmIOID, nil, nil)
	if err != nil {
		return "", err
	}
	return string(resp.ResponseValue), nil
}
