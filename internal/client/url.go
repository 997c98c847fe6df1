package client

import (
	"crypto/tls"
	"net"
	"net/url"

	oerrors "github.com/oba-ldap/oba/internal/errors"
)

// Default ports for the ldap:// and ldaps:// schemes.
const (
	DefaultPort    = "389"
	DefaultTLSPort = "636"
)

// DialURL opens a connection to an LDAP URI: ldap://host[:port]
// over plain TCP, ldaps://host[:port] over TLS using tlsConfig, or
// ldapi://percent-encoded-path over a Unix domain socket. tlsConfig is
// ignored for the non-TLS schemes; a nil tlsConfig with ldaps:// uses the
// crypto/tls defaults for the URI's host.
func DialURL(rawURL string, tlsConfig *tls.Config, cfg Config) (*Connection, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &oerrors.ConnectionError{Op: "parse url", Err: err}
	}

	switch u.Scheme {
	case "ldap":
		return Dial(hostPort(u, DefaultPort), cfg)

	case "ldaps":
		host := u.Hostname()
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: host}
		} else if tlsConfig.ServerName == "" {
			tlsConfig = tlsConfig.Clone()
			tlsConfig.ServerName = host
		}
		return DialTLS(hostPort(u, DefaultTLSPort), tlsConfig, cfg)

	case "ldapi":
		path, err := socketPath(u)
		if err != nil {
			return nil, err
		}
		d := net.Dialer{Timeout: cfg.DialTimeout}
		conn, err := d.Dial("unix", path)
		if err != nil {
			return nil, &oerrors.ConnectionError{Op: "dial unix", Err: oerrors.Wrap(err, "dial "+path)}
		}
		return newConnection(conn, cfg)

	default:
		return nil, &oerrors.ConnectionError{
			Op:  "parse url",
			Err: &oerrors.InvalidValue{Attribute: "scheme", Reason: "unsupported scheme " + u.Scheme},
		}
	}
}

func hostPort(u *url.URL, defaultPort string) string {
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// socketPath extracts the Unix socket path from an ldapi:// URI, where
// the path arrives percent-encoded in the host position
// ("ldapi://%2Fvar%2Frun%2Fslapd%2Fldapi") or plain in the path position
// ("ldapi:///var/run/slapd/ldapi").
func socketPath(u *url.URL) (string, error) {
	if u.Host != "" {
		path, err := url.PathUnescape(u.Host)
		if err != nil {
			return "", &oerrors.ConnectionError{Op: "parse url", Err: err}
		}
		return path, nil
	}
	if u.Path != "" {
		return u.Path, nil
	}
	return "", &oerrors.ConnectionError{
		Op:  "parse url",
		Err: &oerrors.InvalidValue{Attribute: "ldapi path", Reason: "empty socket path"},
	}
}
