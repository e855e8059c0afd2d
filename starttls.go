// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package xmpp

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"

	"goxmpp.dev/xmpp/internal/ns"
	"goxmpp.dev/xmpp/stream"
)

// ErrTLSUpgradeFailed is returned when the underlying connection does not
// implement net.Conn and therefore cannot be wrapped in a *tls.Conn.
var ErrTLSUpgradeFailed = errors.New("xmpp: the underlying connection cannot be upgraded to TLS")

// StartTLS returns a new stream feature that can be used for negotiating
// TLS (RFC 6120 §5, the TLS_NEGOTIATING state). For StartTLS to work, the
// underlying connection must support TLS (it must implement net.Conn).
// tlsConfig may be nil, in which case a minimal config using the remote
// server's domain as ServerName is used.
func StartTLS(required bool, tlsConfig *tls.Config) StreamFeature {
	return StreamFeature{
		Name:       xml.Name{Local: "starttls", Space: ns.StartTLS},
		Prohibited: Secure,
		List: func(ctx context.Context, e *xml.Encoder, start xml.StartElement) (req bool, err error) {
			if err = e.EncodeToken(start); err != nil {
				return required, err
			}
			if required {
				startRequired := xml.StartElement{Name: xml.Name{Space: "", Local: "required"}}
				if err = e.EncodeToken(startRequired); err != nil {
					return required, err
				}
				if err = e.EncodeToken(startRequired.End()); err != nil {
					return required, err
				}
			}
			if err = e.EncodeToken(start.End()); err != nil {
				return required, err
			}
			return required, e.Flush()
		},
		Parse: func(ctx context.Context, r xml.TokenReader, start *xml.StartElement) (bool, interface{}, error) {
			parsed := struct {
				XMLName  xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-tls starttls"`
				Required struct {
					XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-tls required"`
				}
			}{}
			err := xml.NewTokenDecoder(r).DecodeElement(&parsed, start)
			return parsed.Required.XMLName.Local == "required" && parsed.Required.XMLName.Space == ns.StartTLS, nil, err
		},
		Negotiate: func(ctx context.Context, session *Session, data interface{}) (mask SessionState, rw io.ReadWriter, err error) {
			if (session.state & Received) == Received {
				return mask, nil, &ProtocolError{Err: fmt.Errorf("xmpp: STARTTLS server mode is not supported")}
			}

			conn := session.Conn()
			netconn, ok := conn.Raw().(net.Conn)
			if !ok {
				return mask, nil, &TLSError{Err: ErrTLSUpgradeFailed}
			}

			conf := tlsConfig
			if conf == nil {
				conf = &tls.Config{ServerName: session.RemoteAddr().Domain().String()}
			}

			// Select starttls for negotiation.
			if _, err = fmt.Fprint(conn, `<starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'/>`); err != nil {
				return mask, nil, &NetworkError{Err: err}
			}

			// Receive a <proceed/> or <failure/> response from the server.
			t, err := session.in.d.Token()
			if err != nil {
				return mask, nil, err
			}
			tok, ok := t.(xml.StartElement)
			if !ok {
				return mask, nil, stream.RestrictedXML
			}
			switch {
			case tok.Name.Space != ns.StartTLS:
				return mask, nil, stream.UnsupportedStanzaType
			case tok.Name.Local == "proceed":
				if err = xmlSkip(session.in.d); err != nil {
					return mask, nil, stream.InvalidXML
				}
			case tok.Name.Local == "failure":
				// Failure is not an "error", it's expected behavior. Immediately
				// afterwards the server will end the stream. However, if we
				// encounter bad XML while skipping the </failure> token, return
				// that error.
				if err = xmlSkip(session.in.d); err != nil {
					return mask, nil, stream.InvalidXML
				}
				return mask, nil, &TLSError{Err: fmt.Errorf("xmpp: server refused STARTTLS")}
			default:
				return mask, nil, stream.UnsupportedStanzaType
			}

			tlsConn := tls.Client(netconn, conf)
			if err = tlsConn.HandshakeContext(ctx); err != nil {
				return mask, nil, &TLSError{Err: err}
			}
			return Secure, tlsConn, nil
		},
	}
}
