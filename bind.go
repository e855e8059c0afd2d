// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package xmpp

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/google/uuid"
	"goxmpp.dev/xmpp/internal/ns"
	"goxmpp.dev/xmpp/jid"
	"goxmpp.dev/xmpp/stanza"
	"goxmpp.dev/xmpp/stream"
)

const (
	bindIQServerGeneratedRP = `<iq id='%s' type='set'><bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'/></iq>`
	bindIQClientRequestedRP = `<iq id='%s' type='set'><bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'><resource>%s</resource></bind></iq>`
)

// BindResource is a stream feature implementing RFC 6120 §4.7 resource
// binding (the BINDING state). The requested resourcepart, if any, comes
// from the session's origin JID; if it has no resourcepart the server is
// asked to assign one.
func BindResource() StreamFeature {
	return StreamFeature{
		Name:       xml.Name{Space: ns.Bind, Local: "bind"},
		Necessary:  Authn,
		Prohibited: Ready,
		List: func(ctx context.Context, e *xml.Encoder, start xml.StartElement) (req bool, err error) {
			req = true
			if err = e.EncodeToken(start); err != nil {
				return req, err
			}
			if err = e.EncodeToken(start.End()); err != nil {
				return req, err
			}
			err = e.Flush()
			return req, err
		},
		Parse: func(ctx context.Context, r xml.TokenReader, start *xml.StartElement) (bool, interface{}, error) {
			parsed := struct {
				XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-bind bind"`
			}{}
			return true, nil, xml.NewTokenDecoder(r).DecodeElement(&parsed, start)
		},
		Negotiate: func(ctx context.Context, session *Session, data interface{}) (mask SessionState, rw io.ReadWriter, err error) {
			if (session.state & Received) == Received {
				return mask, nil, &ProtocolError{Err: fmt.Errorf("xmpp: resource binding in server mode is not supported")}
			}

			conn := session.Conn()
			reqID := uuid.New().String()
			if resource := session.origin.Resourcepart(); resource == "" {
				// Send a request for the server to set a resource part.
				_, err = fmt.Fprintf(conn, bindIQServerGeneratedRP, reqID)
			} else {
				// Request the provided resource part.
				_, err = fmt.Fprintf(conn, bindIQClientRequestedRP, reqID, resource)
			}
			if err != nil {
				return mask, nil, &NetworkError{Err: err}
			}
			tok, err := session.in.d.Token()
			if err != nil {
				return mask, nil, err
			}
			start, ok := tok.(xml.StartElement)
			if !ok {
				return mask, nil, stream.BadFormat
			}
			resp := struct {
				stanza.IQ
				Bind struct {
					JID *jid.JID `xml:"jid"`
				} `xml:"urn:ietf:params:xml:ns:xmpp-bind bind"`
				Err stanza.Error `xml:"error"`
			}{}
			if start.Name != (xml.Name{Space: ns.Client, Local: "iq"}) {
				return mask, nil, stream.BadFormat
			}
			if err = xml.NewTokenDecoder(session.in.d).DecodeElement(&resp, &start); err != nil {
				return mask, nil, err
			}

			switch {
			case resp.ID != reqID:
				return mask, nil, &ProtocolError{Err: stream.UndefinedCondition}
			case resp.Type == stanza.ResultIQ:
				session.origin = resp.Bind.JID
			case resp.Type == stanza.ErrorIQ:
				return mask, nil, &ProtocolError{Err: resp.Err}
			default:
				return mask, nil, &ProtocolError{Err: stanza.Error{Condition: stanza.BadRequest}}
			}
			return Ready, nil, nil
		},
	}
}
