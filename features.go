// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package xmpp

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"goxmpp.dev/xmpp/internal/ns"
	"goxmpp.dev/xmpp/stream"
)

// A StreamFeature represents a feature that may be selected during stream
// negotiation. Features should be stateless and usable from multiple
// goroutines unless otherwise specified.
type StreamFeature struct {
	// The XML name of the feature in the <stream:feature/> list. If a start
	// element with this name is seen while the connection is reading the
	// features list, it will trigger this StreamFeature's Parse function as a
	// callback.
	Name xml.Name

	// Bits that are required before this feature is advertised. For instance,
	// if this feature should only be advertised after the user is
	// authenticated we might set this to Authn, or if it should be advertised
	// only after the connection is authenticated and encrypted we might set
	// this to Authn|Secure.
	Necessary SessionState

	// Bits that must be off for this feature to be advertised. For instance,
	// if this feature should only be advertised before the connection is
	// authenticated (eg. if the feature performs authentication itself), we
	// might set this to Authn.
	Prohibited SessionState

	// Used to send the feature in a features list for server connections.
	List func(ctx context.Context, e *xml.Encoder, start xml.StartElement) (req bool, err error)

	// Used to parse the feature that begins with the given xml start element
	// (which should have a Name that matches this stream feature's Name).
	// Returns whether or not the feature is required, and any data that will
	// be needed if the feature is selected for negotiation (eg. the list of
	// mechanisms if the feature was SASL).
	Parse func(ctx context.Context, r xml.TokenReader, start *xml.StartElement) (req bool, data interface{}, err error)

	// Negotiate takes over the session temporarily while negotiating the
	// feature. The returned mask represents the state bits that should be
	// flipped after negotiation completes; the returned io.ReadWriter, if
	// non-nil, replaces the session's underlying transport and forces a
	// stream restart (eg. because STARTTLS or SASL wrapped the connection in
	// a new layer).
	Negotiate func(ctx context.Context, session *Session, data interface{}) (mask SessionState, rw io.ReadWriter, err error)
}

type sfData struct {
	req     bool
	data    interface{}
	feature StreamFeature
}

type streamFeaturesList struct {
	total int
	req   bool
	cache map[xml.Name]sfData
}

// negotiateFeatures reads the <stream:features/> element the peer just sent,
// parses every feature this client knows about (see the AWAITING_FEATURES
// branching rules), and negotiates one of the required features (or, if none
// are required, one of the supported ones). Features are kept in a map, so
// when several qualify which one is negotiated first is not defined.
func negotiateFeatures(ctx context.Context, s *Session, features []StreamFeature) (mask SessionState, rw io.ReadWriter, err error) {
	if (s.state & Received) == Received {
		return mask, nil, &ProtocolError{Err: fmt.Errorf("xmpp: server-mode stream feature negotiation is not supported")}
	}

	t, err := s.in.d.Token()
	if err != nil {
		return mask, nil, err
	}
	start, ok := t.(xml.StartElement)
	if !ok {
		return mask, nil, stream.BadFormat
	}
	if start.Name.Local != "features" || start.Name.Space != ns.Stream {
		return mask, nil, stream.InvalidXML
	}

	list, err := readStreamFeatures(ctx, s, features)
	switch {
	case err != nil:
		return mask, nil, err
	case list.total == 0 || len(list.cache) == 0:
		// No supported features left to negotiate: the only acceptable reason
		// is that we've already finished SASL and bind, ie. we're ready.
		return Ready, nil, nil
	}

	var selected sfData
	var found bool
	for _, v := range list.cache {
		if !list.req || v.req {
			selected = v
			found = true
			break
		}
	}
	if !found {
		return mask, nil, InvalidFeatures
	}

	if transErr := s.connState.Transition(featureConnState(selected.feature.Name)); transErr != nil {
		return mask, nil, transErr
	}

	mask, rw, err = selected.feature.Negotiate(ctx, s, selected.data)
	return mask, rw, err
}

// featureConnState maps a stream feature's element name to the
// ConnState the session enters while that feature negotiates.
func featureConnState(name xml.Name) ConnState {
	switch name.Space {
	case ns.StartTLS:
		return StateTLSNegotiating
	case ns.SASL:
		return StateSASLAuth
	case ns.Bind:
		return StateBinding
	default:
		return StateAwaitingFeatures
	}
}

func readStreamFeatures(ctx context.Context, s *Session, features []StreamFeature) (*streamFeaturesList, error) {
	byName := make(map[xml.Name]StreamFeature, len(features))
	for _, f := range features {
		byName[f.Name] = f
	}

	sf := &streamFeaturesList{cache: make(map[xml.Name]sfData)}
	for {
		t, err := s.in.d.Token()
		if err != nil {
			return nil, err
		}
		switch tok := t.(type) {
		case xml.StartElement:
			sf.total++
			s.features[tok.Name.Space+" "+tok.Name.Local] = struct{}{}
			if feature, ok := byName[tok.Name]; ok && (s.state&feature.Necessary) == feature.Necessary && (s.state&feature.Prohibited) == 0 {
				req, data, err := feature.Parse(ctx, s.in.d, &tok)
				if err != nil {
					return nil, err
				}
				sf.cache[tok.Name] = sfData{req: req, data: data, feature: feature}
				if req {
					sf.req = true
				}
				continue
			}
			if err := xmlSkip(s.in.d); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if tok.Name.Local == "features" && tok.Name.Space == ns.Stream {
				return sf, nil
			}
			return nil, stream.InvalidXML
		default:
			return nil, stream.RestrictedXML
		}
	}
}

// xmlSkip discards the remainder of an element whose start token was already
// consumed, since s.in.d is typed as an xml.TokenReader (not the concrete
// *xml.Decoder, which is what the standard library's Skip is a method of).
func xmlSkip(r xml.TokenReader) error {
	depth := 1
	for depth > 0 {
		tok, err := r.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}
