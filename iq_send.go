// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package xmpp

import (
	"context"
	"encoding/xml"

	"github.com/google/uuid"
	"mellium.im/xmlstream"
	"goxmpp.dev/xmpp/jid"
	"goxmpp.dev/xmpp/mux"
	"goxmpp.dev/xmpp/stanza"
)

// SendIQ writes an IQ of type typ addressed to to, wrapping payload as its
// child, using a fresh id generated by github.com/google/uuid so that
// concurrent outbound IQs never collide. It registers the id with tracker
// before writing so a reply that arrives on another goroutine's Serve loop
// between the write and the wait is never missed, then blocks until
// tracker delivers a matching reply, ctx is done, or the session's input
// stream closes.
//
// tracker must be the same *mux.IQTracker the Handler passed to Serve
// consults for ResultIQ/ErrorIQ (see mux.IQTracker).
func (s *Session) SendIQ(ctx context.Context, tracker *mux.IQTracker, typ stanza.IQType, to *jid.JID, payload xml.TokenReader) (stanza.IQ, error) {
	id := uuid.New().String()
	iq := stanza.IQ{
		XMLName: xml.Name{Local: "iq"},
		ID:      id,
		To:      to,
		From:    s.LocalAddr(),
		Type:    typ,
	}

	result, cancel := tracker.Track(id)
	defer cancel()

	s.log.Debug().Str("id", id).Str("type", string(typ)).Msg("sending IQ")
	if _, err := xmlstream.Copy(s, iq.Wrap(payload)); err != nil {
		return stanza.IQ{}, &NetworkError{Err: err}
	}
	if err := s.Flush(); err != nil {
		return stanza.IQ{}, &NetworkError{Err: err}
	}

	select {
	case res := <-result:
		return res.IQ, res.Err
	case <-ctx.Done():
		return stanza.IQ{}, &TimeoutError{Err: ctx.Err()}
	case <-s.in.ctx.Done():
		return stanza.IQ{}, ConnectionClosed
	}
}
