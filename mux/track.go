// Copyright 2020 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package mux

import (
	"encoding/xml"
	"sync"

	"mellium.im/xmlstream"
	"goxmpp.dev/xmpp/stanza"
)

// IQTracker correlates outbound IQs with the eventual "result" or "error"
// response bearing the same id (RFC 6120 §8.2.3). A Session's Serve loop
// dispatches each inbound result/error IQ to the tracker's HandleIQ, which
// wakes whichever caller is waiting on that id; a request with no
// registered id falls through to the usual service-unavailable/dropped
// fallback behavior.
type IQTracker struct {
	mu      sync.Mutex
	pending map[string]chan IQResult
}

// IQResult is the eventual outcome of a tracked IQ: either IQ is a
// "result" IQ and Err is nil, or Err holds the stanza.Error unmarshaled
// from an "error" IQ (or a decode failure).
type IQResult struct {
	IQ  stanza.IQ
	Err error
}

// NewIQTracker allocates an IQTracker.
func NewIQTracker() *IQTracker {
	return &IQTracker{pending: make(map[string]chan IQResult)}
}

// Track registers id so that the next result or error IQ with that id
// handled by the tracker is delivered on the returned channel instead of
// falling through to the default handler. The caller must eventually call
// the returned cancel func (whether or not a result arrived) to release
// the entry and avoid leaking it.
func (t *IQTracker) Track(id string) (result <-chan IQResult, cancel func()) {
	ch := make(chan IQResult, 1)
	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}
}

// HandleIQ implements IQHandler. Register it with ResultIQ and ErrorIQ so
// that every "result"/"error" IQ is checked against the pending table
// before anything else sees it.
func (t *IQTracker) HandleIQ(iq stanza.IQ, tr xmlstream.TokenReadEncoder, start *xml.StartElement) error {
	t.mu.Lock()
	ch, ok := t.pending[iq.ID]
	if ok {
		delete(t.pending, iq.ID)
	}
	t.mu.Unlock()
	if !ok {
		return iqFallback(iq, tr, start)
	}

	res := IQResult{IQ: iq}
	if iq.Type == stanza.ErrorIQ {
		stanzaErr := stanza.Error{}
		if start != nil {
			if err := xml.NewTokenDecoder(tr).DecodeElement(&stanzaErr, start); err != nil {
				res.Err = err
			} else {
				res.Err = stanzaErr
			}
		} else {
			res.Err = stanzaErr
		}
	}
	ch <- res
	return nil
}
