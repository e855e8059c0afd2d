// Copyright 2020 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package mux_test

import (
	"encoding/xml"
	"testing"

	"mellium.im/xmlstream"
	"goxmpp.dev/xmpp/mux"
	"goxmpp.dev/xmpp/stanza"
)

func TestIQTrackerDeliversResult(t *testing.T) {
	tracker := mux.NewIQTracker()
	result, cancel := tracker.Track("req1")
	defer cancel()

	iq := stanza.IQ{ID: "req1", Type: stanza.ResultIQ}
	err := tracker.HandleIQ(iq, testReadEncoder{xmlstream.Wrap(nil, xml.StartElement{})}, nil)
	if err != nil {
		t.Fatalf("unexpected error handling tracked result: %v", err)
	}

	select {
	case res := <-result:
		if res.IQ.ID != "req1" {
			t.Fatalf("got id %q, want %q", res.IQ.ID, "req1")
		}
		if res.Err != nil {
			t.Fatalf("unexpected error on result IQ: %v", res.Err)
		}
	default:
		t.Fatal("no result delivered")
	}
}

func TestIQTrackerDeliversError(t *testing.T) {
	tracker := mux.NewIQTracker()
	result, cancel := tracker.Track("req2")
	defer cancel()

	iq := stanza.IQ{ID: "req2", Type: stanza.ErrorIQ}
	err := tracker.HandleIQ(iq, testReadEncoder{xmlstream.Wrap(nil, xml.StartElement{})}, nil)
	if err != nil {
		t.Fatalf("unexpected error handling tracked error: %v", err)
	}

	select {
	case res := <-result:
		if res.Err == nil {
			t.Fatal("expected a non-nil error for an error IQ")
		}
	default:
		t.Fatal("no result delivered")
	}
}

func TestIQTrackerFallsThroughWhenUntracked(t *testing.T) {
	tracker := mux.NewIQTracker()
	iq := stanza.IQ{ID: "unknown", Type: stanza.GetIQ}
	err := tracker.HandleIQ(iq, testReadEncoder{xmlstream.Wrap(nil, xml.StartElement{})}, nil)
	if err != nil {
		t.Fatalf("unexpected error from fallback: %v", err)
	}
}

func TestIQTrackerCancel(t *testing.T) {
	tracker := mux.NewIQTracker()
	_, cancel := tracker.Track("req3")
	cancel()

	// After cancel, the id is no longer tracked, so a late reply falls
	// through to the default handler instead of blocking forever on a
	// channel nobody is reading.
	iq := stanza.IQ{ID: "req3", Type: stanza.ResultIQ}
	if err := tracker.HandleIQ(iq, testReadEncoder{xmlstream.Wrap(nil, xml.StartElement{})}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
