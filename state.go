// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package xmpp

import (
	"fmt"
	"sync"
)

// ConnState enumerates the phases of RFC 6120 §4 stream negotiation a
// session moves through, independent of the SessionState bitmask (which
// tracks which feature categories have been satisfied, not which phase is
// currently in flight). ConnState exists so that callers observing a
// session mid-negotiation (for instance, from a logger or a health check)
// can tell SASL_AUTH apart from TLS_NEGOTIATING even though both are
// "not yet Ready".
type ConnState int32

const (
	// StateInitial is the zero value: a session that has not begun
	// negotiation.
	StateInitial ConnState = iota

	// StateConnecting indicates the transport is established but the opening
	// <stream:stream> has not yet been exchanged.
	StateConnecting

	// StateAwaitingFeatures indicates the client is reading or has just read
	// a <stream:features/> element and is choosing the next feature to
	// negotiate.
	StateAwaitingFeatures

	// StateTLSNegotiating indicates STARTTLS is in flight.
	StateTLSNegotiating

	// StateSASLAuth indicates SASL authentication is in flight.
	StateSASLAuth

	// StateBinding indicates resource binding is in flight.
	StateBinding

	// StateSessionActive indicates negotiation is complete and the session
	// is ready to carry stanzas (the Ready bit is set).
	StateSessionActive

	// StateClosed indicates the session has been torn down, either cleanly
	// or because of an error.
	StateClosed
)

func (c ConnState) String() string {
	switch c {
	case StateInitial:
		return "INITIAL"
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingFeatures:
		return "AWAITING_FEATURES"
	case StateTLSNegotiating:
		return "TLS_NEGOTIATING"
	case StateSASLAuth:
		return "SASL_AUTH"
	case StateBinding:
		return "BINDING"
	case StateSessionActive:
		return "SESSION_ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(c))
	}
}

// connAllowedTransitions is the transition allow-list: a state machine may
// move from a key state to any state in its value set, and nowhere else.
// StateClosed is reachable from anywhere (connection teardown can happen at
// any point) but has no outgoing transitions.
var connAllowedTransitions = map[ConnState]map[ConnState]bool{
	StateInitial:          {StateConnecting: true, StateClosed: true},
	StateConnecting:       {StateAwaitingFeatures: true, StateClosed: true},
	StateAwaitingFeatures: {
		StateAwaitingFeatures: true,
		StateTLSNegotiating:   true,
		StateSASLAuth:         true,
		StateBinding:          true,
		StateSessionActive:    true,
		StateClosed:           true,
	},
	StateTLSNegotiating: {StateAwaitingFeatures: true, StateClosed: true},
	StateSASLAuth:        {StateAwaitingFeatures: true, StateClosed: true},
	StateBinding:         {StateAwaitingFeatures: true, StateSessionActive: true, StateClosed: true},
	StateSessionActive:   {StateClosed: true},
	StateClosed:          {},
}

// connStateMachine guards a ConnState with a dedicated lock. The lock must
// never be held across I/O: callers take it only long enough to validate
// and record a transition, then release it before reading or writing the
// wire.
type connStateMachine struct {
	mu    sync.Mutex
	state ConnState
}

// Current returns the machine's current state.
func (m *connStateMachine) Current() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves the machine to "to" if that transition is allowed from
// the current state, returning a *ProtocolError otherwise. It never blocks
// on I/O.
func (m *connStateMachine) Transition(to ConnState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !connAllowedTransitions[m.state][to] {
		return &ProtocolError{Err: fmt.Errorf("xmpp: illegal connection state transition %s -> %s", m.state, to)}
	}
	m.state = to
	return nil
}

// forceClose unconditionally moves the machine to StateClosed, bypassing
// the allow-list, for use during teardown paths that must succeed even if
// the session never finished negotiating.
func (m *connStateMachine) forceClose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateClosed
}
