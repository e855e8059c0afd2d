// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

// Package sasl implements the Simple Authentication and Security Layer
// (SASL) as defined by RFC 4422, along with the mechanisms a Session needs
// during stream feature negotiation.
package sasl

import (
	"crypto/tls"
	"errors"

	"github.com/rs/zerolog"
)

// Errors returned by the mechanisms in this package.
var (
	ErrUnsupportedMechanism = errors.New("sasl: mechanism not supported by client")
)

// State represents the current state of a SASL negotiation.
type State uint8

const (
	// stateInitial is the state that a negotiator is in before Step has been
	// called for the first time.
	stateInitial State = iota

	// stateAuthenticating represents an in progress authentication.
	stateAuthenticating

	// stateValid represents a succesfully completed authentication.
	stateValid

	// stateInvalid represents a failed or aborted authentication.
	stateInvalid
)

// Mechanism represents a SASL mechanism that can be negotiated by a
// Negotiator. Start is called the first time Step is invoked, and Next is
// called for each subsequent challenge the other side of the conversation
// sends.
type Mechanism struct {
	Name string

	Start func(m *Negotiator) (more bool, resp []byte, err error)
	Next  func(m *Negotiator, challenge []byte) (more bool, resp []byte, err error)
}

// Option configures a Negotiator created with NewClient.
type Option func(*Negotiator)

// Authz sets the authorization identity used by a Negotiator.
// It is normally left blank, in which case the authentication identity is
// used.
func Authz(identity string) Option {
	return func(n *Negotiator) {
		n.authzid = identity
	}
}

// Credentials sets the authentication identity and password used by a
// Negotiator.
func Credentials(username, password string) Option {
	return func(n *Negotiator) {
		n.username = username
		n.password = password
	}
}

// RemoteMechanisms sets the list of mechanisms advertised by the remote
// side of the conversation, which some mechanisms need in order to protect
// against downgrade attacks.
func RemoteMechanisms(mechanisms ...string) Option {
	return func(n *Negotiator) {
		n.remoteMechanisms = mechanisms
	}
}

// ConnState sets the TLS connection state of the underlying connection.
// Some mechanisms use it for channel binding.
func ConnState(cs tls.ConnectionState) Option {
	return func(n *Negotiator) {
		n.connState = &cs
	}
}

// Logger sets the logger a Negotiator uses to report events such as a
// server advertising a weak SCRAM iteration count. If unset, log output
// is discarded.
func Logger(log zerolog.Logger) Option {
	return func(n *Negotiator) {
		n.log = log
	}
}

// Negotiator carries the state needed to step through a SASL mechanism one
// challenge/response at a time.
type Negotiator struct {
	mechanism Mechanism
	state     State

	authzid          string
	username         string
	password         string
	remoteMechanisms []string
	connState        *tls.ConnectionState
	log              zerolog.Logger

	// Mechanism specific scratch space.
	clientNonce []byte
	clientFirst []byte
	gs2Header   []byte
	serverSig   []byte
	scramStep   int
}

// NewClient creates a Negotiator that steps through the given client
// mechanism.
func NewClient(mechanism Mechanism, opts ...Option) *Negotiator {
	n := &Negotiator{mechanism: mechanism, state: stateInitial, log: zerolog.Nop()}
	for _, o := range opts {
		o(n)
	}
	return n
}

// State returns the negotiator's current state.
func (n *Negotiator) State() State {
	return n.state
}

// Step attempts to transition the negotiation to its next state and returns
// any response that needs to be sent to the other party. If more is false,
// the negotiation has ended (successfully or not; consult the returned
// error).
func (n *Negotiator) Step(challenge []byte) (more bool, resp []byte, err error) {
	switch n.state {
	case stateInvalid:
		return false, nil, errors.New("sasl: negotiator is in an invalid state")
	case stateInitial:
		n.state = stateAuthenticating
		more, resp, err = n.mechanism.Start(n)
	default:
		more, resp, err = n.mechanism.Next(n, challenge)
	}
	if err != nil {
		n.state = stateInvalid
		return false, nil, err
	}
	if !more {
		n.state = stateValid
	}
	return more, resp, nil
}
