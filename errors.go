// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package xmpp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conditions that the connection state machine
// treats as immediately fatal (see the Connection State Machine and SASL
// Mechanisms sections): a framing overflow, a SCRAM server signature that
// does not match, an attempt to use PLAIN over an unencrypted channel, a
// server that both requires TLS and never advertises STARTTLS, and a
// features element this client can do nothing useful with.
var (
	FramingOverflow           = errors.New("xmpp: frame exceeded max_frame_bytes")
	ServerSignatureMismatch   = errors.New("xmpp: SCRAM server signature does not match")
	InsecurePlainRefused      = errors.New("xmpp: refusing to use PLAIN over an unencrypted channel")
	TlsRequiredButUnavailable = errors.New("xmpp: TLS is required but the server does not advertise STARTTLS")
	InvalidFeatures           = errors.New("xmpp: server offered no usable combination of stream features")
	ConnectionClosed          = errors.New("xmpp: connection closed")
	ConnectionClosedOnError   = errors.New("xmpp: connection closed uncleanly")
)

// NetworkError wraps a transport-level failure: a socket error, a DNS
// failure, or a connect timeout. It is always fatal to the connection
// attempt that produced it.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("xmpp: network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// TLSError wraps a handshake or certificate-validation failure.
type TLSError struct {
	Err error
}

func (e *TLSError) Error() string { return fmt.Sprintf("xmpp: tls error: %v", e.Err) }
func (e *TLSError) Unwrap() error { return e.Err }

// AuthError wraps a SASL failure: a failure condition returned by the
// server, a server-signature mismatch, the absence of a mutually
// supported mechanism, or a refused insecure PLAIN attempt.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("xmpp: auth error: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ParseError wraps malformed XML or a framing overflow detected by the
// frame decoder.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("xmpp: parse error: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ProtocolError wraps an element received while in a state that does not
// accept it, a stream-level error sent by the server, or a resource-bind
// failure.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("xmpp: protocol error: %v", e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError wraps a pending IQ future that was completed because its
// deadline elapsed before a matching result or error stanza arrived.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("xmpp: timeout: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }
