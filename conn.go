// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpp

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"
)

// Conn wraps the io.ReadWriter backing a Session so that stream features
// negotiating a new transport layer (STARTTLS) can get at the raw
// connection, and so callers can query TLS state or set deadlines when the
// underlying stream supports it.
//
// Conn also enforces the frame decoder's max_frame_bytes cap: it counts
// bytes read since the last call to resetFrame and fails reads with
// FramingOverflow once the cap is exceeded, so a peer that never closes an
// element can't grow the decoder's retained buffer without bound.
type Conn struct {
	rw        io.ReadWriter
	maxFrame  int
	frameRead int
}

func newConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw, maxFrame: DefaultMaxFrameBytes}
}

// Read reads from the underlying connection, failing with FramingOverflow if
// doing so would grow the current frame past maxFrame bytes.
func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.rw.Read(b)
	if n > 0 {
		c.frameRead += n
		if c.maxFrame > 0 && c.frameRead > c.maxFrame {
			return n, FramingOverflow
		}
	}
	return n, err
}

// resetFrame discards the byte count accumulated for the current top-level
// element. Called once an emitted event has been fully consumed, and again
// whenever the transport is replaced (STARTTLS, SASL success) since those
// also restart the stream from scratch.
func (c *Conn) resetFrame() {
	c.frameRead = 0
}

// Write writes to the underlying connection.
func (c *Conn) Write(b []byte) (int, error) { return c.rw.Write(b) }

// Raw returns the underlying io.ReadWriter so that a feature negotiating a
// new transport layer can wrap it (eg. STARTTLS wrapping the raw net.Conn in
// a *tls.Conn).
func (c *Conn) Raw() io.ReadWriter { return c.rw }

type tlsStater interface {
	ConnectionState() tls.ConnectionState
}

// ConnectionState returns the TLS connection state of the underlying
// connection and true, or the zero value and false if the connection has
// not been secured with TLS.
func (c *Conn) ConnectionState() (tls.ConnectionState, bool) {
	if tc, ok := c.rw.(tlsStater); ok {
		return tc.ConnectionState(), true
	}
	return tls.ConnectionState{}, false
}

var errSetDeadline = errors.New("xmpp: cannot set deadline: not using a net.Conn")

// SetDeadline sets the read and write deadlines on the underlying
// connection, if it is a net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	if conn, ok := c.rw.(net.Conn); ok {
		return conn.SetDeadline(t)
	}
	return errSetDeadline
}

// SetReadDeadline sets the read deadline on the underlying connection, if it
// is a net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	if conn, ok := c.rw.(net.Conn); ok {
		return conn.SetReadDeadline(t)
	}
	return errSetDeadline
}

// SetWriteDeadline sets the write deadline on the underlying connection, if
// it is a net.Conn.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	if conn, ok := c.rw.(net.Conn); ok {
		return conn.SetWriteDeadline(t)
	}
	return errSetDeadline
}
