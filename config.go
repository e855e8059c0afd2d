// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package xmpp

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

// Default configuration values used by Build when a field is left at its
// zero value.
const (
	DefaultPort                = 5222
	DefaultDirectTLSPort       = 5223
	DefaultMaxFrameBytes       = 1 << 20 // 1 MiB
	DefaultPingIntervalS       = 60
	DefaultReconnectBaseDelayS = 1
	DefaultReconnectMaxDelayS  = 300
)

// Config represents the configuration of an XMPP session.
//
// The zero value is not ready to use; construct one with NewConfig and the
// With* options below, then call Build to obtain a validated, defaulted
// copy.
type Config struct {
	// The default language for any streams constructed using this config.
	Lang language.Tag

	// The authorization identity, and password to authenticate with.
	// Identity is used when a user wants to act on behalf of another user. For
	// instance, an admin might want to log in as another user to help them
	// troubleshoot an issue. Normally it is left blank and the localpart of the
	// Origin JID is used.
	Identity, Password string

	// Port is the TCP port to dial when no explicit host:port or SRV record
	// resolution overrides it. Defaults to DefaultPort (or DefaultDirectTLSPort
	// when DirectTLS is set).
	Port int

	// DirectTLS selects the "Direct TLS" transport variant (TLS immediately on
	// connect) instead of STARTTLS.
	DirectTLS bool

	// MaxFrameBytes caps the number of unprocessed bytes the frame decoder may
	// retain between emitted events; exceeding it is a fatal FramingOverflow.
	// Defaults to DefaultMaxFrameBytes.
	MaxFrameBytes int

	// PingIntervalS is the keepalive ping interval in seconds. Defaults to
	// DefaultPingIntervalS; Build replaces 0 with the default, so 0 does not
	// disable pings. Nothing in this module sends keepalive pings itself.
	PingIntervalS int

	// ReconnectBaseDelayS and ReconnectMaxDelayS bound the exponential backoff
	// used by callers that reconnect after a NetworkError. They default to
	// DefaultReconnectBaseDelayS and DefaultReconnectMaxDelayS.
	ReconnectBaseDelayS, ReconnectMaxDelayS int

	// Logger receives structured log events: a debug event when an IQ is sent
	// and when SASL authentication succeeds, and a warning for a low SCRAM
	// iteration count. State transitions, stream restarts and dropped late IQ
	// responses are not logged.
	// Defaults to a disabled logger (zerolog.Nop()) so logging is opt-in.
	Logger zerolog.Logger
}

// Option configures a Config constructed with NewConfig.
type Option func(*Config)

// WithTLSMode selects the STARTTLS (direct=false) or Direct TLS (direct=true)
// transport variant.
func WithTLSMode(direct bool) Option {
	return func(c *Config) {
		c.DirectTLS = direct
	}
}

// WithCredentials sets the authentication identity and password.
func WithCredentials(identity, password string) Option {
	return func(c *Config) {
		c.Identity = identity
		c.Password = password
	}
}

// WithPort overrides the default TCP port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithMaxFrameBytes overrides the frame decoder's retained-byte watermark.
func WithMaxFrameBytes(n int) Option {
	return func(c *Config) {
		c.MaxFrameBytes = n
	}
}

// WithPingInterval overrides the automatic keepalive ping interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PingIntervalS = int(d / time.Second)
	}
}

// WithReconnectDelay overrides the reconnect backoff bounds.
func WithReconnectDelay(base, max time.Duration) Option {
	return func(c *Config) {
		c.ReconnectBaseDelayS = int(base / time.Second)
		c.ReconnectMaxDelayS = int(max / time.Second)
	}
}

// WithLogger sets the logger used for structured diagnostic output.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// NewConfig creates a Config with every field at its documented default,
// then applies opts in order.
func NewConfig(opts ...Option) Config {
	c := Config{
		Port:                DefaultPort,
		MaxFrameBytes:       DefaultMaxFrameBytes,
		PingIntervalS:       DefaultPingIntervalS,
		ReconnectBaseDelayS: DefaultReconnectBaseDelayS,
		ReconnectMaxDelayS:  DefaultReconnectMaxDelayS,
		Logger:              zerolog.Nop(),
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Build validates c and fills in any zero-valued fields with their
// documented defaults, returning a copy ready to use.
func (c Config) Build() (Config, error) {
	if c.Port == 0 {
		if c.DirectTLS {
			c.Port = DefaultDirectTLSPort
		} else {
			c.Port = DefaultPort
		}
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.MaxFrameBytes < 0 {
		return c, fmt.Errorf("xmpp: MaxFrameBytes must be positive, got %d", c.MaxFrameBytes)
	}
	if c.PingIntervalS == 0 {
		c.PingIntervalS = DefaultPingIntervalS
	}
	if c.ReconnectBaseDelayS == 0 {
		c.ReconnectBaseDelayS = DefaultReconnectBaseDelayS
	}
	if c.ReconnectMaxDelayS == 0 {
		c.ReconnectMaxDelayS = DefaultReconnectMaxDelayS
	}
	if c.ReconnectMaxDelayS < c.ReconnectBaseDelayS {
		return c, fmt.Errorf("xmpp: ReconnectMaxDelayS (%d) must be >= ReconnectBaseDelayS (%d)", c.ReconnectMaxDelayS, c.ReconnectBaseDelayS)
	}
	return c, nil
}
