// Package ns provides namespace constants used by the xmpp package and its
// subpackages.
package ns // import "goxmpp.dev/xmpp/internal/ns"

// List of namespaces used during stream negotiation and stanza handling.
const (
	Client   = "jabber:client"
	Server   = "jabber:server"
	Stream   = "http://etherx.jabber.org/streams"
	Bind     = "urn:ietf:params:xml:ns:xmpp-bind"
	SASL     = "urn:ietf:params:xml:ns:xmpp-sasl"
	StartTLS = "urn:ietf:params:xml:ns:xmpp-tls"
	Stanza   = "urn:ietf:params:xml:ns:xmpp-stanzas"
	Ping     = "urn:xmpp:ping"
	XML      = "http://www.w3.org/XML/1998/namespace"
)
