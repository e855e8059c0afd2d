// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"errors"

	"mellium.im/xmlstream"
	"goxmpp.dev/xmpp/jid"
)

// Presence is an XMPP stanza that is used as an indication that an entity is
// available for communication. It is used to set a status message, broadcast
// availability, and advertise entity capabilities. It can be directed
// (one-to-one), or used as a broadcast mechanism (one-to-many).
type Presence struct {
	XMLName xml.Name     `xml:"presence"`
	ID      string       `xml:"id,attr,omitempty"`
	To      *jid.JID     `xml:"to,attr,omitempty"`
	From    *jid.JID     `xml:"from,attr,omitempty"`
	Lang    string       `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    PresenceType `xml:"type,attr,omitempty"`
}

// PresenceType is the type of a presence stanza.
// It should normally be one of the constants defined in this package.
type PresenceType string

const (
	// ErrorPresence indicates that an error has occurred regarding processing of
	// a previously sent presence stanza; if the presence stanza is of type
	// "error", it MUST include an <error/> child element
	ErrorPresence PresenceType = "error"

	// ProbePresence is a request for an entity's current presence. It should
	// generally only be generated and sent by servers on behalf of a user.
	ProbePresence PresenceType = "probe"

	// SubscribePresence is sent when the sender wishes to subscribe to the
	// recipient's presence.
	SubscribePresence PresenceType = "subscribe"

	// SubscribedPresence indicates that the sender has allowed the recipient to
	// receive future presence broadcasts.
	SubscribedPresence PresenceType = "subscribed"

	// UnavailablePresence indicates that the sender is no longer available for
	// communication.
	UnavailablePresence PresenceType = "unavailable"

	// UnsubscribePresence indicates that the sender is unsubscribing from the
	// receiver's presence.
	UnsubscribePresence PresenceType = "unsubscribe"

	// UnsubscribedPresence indicates that the subscription request has been
	// denied, or a previously granted subscription has been revoked.
	UnsubscribedPresence PresenceType = "unsubscribed"
)

// String satisfies fmt.Stringer and returns the presence type as a string.
func (t PresenceType) String() string {
	return string(t)
}

// NewPresence builds a Presence from a start element. An error is returned if
// the start element's local name is not "presence".
func NewPresence(start xml.StartElement) (Presence, error) {
	if start.Name.Local != "presence" {
		return Presence{}, errors.New("stanza: start element is not a presence")
	}
	id, to, from, lang, typ := fromStartElement(start)
	p := Presence{XMLName: start.Name, ID: id, Lang: lang, Type: PresenceType(typ)}
	var err error
	if to != "" {
		if p.To, err = jid.Parse(to); err != nil {
			return p, err
		}
	}
	if from != "" {
		if p.From, err = jid.Parse(from); err != nil {
			return p, err
		}
	}
	return p, nil
}

// StartElement returns a copy of the presence start element token.
func (p Presence) StartElement() xml.StartElement {
	name := p.XMLName
	if name.Local == "" {
		name.Local = "presence"
	}
	return xml.StartElement{
		Name: name,
		Attr: commonAttrs(name, p.ID, p.To, p.From, p.Lang, string(p.Type)),
	}
}

// Wrap wraps the payload in a presence stanza.
func (p Presence) Wrap(payload xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(payload, p.StartElement())
}
