// Copyright 2015 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"errors"

	"mellium.im/xmlstream"
	"goxmpp.dev/xmpp/jid"
)

// Message is an XMPP stanza that is a basic unit of communication between
// entities. It is used to send data that does not require a response, such
// as chat messages.
type Message struct {
	XMLName xml.Name    `xml:"message"`
	ID      string      `xml:"id,attr,omitempty"`
	To      *jid.JID    `xml:"to,attr,omitempty"`
	From    *jid.JID    `xml:"from,attr,omitempty"`
	Lang    string      `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    MessageType `xml:"type,attr,omitempty"`
}

// MessageType is the type of a message stanza.
// It should normally be one of the constants defined in this package.
type MessageType string

const (
	// NormalMessage is a standalone message sent outside the context of a
	// one-to-one conversation or groupchat, and the recipient should not
	// assume that sender is online.
	NormalMessage MessageType = "normal"

	// ChatMessage is sent in the context of a one-to-one chat session.
	ChatMessage MessageType = "chat"

	// GroupChatMessage is sent in the context of a multi-user chat.
	GroupChatMessage MessageType = "groupchat"

	// HeadlineMessage is sent in the context of a "headline" newsfeed or
	// similar broadcast, and should not be reflected in a normal conversation
	// window.
	HeadlineMessage MessageType = "headline"

	// ErrorMessage indicates that an error has occurred regarding processing
	// of a previously sent message stanza.
	ErrorMessage MessageType = "error"
)

// MarshalXMLAttr satisfies xml.MarshalerAttr, omitting the attribute for the
// empty (implicit NormalMessage) type.
func (t MessageType) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if t == "" {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: string(t)}, nil
}

// UnmarshalXMLAttr satisfies xml.UnmarshalerAttr.
func (t *MessageType) UnmarshalXMLAttr(attr xml.Attr) error {
	*t = MessageType(attr.Value)
	return nil
}

// NewMessage builds a Message from a start element. An error is returned if
// the start element's local name is not "message".
func NewMessage(start xml.StartElement) (Message, error) {
	if start.Name.Local != "message" {
		return Message{}, errors.New("stanza: start element is not a message")
	}
	id, to, from, lang, typ := fromStartElement(start)
	msg := Message{XMLName: start.Name, ID: id, Lang: lang, Type: MessageType(typ)}
	var err error
	if to != "" {
		if msg.To, err = jid.Parse(to); err != nil {
			return msg, err
		}
	}
	if from != "" {
		if msg.From, err = jid.Parse(from); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

// StartElement returns a copy of the message start element token.
func (msg Message) StartElement() xml.StartElement {
	name := msg.XMLName
	name.Local = "message"
	return xml.StartElement{
		Name: name,
		Attr: commonAttrs(name, msg.ID, msg.To, msg.From, msg.Lang, string(msg.Type)),
	}
}

// Wrap wraps the payload in a message stanza.
func (msg Message) Wrap(payload xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(payload, msg.StartElement())
}

// Reply returns a copy of the message addressed back at its sender (to and
// from swapped), preserving the type, and wrapping the given payload.
func (msg Message) Reply(payload xml.TokenReader) xml.TokenReader {
	reply := Message{
		XMLName: msg.XMLName,
		To:      msg.From,
		From:    msg.To,
		Type:    msg.Type,
	}
	return reply.Wrap(payload)
}
