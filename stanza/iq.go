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

// Errors returned by the stanza package.
var (
	ErrNotIQ = errors.New("stanza: start element is not an IQ")
)

// IQ ("Information Query") is used as a general request-response mechanism.
// IQs are one-to-one, provide get and set semantics, and always require a
// response in the form of a result or an error.
type IQ struct {
	XMLName xml.Name `xml:"iq"`
	ID      string   `xml:"id,attr,omitempty"`
	To      *jid.JID `xml:"to,attr,omitempty"`
	From    *jid.JID `xml:"from,attr,omitempty"`
	Lang    string   `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    IQType   `xml:"type,attr"`
}

// IQType is the type of an IQ stanza.
// It should normally be one of the constants defined in this package.
type IQType string

const (
	// GetIQ is used to query another entity for information.
	GetIQ IQType = "get"

	// SetIQ is used to provide data to another entity, set new values, and
	// replace existing values.
	SetIQ IQType = "set"

	// ResultIQ is sent in response to a successful get or set IQ.
	ResultIQ IQType = "result"

	// ErrorIQ is sent to report that an error occurred during the delivery or
	// processing of a get or set IQ.
	ErrorIQ IQType = "error"
)

// MarshalXMLAttr satisfies xml.MarshalerAttr. The empty IQType is treated as
// GetIQ, since that is the only type valid without an existing request to
// respond to.
func (t IQType) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if t == "" {
		t = GetIQ
	}
	return xml.Attr{Name: name, Value: string(t)}, nil
}

// MarshalText satisfies encoding.TextMarshaler. Like MarshalXMLAttr, it treats
// the empty IQType as GetIQ.
func (t IQType) MarshalText() ([]byte, error) {
	if t == "" {
		t = GetIQ
	}
	return []byte(t), nil
}

// UnmarshalXMLAttr satisfies xml.UnmarshalerAttr.
func (t *IQType) UnmarshalXMLAttr(attr xml.Attr) error {
	*t = IQType(attr.Value)
	return nil
}

// NewIQ builds an IQ from a start element. The element's local name is not
// validated against "iq" so that the function can also be used to recover an
// IQ from a start element matched by namespace alone.
func NewIQ(start xml.StartElement) (IQ, error) {
	id, to, from, lang, typ := fromStartElement(start)
	iq := IQ{XMLName: start.Name, ID: id, Lang: lang, Type: IQType(typ)}
	var err error
	if to != "" {
		if iq.To, err = jid.Parse(to); err != nil {
			return iq, err
		}
	}
	if from != "" {
		if iq.From, err = jid.Parse(from); err != nil {
			return iq, err
		}
	}
	return iq, nil
}

// StartElement returns a copy of the IQ start element token, preserving the
// namespace of the original XML name so that IQs parsed from a jabber:server
// stream round-trip correctly. The local name is always "iq".
func (iq IQ) StartElement() xml.StartElement {
	name := iq.XMLName
	name.Local = "iq"
	return xml.StartElement{
		Name: name,
		Attr: commonAttrs(name, iq.ID, iq.To, iq.From, iq.Lang, string(iq.Type)),
	}
}

// Wrap wraps the payload in an IQ stanza.
func (iq IQ) Wrap(payload xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(payload, iq.StartElement())
}

// Result returns a copy of the IQ addressed as a "result" response (to and
// from swapped, type set to result) wrapping the given payload.
func (iq IQ) Result(payload xml.TokenReader) xml.TokenReader {
	result := IQ{
		XMLName: iq.XMLName,
		ID:      iq.ID,
		To:      iq.From,
		From:    iq.To,
		Type:    ResultIQ,
	}
	return result.Wrap(payload)
}

func fromStartElement(start xml.StartElement) (id, to, from, lang, typ string) {
	for _, a := range start.Attr {
		switch {
		case a.Name.Local == "id" && a.Name.Space == "":
			id = a.Value
		case a.Name.Local == "to" && a.Name.Space == "":
			to = a.Value
		case a.Name.Local == "from" && a.Name.Space == "":
			from = a.Value
		case a.Name.Local == "type" && a.Name.Space == "":
			typ = a.Value
		case a.Name.Local == "lang":
			lang = a.Value
		}
	}
	return id, to, from, lang, typ
}
