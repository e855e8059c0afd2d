// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

// Package ping implements XEP-0199: XMPP Ping.
package ping

import (
	"encoding/xml"

	"mellium.im/xmlstream"
	"goxmpp.dev/xmpp/jid"
	"goxmpp.dev/xmpp/stanza"
)

// BUG(ssw): This package does not currently provide a means of registering a
//           disco#info feature or a response handler.

const ns = `urn:xmpp:ping`

type Ping struct {
	stanza.IQ

	Ping struct{} `xml:"urn:xmpp:ping ping"`
}

// IQ returns a token stream of an XMPP ping addressed to the given JID.
func IQ(to *jid.JID) xml.TokenReader {
	return stanza.WrapIQ(to, stanza.GetIQ, xmlstream.Wrap(nil, xml.StartElement{
		Name: xml.Name{Space: ns, Local: "ping"},
	}))
}
