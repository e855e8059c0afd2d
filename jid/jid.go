// Copyright 2014 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package jid

import (
	"encoding/xml"
	"errors"
	"net"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/precis"
)

// JID is an XMPP address (historically a "Jabber ID") as described in
// RFC 7622. A JID is comprised of a localpart, a domainpart, and a
// resourcepart: [localpart@]domainpart[/resourcepart].
//
// All parts of a JID are guaranteed to be valid UTF-8 and are stored in the
// canonical form produced by the PRECIS profiles required by RFC 7622, which
// gives comparison between two JIDs the best chance of succeeding.
//
// The zero value is not a valid JID; use Parse or MustParse to construct one.
type JID struct {
	localpart    string
	domainpart   string
	resourcepart string
}

// SplitString splits out the localpart, domainpart, and resourcepart from a
// string representation of a JID. The parts are not guaranteed to be valid,
// and each part must be 1023 bytes or less.
func SplitString(s string) (localpart, domainpart, resourcepart string, err error) {
	// RFC 7622 §3.1: match the separator characters '@' and '/' before
	// applying any normalization, since normalization could decompose
	// characters into the separators themselves.
	parts := strings.SplitAfterN(s, "/", 2)

	if strings.HasSuffix(parts[0], "/") {
		if len(parts) == 2 && parts[1] != "" {
			resourcepart = parts[1]
		} else {
			return "", "", "", errors.New("jid: resourcepart must be larger than 0 bytes")
		}
	}

	norp := strings.TrimSuffix(parts[0], "/")
	nolp := strings.SplitAfterN(norp, "@", 2)
	if nolp[0] == "@" {
		return "", "", "", errors.New("jid: localpart must be larger than 0 bytes")
	}

	switch len(nolp) {
	case 1:
		domainpart = nolp[0]
	case 2:
		domainpart = nolp[1]
		localpart = strings.TrimSuffix(nolp[0], "@")
	}

	// RFC 7622 §3.2: a trailing label separator (dot) on the domainpart is
	// stripped before any further canonicalization.
	domainpart = strings.TrimSuffix(domainpart, ".")

	return localpart, domainpart, resourcepart, nil
}

func commonChecks(localpart, domainpart, resourcepart string) error {
	if len(localpart) > 1023 {
		return errors.New("jid: localpart must be smaller than 1024 bytes")
	}
	// RFC 7622 §3.3.1 forbids these characters in the localpart even though
	// the UsernameCaseMapped profile does not.
	if strings.ContainsAny(localpart, "\"&'/:<>@") {
		return errors.New("jid: localpart contains forbidden characters")
	}
	if len(resourcepart) > 1023 {
		return errors.New("jid: resourcepart must be smaller than 1024 bytes")
	}
	if l := len(domainpart); l < 1 || l > 1023 {
		return errors.New("jid: domainpart must be between 1 and 1023 bytes")
	}
	if l := len(domainpart); l > 2 && strings.HasPrefix(domainpart, "[") && strings.HasSuffix(domainpart, "]") {
		if ip := net.ParseIP(domainpart[1 : l-1]); ip == nil || ip.To4() != nil {
			return errors.New("jid: domainpart is not a valid IPv6 literal")
		}
	}
	return nil
}

// Parse constructs a JID from its string representation.
func Parse(s string) (*JID, error) {
	localpart, domainpart, resourcepart, err := SplitString(s)
	if err != nil {
		return nil, err
	}
	return FromParts(localpart, domainpart, resourcepart)
}

// MustParse is like Parse except that it panics on error. It is intended for
// use during program initialization and in tests.
func MustParse(s string) *JID {
	j, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return j
}

// FromParts constructs a JID from a localpart, domainpart, and resourcepart,
// applying the normalization required by RFC 7622 §3.2/§3.3 to each part.
func FromParts(localpart, domainpart, resourcepart string) (*JID, error) {
	if !utf8.ValidString(localpart) || !utf8.ValidString(resourcepart) {
		return nil, errors.New("jid: contains invalid UTF-8")
	}

	// RFC 7622 §3.2.1: domainpart preparation converts any A-labels to
	// U-labels.
	domainpart, err := idna.ToUnicode(domainpart)
	if err != nil {
		return nil, err
	}
	if !utf8.ValidString(domainpart) {
		return nil, errors.New("jid: domainpart contains invalid UTF-8")
	}

	if localpart != "" {
		localpart, err = precis.UsernameCaseMapped.String(localpart)
		if err != nil {
			return nil, err
		}
	}
	if resourcepart != "" {
		resourcepart, err = precis.OpaqueString.String(resourcepart)
		if err != nil {
			return nil, err
		}
	}

	if err := commonChecks(localpart, domainpart, resourcepart); err != nil {
		return nil, err
	}

	return &JID{localpart: localpart, domainpart: domainpart, resourcepart: resourcepart}, nil
}

// Localpart returns the localpart of the JID, if any (e.g. "username").
func (j *JID) Localpart() string {
	if j == nil {
		return ""
	}
	return j.localpart
}

// Domainpart returns the domainpart of the JID (e.g. "example.net").
func (j *JID) Domainpart() string {
	if j == nil {
		return ""
	}
	return j.domainpart
}

// Resourcepart returns the resourcepart of the JID, if any.
func (j *JID) Resourcepart() string {
	if j == nil {
		return ""
	}
	return j.resourcepart
}

// Bare returns a copy of the JID without its resourcepart.
func (j *JID) Bare() *JID {
	if j == nil {
		return nil
	}
	return &JID{localpart: j.localpart, domainpart: j.domainpart}
}

// Domain returns a copy of the JID containing only the domainpart.
func (j *JID) Domain() *JID {
	if j == nil {
		return nil
	}
	return &JID{domainpart: j.domainpart}
}

// WithResource returns a copy of the JID with its resourcepart replaced.
// The new resourcepart is normalized as described in RFC 7622 §3.3.
func (j *JID) WithResource(resourcepart string) (*JID, error) {
	return FromParts(j.Localpart(), j.Domainpart(), resourcepart)
}

// Equal reports whether j and other refer to the same address after
// normalization. A nil receiver is only equal to another nil JID.
func (j *JID) Equal(other *JID) bool {
	if j == nil || other == nil {
		return j == other
	}
	return j.localpart == other.localpart &&
		j.domainpart == other.domainpart &&
		j.resourcepart == other.resourcepart
}

// Network implements net.Addr so a *JID can be passed anywhere a network
// address is expected (eg. discover.LookupService). It always returns
// "xmpp".
func (j *JID) Network() string {
	return "xmpp"
}

// String returns the string representation of the JID, as described in
// RFC 7622 §3.5.
func (j *JID) String() string {
	if j == nil {
		return ""
	}
	s := j.domainpart
	if j.localpart != "" {
		s = j.localpart + "@" + s
	}
	if j.resourcepart != "" {
		s = s + "/" + j.resourcepart
	}
	return s
}

// MarshalXMLAttr satisfies xml.MarshalerAttr.
func (j *JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if j == nil {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalXMLAttr satisfies xml.UnmarshalerAttr.
func (j *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		return nil
	}
	parsed, err := Parse(attr.Value)
	if err != nil {
		return err
	}
	*j = *parsed
	return nil
}
