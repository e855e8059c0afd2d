// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package sasl

import (
	"bytes"
	"errors"
)

// Plain is the SASL PLAIN mechanism defined in RFC 4616.
var Plain = Mechanism{
	Name: "PLAIN",
	Start: func(n *Negotiator) (bool, []byte, error) {
		resp := bytes.Join([][]byte{
			[]byte(n.authzid),
			[]byte(n.username),
			[]byte(n.password),
		}, []byte{0})
		return false, resp, nil
	},
	Next: func(n *Negotiator, challenge []byte) (bool, []byte, error) {
		return false, nil, errors.New("sasl: unexpected challenge for PLAIN mechanism")
	},
}
