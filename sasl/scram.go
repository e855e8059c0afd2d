// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package sasl

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/precis"
)

// ScramSha1 is the SCRAM-SHA-1 mechanism defined in RFC 5802.
var ScramSha1 = scramMechanism("SCRAM-SHA-1", sha1.New)

// ScramSha256 is the SCRAM-SHA-256 mechanism defined in RFC 7677.
var ScramSha256 = scramMechanism("SCRAM-SHA-256", sha256.New)

// ScramSha512 is the SCRAM-SHA-512 mechanism, using the hash function
// defined by FIPS 180-4 in place of SCRAM-SHA-1's SHA-1.
var ScramSha512 = scramMechanism("SCRAM-SHA-512", sha512.New)

func scramMechanism(name string, h func() hash.Hash) Mechanism {
	return Mechanism{
		Name: name,
		Start: func(n *Negotiator) (bool, []byte, error) {
			return scramStart(n)
		},
		Next: func(n *Negotiator, challenge []byte) (bool, []byte, error) {
			return scramNext(n, h, challenge)
		},
	}
}

// scramSaslname escapes "=" and "," as required by RFC 5802 §5.1.
func scramSaslname(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	s = strings.ReplaceAll(s, ",", "=2C")
	return s
}

func scramStart(n *Negotiator) (bool, []byte, error) {
	nonce := make([]byte, 24)
	if _, err := rand.Read(nonce); err != nil {
		return false, nil, err
	}
	n.clientNonce = make([]byte, base64.StdEncoding.EncodedLen(len(nonce)))
	base64.StdEncoding.Encode(n.clientNonce, nonce)

	var gs2Header string
	if n.authzid != "" {
		gs2Header = "n,a=" + scramSaslname(n.authzid) + ","
	} else {
		gs2Header = "n,,"
	}
	n.gs2Header = []byte(gs2Header)

	username, err := precis.UsernameCaseMapped.String(n.username)
	if err != nil {
		username = n.username
	}
	clientFirstBare := fmt.Sprintf("n=%s,r=%s", scramSaslname(username), n.clientNonce)
	n.clientFirst = []byte(clientFirstBare)
	n.scramStep = 1

	return true, append([]byte(gs2Header), clientFirstBare...), nil
}

func scramNext(n *Negotiator, h func() hash.Hash, challenge []byte) (bool, []byte, error) {
	switch n.scramStep {
	case 1:
		return scramClientFinal(n, h, challenge)
	case 2:
		return scramVerifyServer(n, challenge)
	default:
		return false, nil, errors.New("sasl: unexpected SCRAM challenge")
	}
}

func scramClientFinal(n *Negotiator, h func() hash.Hash, serverFirst []byte) (bool, []byte, error) {
	parts := strings.Split(string(serverFirst), ",")
	var nonce, salt string
	var iters int
	for _, part := range parts {
		if len(part) < 2 || part[1] != '=' {
			continue
		}
		switch part[0] {
		case 'r':
			nonce = part[2:]
		case 's':
			salt = part[2:]
		case 'i':
			var err error
			iters, err = strconv.Atoi(part[2:])
			if err != nil {
				return false, nil, fmt.Errorf("sasl: invalid SCRAM iteration count: %w", err)
			}
		case 'm':
			return false, nil, errors.New("sasl: mandatory SCRAM extension not supported")
		}
	}
	if nonce == "" || !strings.HasPrefix(nonce, string(n.clientNonce)) {
		return false, nil, errors.New("sasl: server nonce does not begin with client nonce")
	}
	if iters <= 0 {
		return false, nil, errors.New("sasl: invalid SCRAM iteration count")
	}
	const minIterations = 4096
	if iters < minIterations {
		n.log.Warn().Int("iterations", iters).Msg("server advertised a SCRAM iteration count below the recommended minimum")
	}
	decodedSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false, nil, fmt.Errorf("sasl: invalid SCRAM salt: %w", err)
	}

	password, err := precis.OpaqueString.String(n.password)
	if err != nil {
		password = n.password
	}
	saltedPassword := pbkdf2.Key([]byte(password), decodedSalt, iters, h().Size(), h)

	clientFinalWithoutProof := "c=" + base64.StdEncoding.EncodeToString(n.gs2Header) + ",r=" + nonce

	authMessage := strings.Join([]string{
		string(n.clientFirst),
		string(serverFirst),
		clientFinalWithoutProof,
	}, ",")

	clientKey := hmacSum(h, saltedPassword, []byte("Client Key"))
	storedKey := hashSum(h, clientKey)
	clientSig := hmacSum(h, storedKey, []byte(authMessage))
	clientProof := xorBytes(clientKey, clientSig)

	serverKey := hmacSum(h, saltedPassword, []byte("Server Key"))
	n.serverSig = hmacSum(h, serverKey, []byte(authMessage))

	resp := clientFinalWithoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	n.scramStep = 2
	return true, []byte(resp), nil
}

func scramVerifyServer(n *Negotiator, serverFinal []byte) (bool, []byte, error) {
	s := string(serverFinal)
	if strings.HasPrefix(s, "e=") {
		return false, nil, fmt.Errorf("sasl: SCRAM authentication failed: %s", s[2:])
	}
	if !strings.HasPrefix(s, "v=") {
		return false, nil, errors.New("sasl: malformed SCRAM server final message")
	}
	sig, err := base64.StdEncoding.DecodeString(s[2:])
	if err != nil {
		return false, nil, fmt.Errorf("sasl: invalid SCRAM server signature: %w", err)
	}
	if !hmac.Equal(sig, n.serverSig) {
		return false, nil, errors.New("sasl: server signature does not match")
	}
	return false, nil, nil
}

func hmacSum(h func() hash.Hash, key, data []byte) []byte {
	mac := hmac.New(h, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hashSum(h func() hash.Hash, data []byte) []byte {
	sum := h()
	sum.Write(data)
	return sum.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
