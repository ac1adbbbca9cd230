package wire

import (
	"encoding/base64"

	"github.com/emersion/go-sasl"
)

// Mechanism names for the credential-exchange paths. Only PLAIN is named
// by go-sasl directly; LOGIN has no constant upstream so it is declared
// locally, matching the minimal way infodancer-pop3d's own sasl.go borrows
// the library (constants only, no driven Server state machine, since
// credentials here are decoded and logged, never validated).
const (
	MechPlain = sasl.Plain
	MechLogin = "LOGIN"
)

// DecodeBase64 decodes a base64 SASL response. The caller is expected to
// log the result (and the error, if any) rather than act on it: this
// server never validates credentials.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeBase64 encodes a SASL challenge for transmission.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
