package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// Identity is the PKCS#12 file and password used to build a server-side
// TLS identity for a STARTTLS/implicit-TLS upgrade.
type Identity struct {
	File     string
	Password string
}

// LoadTLSConfig decodes a PKCS#12 identity file into a server tls.Config
// suitable for Transport.UpgradeTLS.
func LoadTLSConfig(id Identity) (*tls.Config, error) {
	data, err := os.ReadFile(id.File)
	if err != nil {
		return nil, fmt.Errorf("transport: reading pkcs12 file: %w", err)
	}

	key, cert, err := pkcs12.Decode(data, id.Password)
	if err != nil {
		return nil, fmt.Errorf("transport: decoding pkcs12 identity: %w", err)
	}

	chain := [][]byte{cert.Raw}
	certificate := tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        cert,
	}

	return &tls.Config{
		Certificates: []tls.Certificate{certificate},
		MinVersion:   tls.VersionTLS10,
		ClientCAs:    x509.NewCertPool(),
	}, nil
}
