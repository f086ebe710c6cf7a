// Package cert generates the self-signed certificates backing the lobby's
// QUIC listener.
package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// NewPrivateKey generates a new private key.
func NewPrivateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// NewCA generates a certification authority certificate and its private key.
func NewCA() (*x509.Certificate, crypto.PrivateKey, error) {
	serialNumber, err := newSerialNumber()
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial number: %w", err)
	}

	privateKey, err := NewPrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("generate private key: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Arcade"},
			CommonName:   "Arcade Lobby CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(1, 0, 0), // 1 year
		IsCA:                  true,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	derData, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(derData)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}

	return cert, privateKey, nil
}

// NewIPCert generates a certificate for the given IP address signed by the
// given CA.
func NewIPCert(ca *x509.Certificate, caPrivateKey crypto.PrivateKey, ip net.IP, pubKey crypto.PublicKey) ([]byte, error) {
	serialNumber, err := newSerialNumber()
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		NotBefore:    time.Now(),
		NotAfter:     time.Now().AddDate(0, 0, 7), // 7 days
		KeyUsage:     x509.KeyUsageDigitalSignature,
		// Both client and server
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,

		// SANs
		IPAddresses: []net.IP{ip},
		DNSNames:    []string{"localhost"},
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, &template, ca, pubKey, caPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	return certBytes, nil
}

// SelfSigned builds a server TLS config with a fresh self-signed leaf for
// the given IP, plus the pool trusting it, for clients.
func SelfSigned(ip net.IP) (*tls.Config, *x509.CertPool, error) {
	ca, caPrivateKey, err := NewCA()
	if err != nil {
		return nil, nil, fmt.Errorf("create CA: %w", err)
	}

	privateKey, err := NewPrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("create private key: %w", err)
	}

	leaf, err := NewIPCert(ca, caPrivateKey, ip, privateKey.Public())
	if err != nil {
		return nil, nil, fmt.Errorf("create leaf certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca)

	return &tls.Config{
		Certificates: []tls.Certificate{
			{
				Certificate: [][]byte{leaf},
				PrivateKey:  privateKey,
			},
		},
	}, pool, nil
}

func newSerialNumber() (*big.Int, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, serialNumberLimit)
}
