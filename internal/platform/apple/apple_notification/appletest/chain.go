// Package appletest builds throwaway certificate chains shaped like the App
// Store signing chain.
package appletest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/reconciler/internal/platform/apple/apple_notification"
)

type Chain struct {
	RootPEM string
	Signer  *apple_notification.Signer
}

// NewChain returns a root, an intermediate and a leaf signer. The returned
// signer carries x5c = [leaf, intermediate, root].
func NewChain(t *testing.T) *Chain {
	t.Helper()
	now := time.Now()

	rootKey := newKey(t)
	rootTpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	root := createCert(t, rootTpl, rootTpl, &rootKey.PublicKey, rootKey)

	interKey := newKey(t)
	interTpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "Test Intermediate"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	inter := createCert(t, interTpl, root, &interKey.PublicKey, rootKey)

	leafKey := newKey(t)
	leafTpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "Test Leaf"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leaf := createCert(t, leafTpl, inter, &leafKey.PublicKey, interKey)

	return &Chain{
		RootPEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: root.Raw})),
		Signer: &apple_notification.Signer{
			Key:   leafKey,
			Chain: []*x509.Certificate{leaf, inter, root},
		},
	}
}

// Decoder returns a verifying decoder pinned to the chain's root.
func (c *Chain) Decoder(t *testing.T) *apple_notification.Decoder {
	t.Helper()
	d, err := apple_notification.NewDecoder(apple_notification.WithRootCertificate(c.RootPEM))
	require.NoError(t, err)
	return d
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return k
}

func createCert(t *testing.T, tpl, parent *x509.Certificate, pub *ecdsa.PublicKey, signer *ecdsa.PrivateKey) *x509.Certificate {
	der, err := x509.CreateCertificate(rand.Reader, tpl, parent, pub, signer)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
