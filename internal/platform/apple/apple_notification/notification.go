package apple_notification

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
)

const appleRootCAG3RootPem = `-----BEGIN CERTIFICATE-----
MIICQzCCAcmgAwIBAgIILcX8iNLFS5UwCgYIKoZIzj0EAwMwZzEbMBkGA1UEAwwS
QXBwbGUgUm9vdCBDQSAtIEczMSYwJAYDVQQLDB1BcHBsZSBDZXJ0aWZpY2F0aW9u
IEF1dGhvcml0eTETMBEGA1UECgwKQXBwbGUgSW5jLjELMAkGA1UEBhMCVVMwHhcN
MTQwNDMwMTgxOTA2WhcNMzkwNDMwMTgxOTA2WjBnMRswGQYDVQQDDBJBcHBsZSBS
b290IENBIC0gRzMxJjAkBgNVBAsMHUFwcGxlIENlcnRpZmljYXRpb24gQXV0aG9y
aXR5MRMwEQYDVQQKDApBcHBsZSBJbmMuMQswCQYDVQQGEwJVUzB2MBAGByqGSM49
AgEGBSuBBAAiA2IABJjpLz1AcqTtkyJygRMc3RCV8cWjTnHcFBbZDuWmBSp3ZHtf
TjjTuxxEtX/1H7YyYl3J6YRbTzBPEVoA/VhYDKX1DyxNB0cTddqXl5dvMVztK517
IDvYuVTZXpmkOlEKMaNCMEAwHQYDVR0OBBYEFLuw3qFYM4iapIqZ3r6966/ayySr
MA8GA1UdEwEB/wQFMAMBAf8wDgYDVR0PAQH/BAQDAgEGMAoGCCqGSM49BAMDA2gA
MGUCMQCD6cHEFl4aXTQY2e3v9GwOAEZLuN+yRhHFD/3meoyhpmvOwgPUnPWTxnS4
at+qIxUCMG1mihDK1A3UT82NQz60imOlM27jbdoXt2QfyFMm+YhidDkLF1vLUagM
6BgD56KyKA==
-----END CERTIFICATE-----`

var (
	ErrMalformedJWS       = errors.New("malformed signed payload")
	ErrCertificateChain   = errors.New("x5c certificate chain rejected")
	ErrInvalidSignature   = errors.New("signed payload signature rejected")
	ErrMissingTransaction = errors.New("signed payload has no transaction info")
)

// Decoder decodes App Store signed notifications, verifying each JWS against
// the x5c chain it carries unless verification is disabled.
type Decoder struct {
	roots  *x509.CertPool
	verify bool
}

type Option func(*Decoder) error

// WithRootCertificate pins a different root, e.g. a test CA.
func WithRootCertificate(pem string) Option {
	return func(d *Decoder) error {
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM([]byte(pem)) {
			return errors.New("root certificate couldn't be parsed")
		}
		d.roots = roots
		return nil
	}
}

// WithoutVerification decodes payloads without checking signatures.
func WithoutVerification() Option {
	return func(d *Decoder) error {
		d.verify = false
		return nil
	}
}

func NewDecoder(opts ...Option) (*Decoder, error) {
	d := &Decoder{verify: true}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.roots == nil {
		if err := WithRootCertificate(appleRootCAG3RootPem)(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Decode parses the outer payload and the nested transaction and renewal
// info. Test notifications carry no transaction info.
func (d *Decoder) Decode(signedPayload string) (*AppStoreServerNotification, error) {
	payload := &NotificationPayload{}
	if err := d.parse(signedPayload, payload); err != nil {
		return nil, err
	}
	asn := &AppStoreServerNotification{
		Payload:            payload,
		IsTestNotification: payload.NotificationType == "TEST",
		IsSandbox:          payload.Data.Environment == "Sandbox",
	}
	if asn.IsTestNotification {
		return asn, nil
	}

	if payload.Data.SignedTransactionInfo == "" {
		return nil, ErrMissingTransaction
	}
	transactionInfo := &TransactionInfo{}
	if err := d.parse(payload.Data.SignedTransactionInfo, transactionInfo); err != nil {
		return nil, fmt.Errorf("transaction info: %w", err)
	}
	asn.TransactionInfo = transactionInfo

	if payload.Data.SignedRenewalInfo != "" {
		renewalInfo := &RenewalInfo{}
		if err := d.parse(payload.Data.SignedRenewalInfo, renewalInfo); err != nil {
			return nil, fmt.Errorf("renewal info: %w", err)
		}
		asn.RenewalInfo = renewalInfo
	}
	return asn, nil
}

func (d *Decoder) parse(token string, claims jwt.Claims) error {
	if !d.verify {
		if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedJWS, err)
		}
		return nil
	}

	leaf, err := d.verifiedLeaf(token)
	if err != nil {
		return err
	}
	parser := &jwt.Parser{ValidMethods: []string{jwt.SigningMethodES256.Alg()}}
	_, err = parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		pk, ok := leaf.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return nil, errors.New("appstore public key must be of type ecdsa.PublicKey")
		}
		return pk, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// verifiedLeaf returns x5c[0] once it chains through the remaining x5c
// certificates to a pinned root.
func (d *Decoder) verifiedLeaf(token string) (*x509.Certificate, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, ErrMalformedJWS
	}
	headerByte, err := jwt.DecodeSegment(segments[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedJWS, err)
	}
	var header NotificationHeader
	if err := json.Unmarshal(headerByte, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedJWS, err)
	}
	if len(header.X5c) < 2 {
		return nil, fmt.Errorf("%w: expected at least 2 certificates, got %d", ErrCertificateChain, len(header.X5c))
	}

	certs := make([]*x509.Certificate, 0, len(header.X5c))
	for i, enc := range header.X5c {
		der, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: x5c[%d]: %v", ErrCertificateChain, i, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: x5c[%d]: %v", ErrCertificateChain, i, err)
		}
		certs = append(certs, cert)
	}

	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	if _, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         d.roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificateChain, err)
	}
	return certs[0], nil
}
