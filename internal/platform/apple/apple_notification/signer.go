package apple_notification

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt"
)

// Signer produces App Store shaped JWS values. It is used to replay
// notifications and to build fixtures.
type Signer struct {
	Key   *ecdsa.PrivateKey
	Chain []*x509.Certificate
}

func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	x5c := make([]string, 0, len(s.Chain))
	for _, c := range s.Chain {
		x5c = append(x5c, base64.StdEncoding.EncodeToString(c.Raw))
	}
	token.Header["x5c"] = x5c
	return token.SignedString(s.Key)
}

// SignNotification signs the nested values first and embeds them in payload.
func (s *Signer) SignNotification(payload *NotificationPayload, tx *TransactionInfo, renewal *RenewalInfo) (string, error) {
	p := *payload
	if tx != nil {
		signed, err := s.Sign(tx)
		if err != nil {
			return "", fmt.Errorf("sign transaction info: %w", err)
		}
		p.Data.SignedTransactionInfo = signed
	}
	if renewal != nil {
		signed, err := s.Sign(renewal)
		if err != nil {
			return "", fmt.Errorf("sign renewal info: %w", err)
		}
		p.Data.SignedRenewalInfo = signed
	}
	return s.Sign(&p)
}
