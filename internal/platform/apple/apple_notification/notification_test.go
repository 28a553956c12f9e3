package apple_notification_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/reconciler/internal/platform/apple/apple_notification"
	"github.com/fatflowers/reconciler/internal/platform/apple/apple_notification/appletest"
)

func renewPayload() (*apple_notification.NotificationPayload, *apple_notification.TransactionInfo, *apple_notification.RenewalInfo) {
	return &apple_notification.NotificationPayload{
			NotificationType: "DID_RENEW",
			NotificationUUID: "5f2c3c31-0000-4000-8000-000000000001",
			Data: apple_notification.NotificationData{
				BundleId:    "com.example.app",
				Environment: "Sandbox",
			},
		}, &apple_notification.TransactionInfo{
			TransactionId:         "2000",
			OriginalTransactionId: "1000",
			ProductId:             "com.example.monthly",
			AppAccountToken:       "0190a000-0000-7000-8000-000000000001",
			PurchaseDate:          1735689600000,
			ExpiresDate:           1738368000000,
		}, &apple_notification.RenewalInfo{
			OriginalTransactionId: "1000",
			ProductId:             "com.example.monthly",
			AutoRenewStatus:       1,
		}
}

func TestDecode_VerifiedRoundTrip(t *testing.T) {
	chain := appletest.NewChain(t)
	payload, tx, renewal := renewPayload()

	signed, err := chain.Signer.SignNotification(payload, tx, renewal)
	require.NoError(t, err)

	asn, err := chain.Decoder(t).Decode(signed)
	require.NoError(t, err)
	require.Equal(t, "DID_RENEW", asn.Payload.NotificationType)
	require.Equal(t, "1000", asn.OriginalTransactionID())
	require.Equal(t, "0190a000-0000-7000-8000-000000000001", asn.TransactionInfo.AppAccountToken)
	require.Equal(t, int32(1), asn.RenewalInfo.AutoRenewStatus)
	require.True(t, asn.IsSandbox)
	require.False(t, asn.IsTestNotification)
}

func TestDecode_ForgedSignatureRejected(t *testing.T) {
	chain := appletest.NewChain(t)
	payload, tx, _ := renewPayload()

	// same x5c header, different signing key
	forgedKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	forger := &apple_notification.Signer{Key: forgedKey, Chain: chain.Signer.Chain}

	signed, err := forger.SignNotification(payload, tx, nil)
	require.NoError(t, err)

	_, err = chain.Decoder(t).Decode(signed)
	require.ErrorIs(t, err, apple_notification.ErrInvalidSignature)
}

func TestDecode_UntrustedChainRejected(t *testing.T) {
	trusted := appletest.NewChain(t)
	other := appletest.NewChain(t)
	payload, tx, _ := renewPayload()

	signed, err := other.Signer.SignNotification(payload, tx, nil)
	require.NoError(t, err)

	_, err = trusted.Decoder(t).Decode(signed)
	require.ErrorIs(t, err, apple_notification.ErrCertificateChain)
}

func TestDecode_PinnedAppleRootRejectsTestChain(t *testing.T) {
	chain := appletest.NewChain(t)
	payload, tx, _ := renewPayload()
	signed, err := chain.Signer.SignNotification(payload, tx, nil)
	require.NoError(t, err)

	d, err := apple_notification.NewDecoder()
	require.NoError(t, err)
	_, err = d.Decode(signed)
	require.ErrorIs(t, err, apple_notification.ErrCertificateChain)
}

func TestDecode_WithoutVerification(t *testing.T) {
	other := appletest.NewChain(t)
	payload, tx, _ := renewPayload()
	signed, err := other.Signer.SignNotification(payload, tx, nil)
	require.NoError(t, err)

	d, err := apple_notification.NewDecoder(apple_notification.WithoutVerification())
	require.NoError(t, err)
	asn, err := d.Decode(signed)
	require.NoError(t, err)
	require.Equal(t, "1000", asn.OriginalTransactionID())
	require.Nil(t, asn.RenewalInfo)
}

func TestDecode_TestNotification(t *testing.T) {
	chain := appletest.NewChain(t)
	signed, err := chain.Signer.SignNotification(&apple_notification.NotificationPayload{
		NotificationType: "TEST",
		NotificationUUID: "5f2c3c31-0000-4000-8000-000000000002",
	}, nil, nil)
	require.NoError(t, err)

	asn, err := chain.Decoder(t).Decode(signed)
	require.NoError(t, err)
	require.True(t, asn.IsTestNotification)
	require.Equal(t, "", asn.OriginalTransactionID())
}

func TestDecode_Malformed(t *testing.T) {
	d, err := apple_notification.NewDecoder()
	require.NoError(t, err)

	for _, in := range []string{"", "a.b", "!!!.e30.sig", strings.Repeat("x", 10)} {
		_, err := d.Decode(in)
		require.ErrorIs(t, err, apple_notification.ErrMalformedJWS, in)
	}
}

func TestDecode_MissingTransactionInfo(t *testing.T) {
	chain := appletest.NewChain(t)
	payload, _, _ := renewPayload()
	signed, err := chain.Signer.SignNotification(payload, nil, nil)
	require.NoError(t, err)

	_, err = chain.Decoder(t).Decode(signed)
	require.ErrorIs(t, err, apple_notification.ErrMissingTransaction)
}

func TestNewDecoder_BadRoot(t *testing.T) {
	_, err := apple_notification.NewDecoder(apple_notification.WithRootCertificate("not a pem"))
	require.Error(t, err)
}
