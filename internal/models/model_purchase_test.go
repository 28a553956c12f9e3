package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/reconciler/pkg/types"
)

func TestTableNames(t *testing.T) {
	require.Equal(t, "purchase", Purchase{}.TableName())
	require.Equal(t, "purchase_history", PurchaseHistory{}.TableName())
	require.Equal(t, "payment_notification_log", PaymentNotificationLog{}.TableName())
}

func TestPurchase_ValidWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)

	cases := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  bool
	}{
		{"unset", nil, nil, true},
		{"only start", &start, nil, true},
		{"ordered", &start, &end, true},
		{"equal", &start, &start, false},
		{"reversed", &end, &start, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Purchase{StartedAt: tc.start, EndsAfter: tc.end}
			require.Equal(t, tc.want, p.ValidWindow())
		})
	}
}

func TestPurchase_Entitled(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	require.True(t, (&Purchase{Status: types.PurchaseStatusCompleted, EndsAfter: &later}).Entitled(now))
	require.False(t, (&Purchase{Status: types.PurchaseStatusCompleted, EndsAfter: &earlier}).Entitled(now))
	require.False(t, (&Purchase{Status: types.PurchaseStatusExpired, EndsAfter: &later}).Entitled(now))
	require.False(t, (&Purchase{Status: types.PurchaseStatusCompleted}).Entitled(now))

	var nilPurchase *Purchase
	require.False(t, nilPurchase.Entitled(now))
	require.Equal(t, "", nilPurchase.GetTransactionID())
}
