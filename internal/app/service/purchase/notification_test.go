package purchase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fatflowers/reconciler/internal/app/service/receipt"
	"github.com/fatflowers/reconciler/pkg/tool"
	"github.com/fatflowers/reconciler/pkg/types"
)

func TestApplyNotification_GoogleCanceledExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, "alice", types.PaymentProviderGoogle, "purchase-token", "GPA.1")
	f.validator.setInspect("purchase-token", &receipt.Receipt{
		CorrelationToken: p.ID, TransactionID: "GPA.1", StartAt: periodStart, EndAt: periodEnd, Lapse: receipt.ErrSubscriptionCancelled,
	}, nil)

	outcome, err := f.svc.ApplyNotification(ctx, Notification{
		Provider:    types.PaymentProviderGoogle,
		PurchaseID:  p.ID,
		Category:    types.NotificationCategoryExpired,
		Type:        "SUBSCRIPTION_CANCELED",
		ReceiptData: "purchase-token",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	got := f.reload(t, p.ID)
	require.Equal(t, types.PurchaseStatusExpired, got.Status)
	require.Equal(t, int64(1), got.TotalTransactions)
	require.Equal(t, 3, f.historyLen(t, p.ID))
}

func TestApplyNotification_AppleRenewal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
	require.Equal(t, int64(1), p.TotalTransactions)
	f.validator.set("receipt-a", validReceipt(p.ID, "1000", periodEnd, nextEnd), nil)

	n := Notification{
		Provider:           types.PaymentProviderApple,
		PurchaseID:         p.ID,
		Category:           types.NotificationCategoryRenewal,
		Type:               "DID_RENEW",
		EventTransactionID: "1001",
	}
	outcome, err := f.svc.ApplyNotification(ctx, n)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	got := f.reload(t, p.ID)
	require.Equal(t, types.PurchaseStatusCompleted, got.Status)
	require.Equal(t, int64(2), got.TotalTransactions)
	require.True(t, got.EndsAfter.Equal(nextEnd))
	require.Equal(t, 3, f.historyLen(t, p.ID))

	rows, err := f.svc.History(ctx, "alice", p.ID)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	require.Equal(t, "DID_RENEW", last.NotificationType)
	require.Equal(t, types.TransitionSourceNotification, last.Source)
	require.Equal(t, p.ID+":1001:DID_RENEW", last.IdempotencyKey)

	// redelivery of the same event does not count twice
	outcome, err = f.svc.ApplyNotification(ctx, n)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)
	require.Equal(t, int64(2), f.reload(t, p.ID).TotalTransactions)
	require.Equal(t, 3, f.historyLen(t, p.ID))
}

func TestApplyNotification_ActiveRefreshesWindowWithoutLedger(t *testing.T) {
	f := newFixture(t)
	p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
	f.validator.set("receipt-a", validReceipt(p.ID, "1000", periodStart, nextEnd), nil)

	outcome, err := f.svc.ApplyNotification(context.Background(), Notification{
		Provider: types.PaymentProviderApple, PurchaseID: p.ID, Category: types.NotificationCategoryActive, Type: "RENEWAL_EXTENDED", EventTransactionID: "1000",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	got := f.reload(t, p.ID)
	require.True(t, got.EndsAfter.Equal(nextEnd))
	require.Equal(t, int64(1), got.TotalTransactions)
	require.Equal(t, 2, f.historyLen(t, p.ID))
}

func TestApplyNotification_PauseAndResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, "alice", types.PaymentProviderGoogle, "purchase-token", "GPA.1")

	outcome, err := f.svc.ApplyNotification(ctx, Notification{
		Provider: types.PaymentProviderGoogle, PurchaseID: p.ID, Category: types.NotificationCategoryPaused, Type: "SUBSCRIPTION_PAUSED", ReceiptData: "purchase-token",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	require.Equal(t, types.PurchaseStatusPaused, f.reload(t, p.ID).Status)

	f.validator.set("purchase-token", validReceipt(p.ID, "GPA.1..0", periodEnd, nextEnd), nil)
	outcome, err = f.svc.ApplyNotification(ctx, Notification{
		Provider: types.PaymentProviderGoogle, PurchaseID: p.ID, Category: types.NotificationCategoryRenewal, Type: "SUBSCRIPTION_RECOVERED", ReceiptData: "purchase-token",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	got := f.reload(t, p.ID)
	require.Equal(t, types.PurchaseStatusCompleted, got.Status)
	require.Equal(t, "GPA.1..0", got.GetTransactionID())
	require.Equal(t, int64(2), got.TotalTransactions)
}

func TestApplyNotification_Drops(t *testing.T) {
	ctx := context.Background()

	t.Run("token of other user", func(t *testing.T) {
		f := newFixture(t)
		bobs := f.completed(t, "bob", types.PaymentProviderApple, "receipt-b", "2000")
		p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
		f.validator.set("receipt-a", validReceipt(bobs.ID, "1000", periodEnd, nextEnd), nil)

		outcome, err := f.svc.ApplyNotification(ctx, Notification{PurchaseID: p.ID, Category: types.NotificationCategoryRenewal, Type: "DID_RENEW", EventTransactionID: "1001"})
		require.NoError(t, err)
		require.Equal(t, OutcomeDropped, outcome)
		require.Equal(t, int64(1), f.reload(t, p.ID).TotalTransactions)
		require.Equal(t, 1, f.logs.FilterMessage("notification_dropped").FilterLevelExact(zapcore.WarnLevel).Len())
	})

	t.Run("receipt rejected", func(t *testing.T) {
		f := newFixture(t)
		p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
		f.validator.set("receipt-a", nil, receipt.ErrSubscriptionCancelled)

		outcome, err := f.svc.ApplyNotification(ctx, Notification{PurchaseID: p.ID, Category: types.NotificationCategoryRenewal, Type: "DID_RENEW"})
		require.NoError(t, err)
		require.Equal(t, OutcomeDropped, outcome)
		require.Equal(t, types.PurchaseStatusCompleted, f.reload(t, p.ID).Status)
	})

	t.Run("illegal transition", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
		require.NoError(t, err)

		outcome, err := f.svc.ApplyNotification(ctx, Notification{PurchaseID: p.ID, Category: types.NotificationCategoryExpired, Type: "EXPIRED"})
		require.NoError(t, err)
		require.Equal(t, OutcomeDropped, outcome)
		require.Equal(t, 0, f.validator.calls)
	})

	t.Run("unknown purchase", func(t *testing.T) {
		f := newFixture(t)
		outcome, err := f.svc.ApplyNotification(ctx, Notification{PurchaseID: tool.GenerateUUIDV7(), Category: types.NotificationCategoryActive})
		require.NoError(t, err)
		require.Equal(t, OutcomeDropped, outcome)
	})

	t.Run("provider mismatch", func(t *testing.T) {
		f := newFixture(t)
		p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
		outcome, err := f.svc.ApplyNotification(ctx, Notification{Provider: types.PaymentProviderGoogle, PurchaseID: p.ID, Category: types.NotificationCategoryExpired})
		require.NoError(t, err)
		require.Equal(t, OutcomeDropped, outcome)
	})
}

func TestApplyNotification_Ignored(t *testing.T) {
	f := newFixture(t)
	outcome, err := f.svc.ApplyNotification(context.Background(), Notification{PurchaseID: tool.GenerateUUIDV7(), Category: types.NotificationCategoryIgnored, Type: "PRICE_INCREASE"})
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, outcome)
}

func TestApplyNotification_StoreUnavailableIsReturned(t *testing.T) {
	f := newFixture(t)
	p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
	f.validator.set("receipt-a", nil, receipt.ErrUnexpectedStore)

	_, err := f.svc.ApplyNotification(context.Background(), Notification{PurchaseID: p.ID, Category: types.NotificationCategoryRenewal, Type: "DID_RENEW"})
	require.ErrorIs(t, err, receipt.ErrUnexpectedStore)
	require.Equal(t, int64(1), f.reload(t, p.ID).TotalTransactions)
}

func TestApplyNotification_ExpiredThenResubscribed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")

	_, err := f.svc.ApplyNotification(ctx, Notification{PurchaseID: p.ID, Category: types.NotificationCategoryExpired, Type: "EXPIRED", EventTransactionID: "1000"})
	require.NoError(t, err)
	require.Equal(t, types.PurchaseStatusExpired, f.reload(t, p.ID).Status)

	f.validator.set("receipt-a", validReceipt(p.ID, "1000", periodEnd, nextEnd), nil)
	outcome, err := f.svc.ApplyNotification(ctx, Notification{PurchaseID: p.ID, Category: types.NotificationCategoryRenewal, Type: "SUBSCRIBED", EventTransactionID: "1002"})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	got := f.reload(t, p.ID)
	require.Equal(t, types.PurchaseStatusCompleted, got.Status)
	require.Equal(t, int64(2), got.TotalTransactions)
}

func TestApplyNotification_RecompleteBlockedByOtherCompletedPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.completed(t, "alice", types.PaymentProviderGoogle, "token-a", "GPA.1")
	f.validator.setInspect("token-a", &receipt.Receipt{
		CorrelationToken: a.ID, TransactionID: "GPA.1", StartAt: periodStart, EndAt: periodEnd, Lapse: receipt.ErrSubscriptionCancelled,
	}, nil)
	_, err := f.svc.ApplyNotification(ctx, Notification{
		Provider: types.PaymentProviderGoogle, PurchaseID: a.ID, Category: types.NotificationCategoryExpired,
		Type: "SUBSCRIPTION_CANCELED", ReceiptData: "token-a",
	})
	require.NoError(t, err)
	require.Equal(t, types.PurchaseStatusExpired, f.reload(t, a.ID).Status)

	b := f.completed(t, "alice", types.PaymentProviderGoogle, "token-b", "GPA.2")
	require.NotEqual(t, a.ID, b.ID)
	historyBefore := f.historyLen(t, a.ID)

	f.validator.set("token-a", validReceipt(a.ID, "GPA.1", periodEnd, nextEnd), nil)
	outcome, err := f.svc.ApplyNotification(ctx, Notification{
		Provider: types.PaymentProviderGoogle, PurchaseID: a.ID, Category: types.NotificationCategoryActive,
		Type: "SUBSCRIPTION_RESTARTED", ReceiptData: "token-a",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeDropped, outcome)

	require.Equal(t, types.PurchaseStatusExpired, f.reload(t, a.ID).Status)
	require.Equal(t, types.PurchaseStatusCompleted, f.reload(t, b.ID).Status)
	require.Equal(t, historyBefore, f.historyLen(t, a.ID))
	require.Equal(t, 1, f.logs.FilterMessage("notification_dropped").Len())
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("lapsed subscription expires", func(t *testing.T) {
		f := newFixture(t)
		p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
		f.validator.setInspect("receipt-a", &receipt.Receipt{CorrelationToken: p.ID, TransactionID: "1000", StartAt: periodStart, EndAt: periodEnd, Lapse: receipt.ErrSubscriptionCancelled}, nil)

		got, outcome, err := f.svc.Reconcile(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, OutcomeApplied, outcome)
		require.Equal(t, types.PurchaseStatusExpired, got.Status)

		rows, err := f.svc.History(ctx, "alice", p.ID)
		require.NoError(t, err)
		require.Equal(t, types.TransitionSourceReconcile, rows[len(rows)-1].Source)

		// a second sweep of the same period is a no-op
		_, outcome, err = f.svc.Reconcile(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, OutcomeIgnored, outcome)
	})

	t.Run("past expiry expires", func(t *testing.T) {
		f := newFixture(t)
		p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
		f.svc.now = func() time.Time { return nextEnd }

		got, _, err := f.svc.Reconcile(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, types.PurchaseStatusExpired, got.Status)
	})

	t.Run("unchanged active is ignored", func(t *testing.T) {
		f := newFixture(t)
		p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")

		got, outcome, err := f.svc.Reconcile(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, OutcomeIgnored, outcome)
		require.Equal(t, types.PurchaseStatusCompleted, got.Status)
	})

	t.Run("started is ignored", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
		require.NoError(t, err)
		_, outcome, err := f.svc.Reconcile(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, OutcomeIgnored, outcome)
	})

	t.Run("unknown purchase", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.Reconcile(ctx, tool.GenerateUUIDV7())
		require.ErrorIs(t, err, ErrPurchaseNotFound)
	})
}

func TestFindForNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, "alice", types.PaymentProviderGoogle, "purchase-token", "GPA.1")

	got, err := f.svc.FindByReceipt(ctx, types.PaymentProviderGoogle, "purchase-token")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	_, err = f.svc.FindByReceipt(ctx, types.PaymentProviderGoogle, "other")
	require.ErrorIs(t, err, ErrPurchaseNotFound)

	got, err = f.svc.FindByTransactionID(ctx, types.PaymentProviderGoogle, "GPA.1")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	_, err = f.svc.FindByTransactionID(ctx, types.PaymentProviderApple, "GPA.1")
	require.ErrorIs(t, err, ErrPurchaseNotFound)
}
