package purchase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/reconciler/internal/app/service/receipt"
	"github.com/fatflowers/reconciler/internal/app/service/tokenauth"
	"github.com/fatflowers/reconciler/pkg/tool"
	"github.com/fatflowers/reconciler/pkg/types"
)

func TestStart_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)
	second, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, types.PurchaseStatusStarted, second.Status)
	require.Equal(t, 1, f.historyLen(t, first.ID))
	require.Equal(t, 1, f.publisher.count())
}

func TestStart_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "alice", "yearly", types.PaymentProviderApple)
	require.ErrorIs(t, err, receipt.ErrUnknownProduct)

	_, err = f.svc.Start(ctx, "alice", "monthly", types.PaymentProvider("amazon"))
	require.ErrorIs(t, err, receipt.ErrUnknownProduct)

	f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
	_, err = f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderGoogle)
	require.ErrorIs(t, err, ErrAlreadyPurchased)

	// other users are unaffected
	_, err = f.svc.Start(ctx, "bob", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "bob", p.ID)
	require.ErrorIs(t, err, ErrPurchaseNotFound)

	canceled, err := f.svc.Cancel(ctx, "alice", p.ID)
	require.NoError(t, err)
	require.Equal(t, types.PurchaseStatusCanceled, canceled.Status)

	_, err = f.svc.Cancel(ctx, "alice", p.ID)
	require.ErrorIs(t, err, ErrInvalidCancelTarget)
	require.Equal(t, 2, f.historyLen(t, p.ID))

	// a new attempt may start after cancel
	next, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)
	require.NotEqual(t, p.ID, next.ID)
}

func TestCancel_CompletedRejected(t *testing.T) {
	f := newFixture(t)
	p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")

	_, err := f.svc.Cancel(context.Background(), "alice", p.ID)
	require.ErrorIs(t, err, ErrInvalidCancelTarget)
	require.Equal(t, types.PurchaseStatusCompleted, f.reload(t, p.ID).Status)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")

	got := f.reload(t, p.ID)
	require.Equal(t, types.PurchaseStatusCompleted, got.Status)
	require.Equal(t, int64(1), got.TotalTransactions)
	require.Equal(t, "1000", got.GetTransactionID())
	require.Equal(t, "receipt-a", got.ReceiptData)
	require.Equal(t, tool.SHA256Hex("receipt-a"), got.ReceiptHash)
	require.True(t, got.StartedAt.Equal(periodStart))
	require.True(t, got.EndsAfter.Equal(periodEnd))
	require.True(t, got.EndsAfter.After(*got.StartedAt))

	rows, err := f.svc.History(context.Background(), "alice", p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, types.PurchaseStatusStarted, rows[0].Status)
	require.Equal(t, types.PurchaseStatusCompleted, rows[1].Status)
	require.Equal(t, 2, f.publisher.count())
}

func TestComplete_InvalidTargetDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")
	before := f.reload(t, done.ID)
	calls := f.validator.calls

	_, err := f.svc.Complete(ctx, "alice", done.ID, "receipt-a")
	require.ErrorIs(t, err, ErrInvalidCompleteTarget)
	require.Equal(t, before, f.reload(t, done.ID))
	require.Equal(t, calls, f.validator.calls)

	started, err := f.svc.Start(ctx, "bob", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, "bob", started.ID)
	require.NoError(t, err)
	canceled := f.reload(t, started.ID)

	_, err = f.svc.Complete(ctx, "bob", started.ID, "receipt-b")
	require.ErrorIs(t, err, ErrInvalidCompleteTarget)
	require.Equal(t, canceled, f.reload(t, started.ID))
}

func TestComplete_ValidatorErrorLeavesStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)

	for _, want := range []error{receipt.ErrSubscriptionCancelled, receipt.ErrNoCorrelationToken, receipt.ErrUnexpectedStore} {
		f.validator.set("bad", nil, want)
		_, err = f.svc.Complete(ctx, "alice", p.ID, "bad")
		require.ErrorIs(t, err, want)
	}

	got := f.reload(t, p.ID)
	require.Equal(t, types.PurchaseStatusStarted, got.Status)
	require.Equal(t, int64(0), got.TotalTransactions)
	require.Nil(t, got.StartedAt)
	require.Equal(t, 1, f.historyLen(t, p.ID))
}

func TestComplete_RejectsTokenOfOtherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bobs := f.completed(t, "bob", types.PaymentProviderApple, "receipt-b", "2000")

	alice, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)
	// alice replays bob's receipt, which carries bob's purchase id as token
	f.validator.set("receipt-b-replay", validReceipt(bobs.ID, "2000", periodStart, periodEnd), nil)

	_, err = f.svc.Complete(ctx, "alice", alice.ID, "receipt-b-replay")
	require.ErrorIs(t, err, tokenauth.ErrTokenBelongsToOtherUser)
	require.Equal(t, types.PurchaseStatusStarted, f.reload(t, alice.ID).Status)
}

func TestComplete_AcceptsSupersededAttemptToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, "alice", old.ID)
	require.NoError(t, err)

	p, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)
	f.validator.set("receipt-old-token", validReceipt(old.ID, "1000", periodStart, periodEnd), nil)

	_, err = f.svc.Complete(ctx, "alice", p.ID, "receipt-old-token")
	require.NoError(t, err)
}

func TestComplete_ConcurrentOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)
	f.validator.set("receipt-a", validReceipt(p.ID, "1000", periodStart, periodEnd), nil)

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Complete(ctx, "alice", p.ID, "receipt-a")
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, errors.Is(err, ErrInvalidCompleteTarget) || errors.Is(err, ErrConcurrentUpdate), err)
	}
	require.Equal(t, 1, ok)
	require.Equal(t, int64(1), f.reload(t, p.ID).TotalTransactions)
	require.Equal(t, 2, f.historyLen(t, p.ID))
}

func TestSavePurchase_StaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)

	stale := *p
	require.NoError(t, savePurchase(ctx, f.db, p, f.svc.now()))
	stale.Status = types.PurchaseStatusCanceled
	require.ErrorIs(t, savePurchase(ctx, f.db, &stale, f.svc.now()), ErrConcurrentUpdate)
	require.Equal(t, types.PurchaseStatusStarted, f.reload(t, p.ID).Status)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Start(ctx, "alice", "monthly", types.PaymentProviderApple)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "alice", p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	_, err = f.svc.Get(ctx, "bob", p.ID)
	require.ErrorIs(t, err, ErrPurchaseNotFound)
	_, err = f.svc.Get(ctx, "alice", "not-a-uuid")
	require.ErrorIs(t, err, ErrPurchaseNotFound)
	_, err = f.svc.History(ctx, "bob", p.ID)
	require.ErrorIs(t, err, ErrPurchaseNotFound)

	list, err := f.svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = f.svc.List(ctx, "bob")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestHistoryOf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, "alice", types.PaymentProviderApple, "receipt-a", "1000")

	rows, err := f.svc.HistoryOf(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, types.PurchaseStatusStarted, rows[0].Status)
	require.Equal(t, types.PurchaseStatusCompleted, rows[1].Status)

	_, err = f.svc.HistoryOf(ctx, "0190a000-0000-7000-8000-00000000ffff")
	require.ErrorIs(t, err, ErrPurchaseNotFound)
	_, err = f.svc.HistoryOf(ctx, "nope")
	require.ErrorIs(t, err, ErrPurchaseNotFound)
}
