package purchase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/fatflowers/reconciler/internal/app/service/events"
	"github.com/fatflowers/reconciler/internal/app/service/history"
	"github.com/fatflowers/reconciler/internal/app/service/receipt"
	"github.com/fatflowers/reconciler/internal/app/service/tokenauth"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/internal/platform/db/dbtest"
	"github.com/fatflowers/reconciler/pkg/config"
	"github.com/fatflowers/reconciler/pkg/types"
)

var (
	periodStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	nextEnd     = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
)

type verdict struct {
	receipt *receipt.Receipt
	err     error
}

// fakeValidator answers by receipt string. Inspect falls back to the
// Validate answer when no inspect answer is set.
type fakeValidator struct {
	mu       sync.Mutex
	validate map[string]verdict
	inspect  map[string]verdict
	calls    int
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{validate: map[string]verdict{}, inspect: map[string]verdict{}}
}

func (f *fakeValidator) set(receiptData string, r *receipt.Receipt, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validate[receiptData] = verdict{r, err}
}

func (f *fakeValidator) setInspect(receiptData string, r *receipt.Receipt, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspect[receiptData] = verdict{r, err}
}

func (f *fakeValidator) answer(m map[string]verdict, req receipt.ReceiptRequest) (*receipt.Receipt, error) {
	v, ok := m[req.Receipt]
	if !ok {
		return nil, receipt.ErrNoPurchaseInReceipt
	}
	if v.err != nil {
		return nil, v.err
	}
	r := *v.receipt
	return &r, nil
}

func (f *fakeValidator) Validate(ctx context.Context, req receipt.ReceiptRequest) (*receipt.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.answer(f.validate, req)
}

func (f *fakeValidator) Inspect(ctx context.Context, req receipt.ReceiptRequest) (*receipt.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.inspect[req.Receipt]; ok {
		return f.answer(f.inspect, req)
	}
	return f.answer(f.validate, req)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.PurchaseChanged
}

func (p *recordingPublisher) PublishPurchaseChanged(ctx context.Context, ev *events.PurchaseChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixture struct {
	svc       *Service
	db        *gorm.DB
	validator *fakeValidator
	publisher *recordingPublisher
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	core, logs := observer.New(zap.InfoLevel)
	cfg := &config.Config{PaymentItems: []*types.PaymentItem{
		{ID: "monthly", ProviderID: types.PaymentProviderApple, ProviderItemID: "com.example.monthly", Type: types.PaymentItemTypeAutoRenewableSubscription},
		{ID: "monthly", ProviderID: types.PaymentProviderGoogle, ProviderItemID: "monthly_sub", Type: types.PaymentItemTypeAutoRenewableSubscription},
	}}
	v := newFakeValidator()
	pub := &recordingPublisher{}
	svc := NewService(cfg, zap.New(core).Sugar(), gdb, v, tokenauth.NewService(), history.NewService(gdb), pub, nil)
	svc.now = func() time.Time { return periodStart.Add(24 * time.Hour) }
	return &fixture{svc: svc, db: gdb, validator: v, publisher: pub, logs: logs}
}

func validReceipt(token, txid string, start, end time.Time) *receipt.Receipt {
	return &receipt.Receipt{CorrelationToken: token, TransactionID: txid, StartAt: start, EndAt: end}
}

// completed starts and completes a purchase for user with the given receipt.
func (f *fixture) completed(t *testing.T, user string, provider types.PaymentProvider, receiptData, txid string) *models.Purchase {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.Start(ctx, user, "monthly", provider)
	require.NoError(t, err)
	f.validator.set(receiptData, validReceipt(p.ID, txid, periodStart, periodEnd), nil)
	p, err = f.svc.Complete(ctx, user, p.ID, receiptData)
	require.NoError(t, err)
	return p
}

func (f *fixture) reload(t *testing.T, id string) *models.Purchase {
	t.Helper()
	var p models.Purchase
	require.NoError(t, f.db.Where("id = ?", id).Take(&p).Error)
	return &p
}

func (f *fixture) historyLen(t *testing.T, id string) int {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.PurchaseHistory{}).Where("purchase_id = ?", id).Count(&n).Error)
	return int(n)
}
