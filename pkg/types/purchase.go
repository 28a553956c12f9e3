package types

import "fmt"

type PurchaseStatus string

const (
	PurchaseStatusStarted   PurchaseStatus = "started"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusCanceled  PurchaseStatus = "canceled"
	PurchaseStatusExpired   PurchaseStatus = "expired"
	PurchaseStatusPaused    PurchaseStatus = "paused"
)

// purchaseTransitions lists every legal target per status. A status missing
// from the map is unknown; an empty slice is terminal.
var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseStatusStarted:   {PurchaseStatusCompleted, PurchaseStatusCanceled},
	PurchaseStatusCompleted: {PurchaseStatusCompleted, PurchaseStatusExpired, PurchaseStatusPaused},
	PurchaseStatusPaused:    {PurchaseStatusCompleted, PurchaseStatusExpired},
	// an expired row is re-completed in place when the store reports a new period
	PurchaseStatusExpired:  {PurchaseStatusCompleted},
	PurchaseStatusCanceled: {},
}

func (s PurchaseStatus) Valid() bool {
	_, ok := purchaseTransitions[s]
	return ok
}

func (s PurchaseStatus) Terminal() bool {
	next, ok := purchaseTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s PurchaseStatus) CanTransitionTo(next PurchaseStatus) bool {
	for _, candidate := range purchaseTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

func ParsePurchaseStatus(v string) (PurchaseStatus, error) {
	s := PurchaseStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown purchase status: %q", v)
	}
	return s, nil
}

// NotificationCategory is the store-independent meaning of a store event.
type NotificationCategory string

const (
	NotificationCategoryActive  NotificationCategory = "active"
	NotificationCategoryRenewal NotificationCategory = "renewal"
	NotificationCategoryExpired NotificationCategory = "expired"
	NotificationCategoryPaused  NotificationCategory = "paused"
	NotificationCategoryIgnored NotificationCategory = "ignored"
)

// TargetStatus returns the purchase status a category leads to. Ignored
// notifications have no target.
func (c NotificationCategory) TargetStatus() (PurchaseStatus, bool) {
	switch c {
	case NotificationCategoryActive, NotificationCategoryRenewal:
		return PurchaseStatusCompleted, true
	case NotificationCategoryExpired:
		return PurchaseStatusExpired, true
	case NotificationCategoryPaused:
		return PurchaseStatusPaused, true
	default:
		return "", false
	}
}

// TransitionSource tells who triggered a purchase transition.
type TransitionSource string

const (
	TransitionSourceClient       TransitionSource = "client"
	TransitionSourceNotification TransitionSource = "notification"
	TransitionSourceReconcile    TransitionSource = "reconcile"
)
