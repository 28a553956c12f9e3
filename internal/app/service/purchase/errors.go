package purchase

import "errors"

var (
	ErrAlreadyPurchased      = errors.New("product already purchased")
	ErrInvalidCancelTarget   = errors.New("only started purchases can be canceled")
	ErrInvalidCompleteTarget = errors.New("only started purchases can be completed")
	ErrPurchaseNotFound      = errors.New("purchase not found")
	// ErrConcurrentUpdate is returned when the row changed between read and
	// write. The caller may retry the whole operation.
	ErrConcurrentUpdate = errors.New("purchase was modified concurrently")
)
