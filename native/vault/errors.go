package vault

import "errors"

var (
	// ErrNilState is returned when the engine has no persistence layer wired.
	ErrNilState = errors.New("vault engine: state not configured")
	// ErrNilCollaborator is returned when the asset token or yield venue is missing.
	ErrNilCollaborator = errors.New("vault engine: token or venue not configured")
	// ErrNotInitialized rejects share issuance before the one-time initialization.
	ErrNotInitialized = errors.New("vault engine: not initialized")
	// ErrAlreadyInitialized rejects a second initialization.
	ErrAlreadyInitialized = errors.New("vault engine: already initialized")
	// ErrZeroAmount rejects operations on a zero or negative asset amount.
	ErrZeroAmount = errors.New("vault engine: amount must be positive")
	// ErrZeroShares rejects dust deposits whose share value rounds to zero.
	ErrZeroShares = errors.New("vault engine: deposit computes to zero shares")
	// ErrInsufficientShares is returned when an account cannot cover a burn.
	ErrInsufficientShares = errors.New("vault engine: insufficient share balance")
	// ErrWithdrawalTooSoon gates withdrawals inside the per-depositor delay window.
	ErrWithdrawalTooSoon = errors.New("vault engine: withdrawal delay not elapsed")
	// ErrHarvestTooSoon gates harvests inside the harvest delay window.
	ErrHarvestTooSoon = errors.New("vault engine: harvest delay not elapsed")
	// ErrZeroDelay rejects a zero harvest delay, which would allow sandwich
	// harvesting of the profit split.
	ErrZeroDelay = errors.New("vault engine: harvest delay must be positive")
	// ErrDelayTooLong caps the configured delays at one year.
	ErrDelayTooLong = errors.New("vault engine: delay exceeds one year")
	// ErrInvalidRate rejects a nil or negative fixed rate.
	ErrInvalidRate = errors.New("vault engine: invalid fixed rate")
	// ErrUnauthorized is returned when the policy denies a privileged call.
	ErrUnauthorized = errors.New("vault engine: caller not authorized")
	// ErrReentrantCall is returned when a guarded operation is re-entered while
	// another is in flight.
	ErrReentrantCall = errors.New("vault engine: reentrant call")
	// ErrNothingToClaim is returned when the protocol-fee account holds no shares.
	ErrNothingToClaim = errors.New("vault engine: no protocol profit to claim")
	// ErrDivisionByZero is surfaced by the integer helpers instead of a panic.
	ErrDivisionByZero = errors.New("vault engine: division by zero")
	// ErrNegativeValue is surfaced when a collaborator reports a negative amount.
	ErrNegativeValue = errors.New("vault engine: negative value from collaborator")
)
