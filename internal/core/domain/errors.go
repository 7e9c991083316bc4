package domain

import "errors"

var (
	// ErrVaultAlreadyInitialized ...
	ErrVaultAlreadyInitialized = errors.New("vault is already initialized")
	// ErrVaultNotInitialized ...
	ErrVaultNotInitialized = errors.New("vault is not initialized")
	// ErrVaultInvalidPassword ...
	ErrVaultInvalidPassword = errors.New("password is not valid")
	// ErrVaultNullSeedOrPassword ...
	ErrVaultNullSeedOrPassword = errors.New("seed and/or password must not be null")
	// ErrVaultUnknownAccount ...
	ErrVaultUnknownAccount = errors.New("account not found in vault")

	// ErrOutputNotFound ...
	ErrOutputNotFound = errors.New("output not found")
	// ErrOutputAlreadyLocked is returned when reserving an output that is not
	// unspent or that is locked by another transaction.
	ErrOutputAlreadyLocked = errors.New("output is already locked or not spendable")
	// ErrOutputNotLocked ...
	ErrOutputNotLocked = errors.New("output is not locked by the given transaction")

	// ErrTxNotFound ...
	ErrTxNotFound = errors.New("transaction not found")
	// ErrTxAlreadyExists ...
	ErrTxAlreadyExists = errors.New("transaction already exists")
	// ErrTxAlreadyPosted is returned when trying to cancel or post again a
	// transaction already broadcasted.
	ErrTxAlreadyPosted = errors.New("transaction is already posted")
	// ErrTxMustBeFinalized ...
	ErrTxMustBeFinalized = errors.New("transaction must be finalized")
	// ErrTxCancelled ...
	ErrTxCancelled = errors.New("transaction is cancelled")
	// ErrTxInvalidStatus ...
	ErrTxInvalidStatus = errors.New("transaction is not in the expected status")
)
