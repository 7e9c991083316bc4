package application

import (
	"errors"
	"fmt"

	"github.com/ironbelly/walletd/internal/core/domain"
	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/coinselect"
	"github.com/ironbelly/walletd/pkg/keychain"
	"github.com/ironbelly/walletd/pkg/mwcrypto"
	"github.com/ironbelly/walletd/pkg/slate"
)

var (
	// ErrWalletLocked is returned by operations that need key material when
	// the wallet is not unlocked.
	ErrWalletLocked = errors.New("wallet is locked")
	// ErrWalletClosed ...
	ErrWalletClosed = errors.New("wallet is closed")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrInvalidDestination ...
	ErrInvalidDestination = errors.New("destination url is not valid")
	// ErrDesync is returned by the scanner when the node's output set no
	// longer matches the one the wallet scanned. A full rescan is required.
	ErrDesync = errors.New(
		"node output set diverged from the scanned one, rescan from scratch",
	)
	// ErrInvalidScanRange ...
	ErrInvalidScanRange = errors.New("last retrieved index exceeds highest index")
	// ErrUnexpectedSlate is returned when the slate is not the one expected
	// at this step of the negotiation.
	ErrUnexpectedSlate = errors.New("slate is not expected at this stage")
	// ErrTxAlreadyConfirmed ...
	ErrTxAlreadyConfirmed = errors.New("transaction is already confirmed")
	// ErrTxPostInProgress is returned when cancelling or posting a
	// transaction while it is being pushed to the node.
	ErrTxPostInProgress = errors.New("transaction is being posted")
)

// ErrorCode is the discriminant of the errors returned at the boundary.
type ErrorCode int

const (
	ErrorCodeInternal ErrorCode = iota
	ErrorCodeInvalidInput
	ErrorCodeInsufficientFunds
	ErrorCodeAlreadyLocked
	ErrorCodeAlreadyPosted
	ErrorCodeNodeUnavailable
	ErrorCodeDesync
	ErrorCodeInvalidSignature
	ErrorCodeParticipantMismatch
	ErrorCodeEntropy
	ErrorCodeInvalidMnemonic
	ErrorCodeNotFound
	ErrorCodeWalletLocked
	ErrorCodeInvalidPassword
	ErrorCodeAlreadyInitialized
	ErrorCodeNotInitialized
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeInvalidInput:
		return "InvalidInput"
	case ErrorCodeInsufficientFunds:
		return "InsufficientFunds"
	case ErrorCodeAlreadyLocked:
		return "AlreadyLocked"
	case ErrorCodeAlreadyPosted:
		return "AlreadyPosted"
	case ErrorCodeNodeUnavailable:
		return "NodeUnavailable"
	case ErrorCodeDesync:
		return "Desync"
	case ErrorCodeInvalidSignature:
		return "InvalidSignature"
	case ErrorCodeParticipantMismatch:
		return "ParticipantMismatch"
	case ErrorCodeEntropy:
		return "Entropy"
	case ErrorCodeInvalidMnemonic:
		return "InvalidMnemonic"
	case ErrorCodeNotFound:
		return "NotFound"
	case ErrorCodeWalletLocked:
		return "WalletLocked"
	case ErrorCodeInvalidPassword:
		return "InvalidPassword"
	case ErrorCodeAlreadyInitialized:
		return "AlreadyInitialized"
	case ErrorCodeNotInitialized:
		return "NotInitialized"
	default:
		return "Internal"
	}
}

// Retryable returns whether the operation can be tried again as is.
func (c ErrorCode) Retryable() bool {
	return c == ErrorCodeNodeUnavailable
}

// Error is the typed error surfaced at the boundary: a code plus a human
// readable message.
type Error struct {
	Code    ErrorCode
	Message string
	err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// ToError maps any error returned by the services to an *Error. A nil
// error maps to nil.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Code: codeOf(err), Message: err.Error(), err: err}
}

var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{coinselect.ErrInsufficientFunds, ErrorCodeInsufficientFunds},
	{domain.ErrOutputAlreadyLocked, ErrorCodeAlreadyLocked},
	{domain.ErrTxAlreadyPosted, ErrorCodeAlreadyPosted},
	{ErrTxAlreadyConfirmed, ErrorCodeAlreadyPosted},
	{ErrTxPostInProgress, ErrorCodeAlreadyPosted},
	{ports.ErrNodeUnavailable, ErrorCodeNodeUnavailable},
	{ports.ErrTransport, ErrorCodeNodeUnavailable},
	{ErrDesync, ErrorCodeDesync},
	{mwcrypto.ErrInvalidSignature, ErrorCodeInvalidSignature},
	{mwcrypto.ErrNonceSumMismatch, ErrorCodeInvalidSignature},
	{mwcrypto.ErrKernelSumMismatch, ErrorCodeInvalidSignature},
	{slate.ErrMissingPartialSig, ErrorCodeInvalidSignature},
	{slate.ErrParticipantMismatch, ErrorCodeParticipantMismatch},
	{keychain.ErrEntropy, ErrorCodeEntropy},
	{keychain.ErrInvalidMnemonic, ErrorCodeInvalidMnemonic},
	{domain.ErrTxNotFound, ErrorCodeNotFound},
	{domain.ErrOutputNotFound, ErrorCodeNotFound},
	{ErrWalletLocked, ErrorCodeWalletLocked},
	{ErrWalletClosed, ErrorCodeWalletLocked},
	{domain.ErrVaultInvalidPassword, ErrorCodeInvalidPassword},
	{keychain.ErrInvalidPassword, ErrorCodeInvalidPassword},
	{domain.ErrVaultAlreadyInitialized, ErrorCodeAlreadyInitialized},
	{domain.ErrVaultNotInitialized, ErrorCodeNotInitialized},
	{ErrInvalidAmount, ErrorCodeInvalidInput},
	{ErrInvalidDestination, ErrorCodeInvalidInput},
	{ErrInvalidScanRange, ErrorCodeInvalidInput},
	{ErrUnexpectedSlate, ErrorCodeInvalidInput},
	{coinselect.ErrInvalidAmount, ErrorCodeInvalidInput},
	{coinselect.ErrUnknownStrategy, ErrorCodeInvalidInput},
	{slate.ErrInvalidSlate, ErrorCodeInvalidInput},
	{slate.ErrInvalidArmor, ErrorCodeInvalidInput},
	{slate.ErrChecksumMismatch, ErrorCodeInvalidInput},
	{slate.ErrUnknownParticipant, ErrorCodeInvalidInput},
	{domain.ErrTxMustBeFinalized, ErrorCodeInvalidInput},
	{domain.ErrTxCancelled, ErrorCodeInvalidInput},
	{domain.ErrTxInvalidStatus, ErrorCodeInvalidInput},
	{keychain.ErrInvalidKeyID, ErrorCodeInvalidInput},
	{mwcrypto.ErrInvalidCommitment, ErrorCodeInvalidInput},
	{mwcrypto.ErrMalformedSignature, ErrorCodeInvalidInput},
}

func codeOf(err error) ErrorCode {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ErrorCodeInternal
}
