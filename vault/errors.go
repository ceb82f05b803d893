package vault

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of them.
var (
	// ErrValidation indicates malformed input. No network call was made.
	ErrValidation = errors.New("vault: invalid input")

	// ErrPrecondition indicates a missing identity, credential or authorization.
	ErrPrecondition = errors.New("vault: precondition failed")

	// ErrTransport indicates a storage network, chain or key server failure.
	ErrTransport = errors.New("vault: network failure")

	// ErrDecryption indicates ciphertext that cannot be recovered with the given credential.
	ErrDecryption = errors.New("vault: decryption failed")

	// ErrBusy indicates another operation is in progress on the engine.
	ErrBusy = errors.New("vault: another operation is in progress")

	// ErrCanceled indicates the caller canceled the operation. Partial results were discarded.
	ErrCanceled = errors.New("vault: operation canceled")

	// ErrNoFiles indicates a blob that contains no files.
	ErrNoFiles = errors.New("vault: no files found in blob")
)

var (
	ErrTransactionDigest = fmt.Errorf("%w: this is a transaction digest, not a blob id", ErrValidation)
	ErrBlobIDTooShort    = fmt.Errorf("%w: blob id is too short", ErrValidation)
	ErrBlobIDFormat      = fmt.Errorf("%w: blob id must start with a letter", ErrValidation)
	ErrEmptyIdentifier   = fmt.Errorf("%w: file identifier is empty", ErrValidation)
	ErrEmptyField        = fmt.Errorf("%w: required field is empty", ErrValidation)
	ErrUnknownRecord     = fmt.Errorf("%w: no such vault record", ErrValidation)

	ErrNoIdentity      = fmt.Errorf("%w: no signing identity", ErrPrecondition)
	ErrNoMasterKey     = fmt.Errorf("%w: master password is required", ErrPrecondition)
	ErrNoEncryption    = fmt.Errorf("%w: no encryption provider configured", ErrPrecondition)
	ErrNotAuthorized   = fmt.Errorf("%w: address is not authorized", ErrPrecondition)
	ErrNoBlobID        = fmt.Errorf("%w: upload finished without a blob id", ErrTransport)
)

// Kind classifies errors for presentation.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindPrecondition
	KindTransport
	KindDecryption
	KindBusy
	KindCanceled
	KindNoFiles
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition"
	case KindTransport:
		return "transport"
	case KindDecryption:
		return "decryption"
	case KindBusy:
		return "busy"
	case KindCanceled:
		return "canceled"
	case KindNoFiles:
		return "no-files"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoFiles):
		return KindNoFiles
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrDecryption):
		return KindDecryption
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrCanceled):
		return KindCanceled
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}

// classify wraps a collaborator error in its engine kind. Errors that
// already carry a kind pass through.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		if errors.Is(err, ErrCanceled) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
