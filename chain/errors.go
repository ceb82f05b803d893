package chain

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the full node.
	ErrConnectionFailed = errors.New("chain: connection failed")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("chain: invalid response")

	// ErrTxNotFound indicates the requested transaction does not exist (yet).
	ErrTxNotFound = errors.New("chain: transaction not found")

	// ErrTxRejected indicates the node refused to execute the transaction.
	ErrTxRejected = errors.New("chain: transaction rejected")

	// ErrTxFailed indicates the transaction executed with a failure status.
	ErrTxFailed = errors.New("chain: transaction failed")

	// ErrFinalityTimeout indicates the transaction did not reach a checkpoint in time.
	ErrFinalityTimeout = errors.New("chain: timed out waiting for finality")

	// ErrInvalidTransaction indicates malformed transaction bytes.
	ErrInvalidTransaction = errors.New("chain: invalid transaction")

	// ErrNotRegistered indicates a digest is not a finalized registration of the blob.
	ErrNotRegistered = errors.New("chain: blob is not registered")

	// ErrNilParam indicates a required argument was nil.
	ErrNilParam = errors.New("chain: nil parameter")

	// ErrNotFound indicates a missing ledger record.
	ErrNotFound = errors.New("chain: record not found")
)
