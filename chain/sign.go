package chain

import (
	"context"
	"fmt"

	"github.com/bitfsorg/sealvault-go/identity"
)

// SignAndExecute serializes tx, signs it with signer and executes it on svc.
// A receipt with a failure status is returned together with ErrTxFailed.
func SignAndExecute(ctx context.Context, svc Service, signer identity.Signer, tx *Transaction) (*Receipt, error) {
	if svc == nil || signer == nil || tx == nil {
		return nil, ErrNilParam
	}
	if tx.Sender == "" {
		tx.Sender = signer.Address()
	}
	if tx.Sender != signer.Address() {
		return nil, fmt.Errorf("%w: sender %s is not the signer", ErrInvalidTransaction, tx.Sender)
	}

	txBytes, err := tx.Bytes()
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignTransaction(txBytes)
	if err != nil {
		return nil, fmt.Errorf("chain: sign %s: %w", tx.Kind, err)
	}

	receipt, err := svc.ExecuteTransaction(ctx, txBytes, sig)
	if err != nil {
		return nil, err
	}
	if receipt.Transaction == nil {
		receipt.Transaction = tx
	}
	if !receipt.Succeeded() {
		return receipt, fmt.Errorf("%w: %s %s: %s", ErrTxFailed, tx.Kind, receipt.Digest, receipt.Error)
	}
	return receipt, nil
}

// CheckRegistration verifies that digest is a finalized, successful
// registration of blobID. Storage nodes call it before accepting slivers.
func CheckRegistration(ctx context.Context, svc Service, digest, blobID string) error {
	receipt, err := svc.GetTransaction(ctx, digest)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotRegistered, digest, err)
	}
	if !receipt.Succeeded() || !receipt.Finalized {
		return fmt.Errorf("%w: %s is not finalized", ErrNotRegistered, digest)
	}
	tx := receipt.Transaction
	if tx == nil || tx.Kind != KindRegisterBlob || tx.Arg(ArgBlobID) != blobID {
		return fmt.Errorf("%w: %s does not register %s", ErrNotRegistered, digest, blobID)
	}
	return nil
}
