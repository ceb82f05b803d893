package walrus

import (
	"fmt"
	"sync"

	"github.com/bitfsorg/sealvault-go/blobfile"
	"github.com/bitfsorg/sealvault-go/chain"
)

// State is a step of the publish protocol. Transitions only move forward.
type State int

const (
	StateEncoded State = iota + 1
	StateRegistered
	StateFinalized
	StateUploaded
	StateCertified
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateEncoded:
		return "encoded"
	case StateRegistered:
		return "registered"
	case StateFinalized:
		return "finalized"
	case StateUploaded:
		return "uploaded"
	case StateCertified:
		return "certified"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FileRef describes one file of a certified blob.
type FileRef struct {
	BlobID     string
	Identifier string
	Tags       map[string]string
}

// Flow is one attempt to publish a blob. A failed step aborts it and it
// cannot be resumed.
type Flow struct {
	mu            sync.Mutex
	state         State
	encoded       *blobfile.Encoded
	registration  *chain.Receipt
	confirmations []*Confirmation
	certification *chain.Receipt
	abortErr      error
}

func newFlow(enc *blobfile.Encoded) *Flow {
	return &Flow{state: StateEncoded, encoded: enc}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// BlobID returns the content-derived id. It is not a published id until
// the flow is certified.
func (f *Flow) BlobID() string { return f.encoded.BlobID }

// Encoded returns the encoded blob.
func (f *Flow) Encoded() *blobfile.Encoded { return f.encoded }

// Registration returns the registration receipt, or nil.
func (f *Flow) Registration() *chain.Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registration
}

// Confirmations returns the storage confirmations collected by Upload.
func (f *Flow) Confirmations() []*Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Confirmation(nil), f.confirmations...)
}

// transition moves the flow from one state to the next. f.mu is held.
func (f *Flow) transition(from, to State) error {
	if f.state == StateAborted {
		return fmt.Errorf("%w: %w", ErrFlowAborted, f.abortErr)
	}
	if f.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidState, from, to, f.state)
	}
	f.state = to
	return nil
}

// Registered records the executed register transaction.
func (f *Flow) Registered(r *chain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReceipt(r, chain.KindRegisterBlob); err != nil {
		return err
	}
	if err := f.transition(StateEncoded, StateRegistered); err != nil {
		return err
	}
	f.registration = r
	return nil
}

// Finalize records that the registration reached a checkpoint.
func (f *Flow) Finalize(r *chain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registration == nil || r == nil || r.Digest != f.registration.Digest {
		return fmt.Errorf("%w: finality receipt is not for the registration", ErrRegistrationMismatch)
	}
	if !r.Finalized || !r.Succeeded() {
		return fmt.Errorf("%w: registration %s not finalized", ErrInvalidState, r.Digest)
	}
	if err := f.transition(StateRegistered, StateFinalized); err != nil {
		return err
	}
	f.registration = r
	return nil
}

func (f *Flow) uploaded(confs []*Confirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transition(StateFinalized, StateUploaded); err != nil {
		return err
	}
	f.confirmations = confs
	return nil
}

// Complete records the executed certify transaction.
func (f *Flow) Complete(r *chain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkReceipt(r, chain.KindCertifyBlob); err != nil {
		return err
	}
	if err := f.transition(StateUploaded, StateCertified); err != nil {
		return err
	}
	f.certification = r
	return nil
}

// Abort marks the flow failed. Later steps return ErrFlowAborted.
func (f *Flow) Abort(cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateCertified || f.state == StateAborted {
		return
	}
	f.state = StateAborted
	f.abortErr = cause
}

// ListFiles returns the files of a certified blob.
func (f *Flow) ListFiles() ([]FileRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateCertified {
		return nil, fmt.Errorf("%w: flow is %s", ErrNotCertified, f.state)
	}
	refs := make([]FileRef, len(f.encoded.Files))
	for i, file := range f.encoded.Files {
		tags := make(map[string]string, len(file.Tags))
		for k, v := range file.Tags {
			tags[k] = v
		}
		refs[i] = FileRef{BlobID: f.encoded.BlobID, Identifier: file.Identifier, Tags: tags}
	}
	return refs, nil
}

func (f *Flow) checkReceipt(r *chain.Receipt, kind chain.Kind) error {
	if r == nil || !r.Succeeded() {
		return fmt.Errorf("%w: %s did not succeed", ErrRegistrationMismatch, kind)
	}
	if tx := r.Transaction; tx != nil {
		if tx.Kind != kind || tx.Arg(chain.ArgBlobID) != f.encoded.BlobID {
			return fmt.Errorf("%w: %s receipt %s", ErrRegistrationMismatch, kind, r.Digest)
		}
	}
	return nil
}
