package walrus

import "errors"

var (
	// ErrInvalidState indicates a flow step called out of order.
	ErrInvalidState = errors.New("walrus: invalid flow state")

	// ErrFlowAborted indicates a step on a flow that already failed.
	ErrFlowAborted = errors.New("walrus: flow aborted")

	// ErrNotCertified indicates files were listed before certification.
	ErrNotCertified = errors.New("walrus: blob is not certified")

	// ErrNoNodes indicates a client without storage nodes.
	ErrNoNodes = errors.New("walrus: no storage nodes configured")

	// ErrNotEnoughConfirmations indicates fewer nodes stored slivers than needed to rebuild the blob.
	ErrNotEnoughConfirmations = errors.New("walrus: not enough storage confirmations")

	// ErrRegistrationMismatch indicates a receipt that does not belong to the flow.
	ErrRegistrationMismatch = errors.New("walrus: receipt does not match flow")

	// ErrSliverNotFound indicates a node does not hold the requested sliver.
	ErrSliverNotFound = errors.New("walrus: sliver not found")

	// ErrBlobUnavailable indicates too few slivers could be read to rebuild a blob.
	ErrBlobUnavailable = errors.New("walrus: blob unavailable")

	// ErrNodeRequest indicates a transport failure talking to a storage node.
	ErrNodeRequest = errors.New("walrus: storage node request failed")

	// ErrUnregistered indicates a node refused slivers for a blob that is not registered.
	ErrUnregistered = errors.New("walrus: blob registration not accepted")

	// ErrInvalidOptions indicates bad client configuration or register options.
	ErrInvalidOptions = errors.New("walrus: invalid options")

	// ErrNotFound indicates a cache miss.
	ErrNotFound = errors.New("walrus: not found in cache")

	// ErrIOFailure indicates a cache read or write error.
	ErrIOFailure = errors.New("walrus: I/O failure")

	// ErrInvalidBaseDir indicates an empty cache directory.
	ErrInvalidBaseDir = errors.New("walrus: invalid base directory")

	// ErrDiscoveryFailed indicates SRV discovery found no usable nodes.
	ErrDiscoveryFailed = errors.New("walrus: node discovery failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("walrus: DNSSEC validation failed")
)
