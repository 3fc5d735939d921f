package cli

import "errors"

// Sentinel errors distinguishing CLI failure categories; Cobra itself already
// handles usage/flag errors, so these only cover business-logic failures.
var (
	// ErrConfig indicates the configuration file failed to load or validate.
	ErrConfig = errors.New("configuration error")

	// ErrIdentity indicates the identity provider could not be constructed
	// or produce usable TLS material.
	ErrIdentity = errors.New("identity error")

	// ErrUnreachable indicates a peer agent could not be reached.
	ErrUnreachable = errors.New("unreachable")
)
