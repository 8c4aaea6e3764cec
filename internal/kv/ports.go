// Package kv declares the durable key/value port the ledger persists through.
package kv

import "context"

// Ports for outbound adapters.
type (
	// Getter reads a value. ok is false when the key has never been set.
	Getter interface {
		Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	}

	// Setter replaces the value stored under key.
	Setter interface {
		Set(ctx context.Context, key string, value []byte) error
	}

	// Store is the persistence adapter consumed by the ledger.
	Store interface {
		Getter
		Setter
	}
)
