package ports

import (
	"context"

	"pulsaroutlier/domain/chain"
)

// ChainStore persists chain tables between checkpoints
type ChainStore interface {
	// Save overwrites the persisted tables with t
	Save(ctx context.Context, t *chain.Tables) error

	// Load reads every persisted table. Tables may differ in length when a
	// previous flush was interrupted; callers truncate.
	Load(ctx context.Context) (*chain.Tables, error)

	// Exists reports whether any persisted table is present
	Exists(ctx context.Context) (bool, error)
}
