// Package button is the registry of physical keys.
//
// Every key of every attached deck has exactly one Button record, keyed by
// a stable slot index. The record carries a human-readable public UUID
// (for example "brave-otter-07") that remote clients use to address the
// key. UUIDs are allocated once, on first discovery, and persisted
// immediately, so a restart never renames a button.
//
// Slots are derived from a per-serial base allocated in the decks table
// (see EnsureDeck): slot = base + key index.
//
// The registry also owns the press state table used by the press
// classifier. States are transient and cleared at startup.
//
// Usage:
//
//	repo := button.NewSQLiteRepository(db.DB)
//	reg := button.NewRegistry(repo)
//	if err := reg.Load(ctx); err != nil {
//	    return err
//	}
//	base, _ := reg.EnsureDeck(ctx, serial, 15)
//	btn, created, err := reg.Ensure(ctx, serial, base+4, button.PositionOf(4, 5))
package button
