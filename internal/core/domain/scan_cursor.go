package domain

import "context"

// ScanCursor records how far the wallet scanned the node's output PMMR.
// Root is the PMMR root the node reported at LastRetrievedIndex and lets the
// next scan detect a reorg or a node switch.
type ScanCursor struct {
	LastRetrievedIndex uint64
	HighestIndex       uint64
	Root               string
	TipHeight          uint64
	UpdatedAt          int64
}

// IsZero returns whether nothing was scanned yet.
func (c ScanCursor) IsZero() bool {
	return c.LastRetrievedIndex == 0 && c.Root == ""
}

// ScanCursorRepository persists the single scan cursor of the wallet.
type ScanCursorRepository interface {
	// GetCursor returns the stored cursor, the zero one if none was stored.
	GetCursor(ctx context.Context) (*ScanCursor, error)
	UpdateCursor(ctx context.Context, cursor ScanCursor) error
}
