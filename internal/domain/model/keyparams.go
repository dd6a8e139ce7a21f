package model

// KeyParams holds the per-vault key derivation parameters. They are written
// once, on the first unlock of a new vault file, and never change afterwards.
type KeyParams struct {
	Salt      []byte
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// IsZero reports whether no parameters have been set.
func (p KeyParams) IsZero() bool {
	return len(p.Salt) == 0 && p.Time == 0 && p.MemoryKiB == 0 && p.Threads == 0
}
