package core

import (
	"strconv"
	"sync/atomic"
)

var aliasSeq atomic.Uint64

// Alias names one row-producing source. Aliases compare by identity; the
// sequence number only labels them in debug output.
type Alias struct {
	seq uint64
}

// NewAlias mints a fresh alias.
func NewAlias() *Alias {
	return &Alias{seq: aliasSeq.Add(1)}
}

// String returns a debug label such as "A12".
func (a *Alias) String() string {
	if a == nil {
		return "A?"
	}
	return "A" + strconv.FormatUint(a.seq, 10)
}
