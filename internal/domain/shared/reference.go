package shared

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// NewWithdrawalReference generates the human-traceable reference shared by a
// withdrawal, its bill and its payment transaction, e.g. W20260831094215483920.
// The timestamp prefix keeps references sortable for support staff; the random
// suffix guards against collisions within one second.
func NewWithdrawalReference() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to the clock
		binary.BigEndian.PutUint32(b[:], uint32(time.Now().UnixNano()))
	}
	suffix := binary.BigEndian.Uint32(b[:]) % 1000000
	return fmt.Sprintf("W%s%06d", time.Now().UTC().Format("20060102150405"), suffix)
}
