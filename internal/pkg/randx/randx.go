/*
Package randx provides cryptographically secure random identifiers.

It generates Base62 suffixes for call-room ids and UUID v4 strings for
connection handles and session ids.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// CallRoomPrefix is the reserved prefix of system-created call rooms.
	CallRoomPrefix = "call-"

	// CallRoomSuffixLength is the number of random Base62 characters in a call-room id.
	CallRoomSuffixLength = 6
)

// Base62 returns n cryptographically random Base62 characters.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// CallRoomIDs hands out call-room ids of the form call-<seq>-<suffix>.
// The sequence makes ids unique within the process even if the random source repeats.
type CallRoomIDs struct {
	seq atomic.Uint64
}

// Next returns a fresh call-room id.
func (g *CallRoomIDs) Next() (string, error) {
	suffix, err := Base62(CallRoomSuffixLength)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%d-%s", CallRoomPrefix, g.seq.Add(1), suffix), nil
}

// IsCallRoom reports whether roomID uses the reserved call-room naming convention.
func IsCallRoom(roomID string) bool {
	return strings.HasPrefix(roomID, CallRoomPrefix)
}

// UUID generates a standard UUID v4 string.
func UUID() string {
	return uuid.New().String()
}
