package game

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
	inviteTokenBytes = 16

	// maxRoomCodeAttempts bounds retries against codes held by unfinished games.
	maxRoomCodeAttempts = 10
)

// GenerateRoomCode returns a random six character code. The alphabet drops
// characters that are easy to misread (I, O, 0, 1).
func GenerateRoomCode() (string, error) {
	code := make([]byte, roomCodeLength)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// GenerateInviteToken returns 16 random bytes hex encoded.
func GenerateInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IsRoomCode reports whether s has the shape of a generated room code.
func IsRoomCode(s string) bool {
	if len(s) != roomCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(roomCodeAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
