package invite

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// CodeLength is the number of characters in a generated invite code.
const CodeLength = 8

// NewCode returns a random base58 invite code. The alphabet has no 0, O, I or l
// so codes survive being read aloud or retyped from a chat message.
func NewCode() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}

	// Leading zero bytes encode as '1', so drop the first byte from the range
	// that can produce them.
	buf[0] |= 0x80

	return base58.Encode(buf)[:CodeLength], nil
}
