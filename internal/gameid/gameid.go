// Package gameid generates sortable, prefixed identifiers for rooms and
// players in the TypeID format: "<prefix>_<26 char base32 UUIDv7>".
package gameid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

const suffixLen = 26

// Prefixes for the identifiers handed out by the engine.
const (
	RoomPrefix   = "room"
	PlayerPrefix = "player"
)

// RandSource interface for dependency injection of randomness
type RandSource interface {
	IntN(n int) int
}

// Generator produces identifiers with a fixed prefix.
type Generator struct {
	prefix     string
	randSource RandSource
	now        func() time.Time
}

// NewGenerator creates a generator for prefix. A nil randSource uses crypto/rand.
func NewGenerator(prefix string, randSource RandSource) *Generator {
	return &Generator{prefix: prefix, randSource: randSource}
}

// Rooms returns the production room id generator.
func Rooms() *Generator { return NewGenerator(RoomPrefix, nil) }

// Players returns the production player id generator.
func Players() *Generator { return NewGenerator(PlayerPrefix, nil) }

// Generate returns a new identifier.
func (g *Generator) Generate() string {
	return g.prefix + "_" + encodeBase32(g.generateUUIDv7())
}

// generateUUIDv7 creates a 128-bit UUIDv7: 48-bit millisecond timestamp,
// version nibble 7, variant 10, remaining bits random. Production generators
// defer to google/uuid; an injected clock or source builds the bits here.
func (g *Generator) generateUUIDv7() [16]byte {
	if g.randSource == nil && g.now == nil {
		return [16]byte(uuid.Must(uuid.NewV7()))
	}

	var id [16]byte

	clock := g.now
	if clock == nil {
		clock = time.Now
	}
	now := clock().UnixMilli()
	id[0] = byte(now >> 40)
	id[1] = byte(now >> 32)
	id[2] = byte(now >> 24)
	id[3] = byte(now >> 16)
	id[4] = byte(now >> 8)
	id[5] = byte(now)

	if g.randSource != nil {
		for i := 6; i < 16; i++ {
			id[i] = byte(g.randSource.IntN(256))
		}
	} else if _, err := rand.Read(id[6:]); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}

	id[6] = (id[6] & 0x0f) | 0x70
	id[8] = (id[8] & 0x3f) | 0x80

	return id
}

// encodeBase32 encodes a 128-bit UUID as a 26-character base32 string. The
// value is treated as 130 bits with two leading zero bits, so the first
// character is always 0-7.
func encodeBase32(data [16]byte) string {
	result := make([]byte, suffixLen)

	// Walk the 130-bit number from the least significant end.
	var acc uint32
	bits := 0
	pos := suffixLen - 1
	for i := 15; i >= 0; i-- {
		acc |= uint32(data[i]) << bits
		bits += 8
		for bits >= 5 && pos >= 0 {
			result[pos] = alphabet[acc&0x1f]
			acc >>= 5
			bits -= 5
			pos--
		}
	}
	for pos >= 0 {
		result[pos] = alphabet[acc&0x1f]
		acc >>= 5
		pos--
	}

	return string(result)
}

// Validate checks that id has the expected prefix and a well formed suffix.
func Validate(prefix, id string) error {
	p, suffix, ok := strings.Cut(id, "_")
	if !ok {
		return fmt.Errorf("id %q is missing a prefix separator", id)
	}
	if p != prefix {
		return fmt.Errorf("id %q has prefix %q, want %q", id, p, prefix)
	}
	if len(suffix) != suffixLen {
		return fmt.Errorf("id suffix must be exactly %d characters, got %d", suffixLen, len(suffix))
	}
	if suffix[0] > '7' {
		return fmt.Errorf("id suffix first character must be 0-7, got %c", suffix[0])
	}
	for i, char := range suffix {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}
