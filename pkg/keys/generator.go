package keys

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// MinKeyValue is "1000" in the key encoding. Every key drawn at or above
	// it is at least four characters long.
	MinKeyValue = 46656

	// MaxKeyValue is "zzzzzzzz" in the key encoding, capping keys at eight
	// characters.
	MaxKeyValue = 2821109907455
)

var keyspan = big.NewInt(MaxKeyValue - MinKeyValue + 1)

// Candidate draws a uniformly random key from the bounded keyspace. It does
// not check uniqueness; callers resolve collisions by retrying.
func Candidate() (string, error) {
	n, err := rand.Int(rand.Reader, keyspan)
	if err != nil {
		return "", fmt.Errorf("drawing key: %w", err)
	}
	return Encode(n.Int64() + MinKeyValue), nil
}

// Unique generates candidates until one is neither reserved nor taken.
// There is no retry cap: the keyspace (~2.8e12) is sparse relative to any
// realistic link count, so repeated collisions are statistically negligible.
// Near keyspace exhaustion this loop could spin for a long time, which is why
// it honors context cancellation.
func Unique(ctx context.Context, taken func(context.Context, string) (bool, error), reserved func(string) bool) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		key, err := Candidate()
		if err != nil {
			return "", err
		}
		if reserved != nil && reserved(key) {
			continue
		}
		inUse, err := taken(ctx, key)
		if err != nil {
			return "", err
		}
		if !inUse {
			return key, nil
		}
	}
}
