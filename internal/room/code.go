package room

import (
	"context"
	"crypto/rand"
)

const (
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength  = 6

	// maxCodeAttempts caps the uniqueness retry loop. With 36^6
	// possible codes a collision streak this long means something is
	// badly wrong, so we fail instead of spinning.
	maxCodeAttempts = 64
)

// codeChecker is the slice of Store the generator needs.
type codeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// generateCode returns a random 6-character uppercase alphanumeric code.
func generateCode() string {
	b := make([]byte, codeLength)
	rand.Read(b)
	for i := range b {
		b[i] = codeCharset[int(b[i])%len(codeCharset)]
	}
	return string(b)
}

// generateUniqueCode produces a code no existing room holds. It only
// reads from the store; the caller is responsible for holding whatever
// lock makes the check-then-create atomic.
func generateUniqueCode(ctx context.Context, store codeChecker) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := generateCode()
		taken, err := store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}
