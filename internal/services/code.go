package services

import (
	"context"
	"crypto/rand"
	"math/big"
)

const (
	codeAlphabet           = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	defaultCodeLength      = 8
	widenedCodeExtra       = 4
	defaultCodeMaxAttempts = 10
)

// CodeLookup reports whether a confirmation code is already in use.
type CodeLookup interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator produces random alphanumeric confirmation codes that are not
// yet stored. The unique index on reservations.code stays the authority; this
// check only keeps collisions rare.
type CodeGenerator struct {
	length      int
	maxAttempts int
	random      func(length int) (string, error)
}

// NewCodeGenerator returns a generator for codes of the given length that
// tries maxAttempts candidates before widening the code once.
func NewCodeGenerator(length, maxAttempts int) *CodeGenerator {
	if length <= 0 {
		length = defaultCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultCodeMaxAttempts
	}
	return &CodeGenerator{
		length:      length,
		maxAttempts: maxAttempts,
		random:      randomCode,
	}
}

// Generate returns a code unknown to lookup. After maxAttempts collisions it
// retries with a code widenedCodeExtra characters longer, and gives up with
// ErrCodeSpaceExhausted when that also fails.
func (g *CodeGenerator) Generate(ctx context.Context, lookup CodeLookup) (string, error) {
	for _, length := range []int{g.length, g.length + widenedCodeExtra} {
		for attempt := 0; attempt < g.maxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			candidate, err := g.random(length)
			if err != nil {
				return "", err
			}
			exists, err := lookup.CodeExists(ctx, candidate)
			if err != nil {
				return "", storageError("check code", err)
			}
			if !exists {
				return candidate, nil
			}
		}
	}
	return "", ErrCodeSpaceExhausted
}

func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
