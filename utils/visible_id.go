package utils

import (
	"crypto/rand"
	"math/big"
)

const visibleIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// NewVisibleID returns a short url-safe public identifier for share links.
// 10 characters over a 64-symbol alphabet gives 60 bits, enough that collisions
// surface as a unique-index violation rather than needing coordination.
func NewVisibleID() string {
	return randomCode(10)
}

// NewShareCode returns a code for share snapshots, same alphabet as visible ids.
func NewShareCode() string {
	return randomCode(12)
}

func randomCode(n int) string {
	out := make([]byte, n)
	alphabetLen := big.NewInt(int64(len(visibleIDAlphabet)))
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			// crypto/rand failing is unrecoverable enough to not hide
			panic(err)
		}
		out[i] = visibleIDAlphabet[v.Int64()]
	}
	return string(out)
}
