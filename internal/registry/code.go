package registry

import (
	"crypto/rand"
	"math/big"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

// GenerateCode produces a short shareable room code. Uniqueness is not
// guaranteed here; the registry collision-checks against live rooms when it
// creates one. Codes are case-sensitive everywhere downstream.
func GenerateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		code[i] = codeAlphabet[num.Int64()]
	}
	return string(code)
}
