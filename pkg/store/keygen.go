package store

import (
	"crypto/rand"
	"encoding/hex"
	"hash/fnv"
	"strconv"
)

// tokenBytes sizes the random part of a key; 16 bytes is far beyond the
// required 10^12 distinct values.
const tokenBytes = 16

// GenerateKey builds an access key: a random token salted with a decimal
// hash of the configuration name. Uniqueness is enforced by the database,
// not here, so the hash only needs to be deterministic.
func GenerateKey(name string) string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic("store: reading random source: " + err.Error())
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	return hex.EncodeToString(buf) + strconv.FormatUint(h.Sum64(), 10)
}
