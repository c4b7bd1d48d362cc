package identity

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize      = 16
	argonTime     = 1
	argonMemoryKB = 64 * 1024
	argonThreads  = 4
	argonKeyLen   = 32
)

// hashPassword derives a verifier from password using a fresh salt. The
// plaintext copy is wiped before returning.
func hashPassword(password string) (salt, hash []byte) {
	salt = common.GenerateRandByteArray(saltSize)
	return salt, derive(password, salt)
}

func derive(password string, salt []byte) []byte {
	pw := []byte(password)
	defer common.WipeByteArray(pw)
	return argon2.IDKey(pw, salt, argonTime, argonMemoryKB, argonThreads, argonKeyLen)
}

func checkPassword(password string, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(derive(password, salt), hash) == 1
}
