package crypto

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

var (
	dummyOnce sync.Once
	dummyHash string
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// DummyHash returns a hash at the login cost that no submitted password
// matches. Comparing against it keeps lookups of unknown accounts as slow as
// a wrong password.
func DummyHash() string {
	dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("unmatched-login-placeholder"), passwordCost)
		if err != nil {
			panic(err)
		}
		dummyHash = string(hash)
	})
	return dummyHash
}
