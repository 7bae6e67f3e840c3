package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const recoveryCodeCount = 8

// GenerateRecoveryCodes returns n one-time codes in XXXX-XXXX form together
// with their hashes. Only the hashes are stored; the plaintexts are shown to
// the user once. n <= 0 uses the default of 8.
func GenerateRecoveryCodes(n int) (codes []string, hashes []string, err error) {
	if n <= 0 {
		n = recoveryCodeCount
	}
	codes = make([]string, 0, n)
	hashes = make([]string, 0, n)
	for i := 0; i < n; i++ {
		raw := make([]byte, 4)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, err
		}
		code := strings.ToUpper(hex.EncodeToString(raw))
		code = code[:4] + "-" + code[4:]
		hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, string(hashed))
	}
	return codes, hashes, nil
}

// VerifyRecoveryCode checks code against the stored JSON array of hashes.
// A matching code is consumed: the returned remainder no longer contains it.
func VerifyRecoveryCode(code, hashesJSON string) (valid bool, remainingJSON string) {
	var hashes []string
	if err := json.Unmarshal([]byte(hashesJSON), &hashes); err != nil {
		return false, "[]"
	}
	for i, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) == nil {
			remaining := append(hashes[:i:i], hashes[i+1:]...)
			out, err := json.Marshal(remaining)
			if err != nil {
				return true, "[]"
			}
			return true, string(out)
		}
	}
	return false, hashesJSON
}
