// internal/app/system/authutil/authutil.go
// Package authutil validates and hashes account credentials.
package authutil

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72
)

// BcryptCost is a variable so tests can lower it.
var BcryptCost = bcrypt.DefaultCost

var (
	ErrPasswordTooShort = apperr.New(apperr.Invalid, fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères.", MinPasswordLength))
	ErrPasswordTooLong  = apperr.New(apperr.Invalid, fmt.Sprintf("Le mot de passe ne peut pas dépasser %d octets.", MaxPasswordLength))
	ErrPasswordCommon   = apperr.New(apperr.Invalid, "Ce mot de passe est trop courant.")
	ErrBadEmail         = apperr.New(apperr.Invalid, "Adresse e-mail invalide.")
)

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "motdepasse": {}, "12345678": {},
	"123456789": {}, "azertyuiop": {}, "qwertyuiop": {}, "iloveyou": {},
	"11111111": {}, "abcdefgh": {}, "sunshine": {}, "football": {},
	"bienvenue": {}, "welcome1": {}, "université": {}, "universite": {},
}

// ValidatePassword checks length and rejects well-known passwords.
func ValidatePassword(pw string) error {
	switch {
	case utf8.RuneCountInString(pw) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(pw) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	if _, ok := commonPasswords[strings.ToLower(pw)]; ok {
		return ErrPasswordCommon
	}
	return nil
}

// PasswordRules describes the policy for display next to the form.
func PasswordRules() string {
	return fmt.Sprintf("Au moins %d caractères, et pas un mot de passe courant.", MinPasswordLength)
}

// HashPassword returns the bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether pw matches hash. An empty hash (an account
// that only signs in through Firebase) never matches.
func CheckPassword(pw, hash string) bool {
	if hash == "" || pw == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// ValidateEmail returns ErrBadEmail unless s looks like local@domain.tld.
func ValidateEmail(s string) error {
	if !isValidEmail(strings.TrimSpace(s)) {
		return ErrBadEmail
	}
	return nil
}

func isValidEmail(s string) bool {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1 && !strings.HasPrefix(domain, ".")
}

// IsPolicyError reports whether err is one of the validation errors above.
func IsPolicyError(err error) bool {
	return errors.Is(err, apperr.ErrInvalid)
}
