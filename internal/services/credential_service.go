package services

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"resthub/internal/models"
)

// KDF parameters. Changing any of them invalidates every stored hash.
const (
	pbkdf2Iterations = 10000
	pbkdf2KeyLength  = 64
	saltLength       = 16
)

var ErrEmptyPassword = errors.New("password must not be empty")

// CredentialService derives and checks salted password hashes.
type CredentialService interface {
	Authenticate(user *models.User, password string) bool
	SetPassword(user *models.User, password string) error
}

type credentialService struct {
	random io.Reader
}

func NewCredentialService() CredentialService {
	return &credentialService{random: rand.Reader}
}

// Authenticate recomputes the hash with the user's salt and compares in constant time.
func (s *credentialService) Authenticate(user *models.User, password string) bool {
	if user == nil || user.PasswordHash == "" || user.Salt == "" {
		return false
	}

	hash, err := hashPassword(password, user.Salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(user.PasswordHash)) == 1
}

// SetPassword draws a fresh salt and stores the derived hash on user.
func (s *credentialService) SetPassword(user *models.User, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(s.random, salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	encodedSalt := base64.StdEncoding.EncodeToString(salt)
	hash, err := hashPassword(password, encodedSalt)
	if err != nil {
		return err
	}

	user.Salt = encodedSalt
	user.PasswordHash = hash
	return nil
}

func hashPassword(password, encodedSalt string) (string, error) {
	salt, err := base64.StdEncoding.DecodeString(encodedSalt)
	if err != nil {
		return "", fmt.Errorf("decoding salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	return base64.StdEncoding.EncodeToString(key), nil
}
