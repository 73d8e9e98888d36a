package services

import (
	"context"
	"errors"

	"resthub/internal/common"
	"resthub/internal/models"
)

// UserBeforeSave normalizes the email and, when the password key was sent,
// replaces the plaintext with a freshly salted hash.
func UserBeforeSave(credentials CredentialService) BeforeSaveFunc {
	return func(ctx context.Context, doc, patch models.Document) error {
		if email, ok := doc["email"].(string); ok {
			doc["email"] = common.NormalizeEmail(email)
		}
		if _, ok := doc["role"]; !ok {
			doc["role"] = models.RoleUser
		}

		raw, modified := patch["password"]
		if !modified {
			return nil
		}

		plaintext, _ := raw.(string)
		var user models.User
		if err := credentials.SetPassword(&user, plaintext); err != nil {
			if errors.Is(err, ErrEmptyPassword) {
				return common.NewValidationError([]common.FieldError{{
					Field:   "password",
					Code:    "required",
					Message: "Invalid password",
				}})
			}
			return err
		}

		doc["password"] = user.PasswordHash
		doc["salt"] = user.Salt
		return nil
	}
}
