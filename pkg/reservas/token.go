package reservas

import (
	"crypto/rand"
	"encoding/base64"
)

const confirmationTokenBytes = 32

// NewConfirmationToken returns a URL-safe random token of 43 characters.
func NewConfirmationToken() (string, error) {
	buffer := make([]byte, confirmationTokenBytes)
	if _, err := rand.Read(buffer); err != nil {
		return "", WrapError(errorOperationService, errorSubjectToken, errorCodeGenerate, err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
