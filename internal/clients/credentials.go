package clients

import (
	"errors"
	"fmt"
	"os"

	"google.golang.org/api/option"
)

// ErrMissingCredentials is returned when neither GOOGLE_CREDENTIALS nor
// GOOGLE_APPLICATION_CREDENTIALS is set and explicit credentials are needed.
var ErrMissingCredentials = errors.New("missing Google Cloud credentials")

// CredentialOptions returns client options from the environment. Inline
// JSON in GOOGLE_CREDENTIALS wins over the file in
// GOOGLE_APPLICATION_CREDENTIALS. With neither set no option is returned and
// the SDK falls back to Application Default Credentials.
func CredentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

// CredentialsJSON returns the raw service account JSON. The Sheets client
// signs JWTs itself and cannot use Application Default Credentials.
func CredentialsJSON() ([]byte, error) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []byte(credJSON), nil
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		data, err := os.ReadFile(credFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return data, nil
	}
	return nil, ErrMissingCredentials
}
