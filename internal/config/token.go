package config

import (
	"fmt"

	"github.com/google/uuid"
)

const apiTokenKey = "server.api_token"

// GetAPIToken returns the bearer token protecting the local HTTP API,
// generating and persisting one on first use. The token lives in the config
// file, not in ShowAll output.
func GetAPIToken() (string, error) {
	return getAPIToken(newFileBackend())
}

func getAPIToken(b Backend) (string, error) {
	tok, ok, err := b.GetString(apiTokenKey)
	if err != nil {
		return "", fmt.Errorf("reading api token: %w", err)
	}
	if ok && tok != "" {
		return tok, nil
	}

	tok = uuid.NewString()
	if err := b.SetString(apiTokenKey, tok); err != nil {
		return "", fmt.Errorf("storing api token: %w", err)
	}
	return tok, nil
}
