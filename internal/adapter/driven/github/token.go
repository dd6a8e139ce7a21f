package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// tokenFileTransport authenticates each request with the token currently in
// a file. The file holds either a bare token or a JSON object with an
// "access_token" or "token" field.
type tokenFileTransport struct {
	path string
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *tokenFileTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.path == "" {
		return t.base.RoundTrip(req)
	}

	token, err := readToken(t.path)
	if err != nil {
		return nil, err
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(authed)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, "{") {
		var doc struct {
			AccessToken string `json:"access_token"`
			Token       string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return "", fmt.Errorf("parse token file: %w", err)
		}
		raw = doc.AccessToken
		if raw == "" {
			raw = doc.Token
		}
	}

	if raw == "" {
		return "", errors.New("token file is empty")
	}
	return raw, nil
}
