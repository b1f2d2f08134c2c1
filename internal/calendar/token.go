package calendar

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
)

// StaticTokenStore serves one pre-authorized token for every business. It is
// meant for single-tenant deployments and development; multi-tenant setups
// plug in a store backed by the sync component's token vault.
type StaticTokenStore struct {
	token *oauth2.Token
}

// NewStaticTokenStore parses an oauth2 token from its JSON form.
func NewStaticTokenStore(tokenJSON []byte) (*StaticTokenStore, error) {
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse calendar token: %w", err)
	}
	return &StaticTokenStore{token: &token}, nil
}

func (s *StaticTokenStore) TokenSource(_ context.Context, _ string) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(s.token), nil
}
