// Package credentials resolves provider API keys that are kept in the
// database instead of the environment, so a deployment can rotate them
// without restarting workers.
package credentials

import (
	"context"
	"strings"

	"storyteller/internal/infra"
	"storyteller/internal/sqlinline"
)

// Credential names recognized in the app_credentials table.
const (
	NameGeminiAPIKey = "gemini_api_key"
	NameSpeechAPIKey = "speech_api_key"
)

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Lookup returns the stored credential value, or "" when none is configured.
func (s *Store) Lookup(ctx context.Context, name string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectCredential, name)
	var value string
	if err := row.Scan(&value); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// Set stores or replaces a credential value.
func (s *Store) Set(ctx context.Context, name, value string) error {
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertCredential, name, strings.TrimSpace(value))
	return err
}
