package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alanmeadows/termbridge/internal/protocol"
	"github.com/alanmeadows/termbridge/internal/secrets"
)

// Source reloads the configuration for every exchange, so edits to the port
// or token take effect on the next command without restarting the shell.
type Source struct {
	// Path is an explicit config file; empty uses the default layering.
	Path string
	// Secrets is consulted when no token is configured. May be nil.
	Secrets secrets.Store
}

// Endpoint loads the config and resolves the token.
func (s *Source) Endpoint(ctx context.Context) (protocol.Endpoint, error) {
	cfg, err := Load(s.Path)
	if err != nil {
		return protocol.Endpoint{}, err
	}
	token, err := ResolveToken(cfg, s.Secrets)
	if err != nil {
		return protocol.Endpoint{}, err
	}
	return protocol.Endpoint{
		Host:    cfg.Server.Host,
		Port:    int(cfg.Server.Port),
		Token:   token,
		Timeout: cfg.Server.ParseTimeout(),
	}, nil
}

// ResolveToken picks the agent token: the configured value (which includes
// TERMBRIDGE_TOKEN), then the token file, then the keyring. An empty result
// is allowed; agents without authentication accept it.
func ResolveToken(cfg *Config, store secrets.Store) (string, error) {
	if cfg.Server.Token != "" {
		return cfg.Server.Token, nil
	}

	if cfg.Server.TokenFile != "" {
		data, err := os.ReadFile(ExpandHome(cfg.Server.TokenFile))
		if err != nil {
			return "", fmt.Errorf("reading token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if store == nil {
		return "", nil
	}
	token, err := store.Token()
	if errors.Is(err, secrets.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		slog.Debug("keyring unavailable, continuing without token", "error", err)
		return "", nil
	}
	return token, nil
}
