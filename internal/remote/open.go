package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/quizflow/quizflow/internal/config"
)

// Open returns the store selected by cfg.Backend and a function that releases
// it.
func Open(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendRTDB:
		return NewRTDB(cfg.DatabaseURL, cfg.AuthToken, nil), noop, nil
	case config.BackendRedis:
		r, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
		if err != nil {
			return nil, nil, err
		}
		if cfg.BankFile != "" {
			if err := seed(ctx, r, cfg.BankFile); err != nil {
				r.Close()
				return nil, nil, err
			}
		}
		return r, r.Close, nil
	case config.BackendMemory:
		if cfg.BankFile == "" {
			return NewMemory(), noop, nil
		}
		m, err := LoadMemory(cfg.BankFile)
		if err != nil {
			return nil, nil, err
		}
		return m, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// seed copies the JSON export at path into s when s holds no data yet.
func seed(ctx context.Context, s Store, path string) error {
	root, err := s.Get(ctx, "")
	if err != nil {
		return err
	}
	if root.Exists() {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bank: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse bank %s: %w", path, err)
	}
	return s.Set(ctx, "", tree)
}
