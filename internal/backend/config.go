package backend

import (
	"errors"
	"fmt"

	"bilancio/internal/config"
)

var backendTypes = []BackendType{FileBackend, SQLiteBackend, MemoryBackend}

// FromAppConfig picks the store settings out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Type:            BackendType(appConfig.DataBackend),
		DataDirectory:   appConfig.DataDir,
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		AMQPURL:         appConfig.AMQPURL,
		AMQPExchange:    appConfig.AMQPExchange,
		AMQPQueue:       appConfig.AMQPQueue,
		RequireCategory: appConfig.RequireCategory,
		SeedDemoData:    appConfig.SeedDemoData,
	}
	if !cfg.Type.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type %q, want one of %v", appConfig.DataBackend, GetBackendTypeStrings())
	}
	return cfg, nil
}

// Validate checks that the selected backend has the location it needs. The
// memory backend needs none; its directory only provides seed files.
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case FileBackend:
		if c.DataDirectory == "" {
			return errors.New("data directory is required for file backend")
		}
	case MemoryBackend:
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}

func GetBackendTypes() []BackendType {
	return append([]BackendType(nil), backendTypes...)
}

func GetBackendTypeStrings() []string {
	out := make([]string, len(backendTypes))
	for i, t := range backendTypes {
		out[i] = t.String()
	}
	return out
}
