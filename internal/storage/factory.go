// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/hlynr/interceptor/internal/config"
	"github.com/hlynr/interceptor/internal/database"
	"github.com/hlynr/interceptor/internal/storage/gormdb"
	"github.com/hlynr/interceptor/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration. The
// database manager may be nil unless the database backend is selected.
func NewBackend(cfg config.StorageConfig, mgr *database.Manager) (Backend, error) {
	switch cfg.Type {
	case "database":
		if mgr == nil {
			return nil, fmt.Errorf("database backend requires a connected manager")
		}
		return gormdb.New(mgr), nil
	case "memory":
		return memory.New(memory.Config{ExportDir: cfg.Memory.OutputDir}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
