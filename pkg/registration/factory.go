package registration

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a registration repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories (DBTX interface)
	DB DBTX
}

// NewRegistrationRepository creates a registration repository based on the persistence type
func NewRegistrationRepository(persistenceType string, config RepositoryConfig) (RegistrationRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresRegistrationRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemRegistrationRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
