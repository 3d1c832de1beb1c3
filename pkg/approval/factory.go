package approval

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating an approval repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories (DBTX interface)
	DB DBTX
}

// NewApprovalRepository creates an approval repository based on the persistence type
func NewApprovalRepository(persistenceType string, config RepositoryConfig) (ApprovalRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresApprovalRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemApprovalRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
