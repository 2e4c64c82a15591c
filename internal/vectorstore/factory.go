package vectorstore

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Provider names accepted by NewStore.
const (
	ProviderREST    = "rest"
	ProviderGRPC    = "grpc"
	ProviderChromem = "chromem"
)

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Provider string
	REST     RESTConfig
	GRPC     GRPCConfig
	Chromem  ChromemConfig
}

// NewStore returns the backend named by config.Provider. An empty provider
// selects the REST adapter.
func NewStore(config StoreConfig, logger *zap.Logger) (VectorDatabase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", ProviderREST:
		return NewRESTStore(config.REST, logger), nil
	case ProviderGRPC:
		return NewGRPCStore(config.GRPC, logger), nil
	case ProviderChromem:
		return NewChromemStore(config.Chromem, logger), nil
	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider: %s", ErrInvalidConfig, config.Provider)
	}
}
