package vectorstore

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// collectionLimitPattern recognizes quota errors from hosted Qdrant. Qdrant
// does not expose a stable error code for this, so matching the message is
// best effort.
var collectionLimitPattern = regexp.MustCompile(`(?i)limit.*collection|collection.*limit`)

// classifyCreateError maps quota failures to ErrCollectionLimitExceeded and
// leaves every other error untouched.
func classifyCreateError(err error) error {
	if err == nil {
		return nil
	}
	if collectionLimitPattern.MatchString(err.Error()) {
		return fmt.Errorf("%w: %s", ErrCollectionLimitExceeded, collectionLimitMessage)
	}
	return err
}

// ensureCollection runs create unless the collection already exists.
func ensureCollection(ctx context.Context, db VectorDatabase, logger *zap.Logger, name string, dimension int, create func() error) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := validateDimension(dimension); err != nil {
		return err
	}
	exists, err := db.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		logger.Debug("collection already exists, skipping creation", zap.String("collection", name))
		return nil
	}
	if err := classifyCreateError(create()); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	logger.Info("collection created", zap.String("collection", name), zap.Int("dimension", dimension))
	return nil
}
