package out

import (
	"context"

	"mindmosaic/internal/modules/activity/domain"
)

// Identity answers who is driving the controller. It is consulted at start.
type Identity interface {
	IsAuthenticated(ctx context.Context) bool
	UserID(ctx context.Context) string
}

type CatalogSource interface {
	Load(ctx context.Context) (domain.Catalog, error)
}
