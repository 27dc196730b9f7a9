package chain

import (
	"context"

	"github.com/meshledger/ledger-node/src/entity"
)

// UploadRepository is the thin adapter over the blockchain registry the
// Upload worker consumes (spec §2, C5).
type UploadRepository struct {
	client Client
}

func NewUploadRepository(client Client) *UploadRepository {
	return &UploadRepository{client: client}
}

func (r *UploadRepository) CheckIfEnoughFundsForUpload(ctx context.Context, storagePeriods int) (bool, error) {
	return r.client.CheckIfEnoughFundsForUpload(ctx, storagePeriods)
}

func (r *UploadRepository) BundleItemsCountLimit(ctx context.Context) (int, error) {
	return r.client.BundleItemsCountLimit(ctx)
}

func (r *UploadRepository) UploadBundleProof(ctx context.Context, bundle *entity.Bundle, storagePeriods int) (int64, string, error) {
	return r.client.UploadBundleProof(ctx, bundle, storagePeriods)
}
