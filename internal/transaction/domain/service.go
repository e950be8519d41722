package domain

import "context"

type Service interface {
	// CheckEligibility returns the transaction when a shipping label may be
	// created for it.
	CheckEligibility(ctx context.Context, transactionID string) (Transaction, error)
	Get(ctx context.Context, transactionID string) (Transaction, error)
}
