package repository

import (
	"context"

	"saas-payment-core/internal/domain/model"
)

type InvoiceRepository interface {
	Save(ctx context.Context, tx Tx, inv *model.Invoice) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Invoice, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.InvoiceStatus) error
}
