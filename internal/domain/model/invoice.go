package model

import "time"

type InvoiceStatus string

const (
	InvoiceStatusOpen    InvoiceStatus = "open"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// Invoice is the narrow slice of the invoicing domain this core consumes:
// a total to pay down and a derived paid/remaining position. Categories,
// approvals and the rest live with the invoicing collaborator.
type Invoice struct {
	ID        string
	TenantID  string // the company that issued the invoice and owns the gateway credentials
	Number    string
	Total     int64 // minor units
	Currency  string
	Status    InvoiceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LedgerEntry is the crediting side effect for invoices. At most one entry
// exists per (invoice_id, external_reference) pair; that uniqueness is what
// prevents double-crediting on webhook replay.
type LedgerEntry struct {
	ID                string
	InvoiceID         string
	Amount            int64 // minor units; negative entries represent refunds
	Gateway           Gateway
	ExternalReference string
	CreatedAt         time.Time
}
