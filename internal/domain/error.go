package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Payment errors
	ErrGatewayNotConfigured = errors.New("gateway not configured for tenant")
	ErrAuthenticity         = errors.New("callback authenticity verification failed")
	ErrAmountMismatch       = errors.New("confirmed amount does not match intent")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
	ErrUnknownGateway       = errors.New("unknown gateway")
	ErrInvoiceSettled       = errors.New("invoice already settled")
	ErrInvalidPaymentToken  = errors.New("invalid payment token")
)
