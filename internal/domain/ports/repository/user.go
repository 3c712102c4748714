package repository

import "context"

// Buyer is the slice of user identity the gateways need.
type Buyer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// UserDirectory is the read-only identity lookup exposed by the accounts
// subsystem.
type UserDirectory interface {
	FindBuyer(ctx context.Context, userID string) (*Buyer, error)
}
