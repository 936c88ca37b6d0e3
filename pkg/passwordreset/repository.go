package passwordreset

import "context"

// Repository stores reset token records and joins the transaction bound to ctx.
type Repository interface {
	Save(ctx context.Context, params SaveParams) (*ResetTokenRecord, error)
	GetByJTI(ctx context.Context, jti string) (*ResetTokenRecord, error)
	// MarkUsed consumes the record and reports false when it was already used.
	MarkUsed(ctx context.Context, id int64) (bool, error)
	// MarkOutstandingUsed consumes every unused record of the account.
	MarkOutstandingUsed(ctx context.Context, accountID int64) (int64, error)
}
