package transaction

import "context"

// Manager runs fn inside a database transaction carried by ctx.
// Calls made with a ctx that already carries a transaction join it.
type Manager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
