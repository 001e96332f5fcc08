package memstore

import (
	"context"

	"github.com/graphkit/entitycache/errs"
	"github.com/graphkit/entitycache/storeapi"
)

// txKey is the unexported context key memstore uses to carry the ambient
// transaction, mirroring the "context value the surrounding request/
// transaction middleware installs" manager.TxProvider expects callers to
// supply.
type txKey struct{}

// WithTx returns a context carrying tx as the ambient transaction.
func WithTx(ctx context.Context, tx *Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxProvider is a manager.TxProvider backed by WithTx/context.Value. Pass it
// as Config.TxProvider when wiring an EntityManager against memstore.
func TxProvider(ctx context.Context) (storeapi.TransactionContext, error) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	if !ok || tx == nil {
		return nil, errs.NewInvalidArgument("TxProvider", "no transaction in context")
	}
	return tx, nil
}
