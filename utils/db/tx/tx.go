package tx

import (
	"context"

	"klinechart/utils/db"

	"github.com/go-jet/jet/v2/qrm"
)

type TxExtension struct {
	Database *db.Database
}

// GetTx : Transaction 블록 안이면 그 tx, 아니면 DB 그대로
func (p TxExtension) GetTx(ctx context.Context) qrm.DB {
	if tx, ok := db.TxFromContext(ctx); ok {
		return tx
	}
	return p.Database.DbForJet
}
