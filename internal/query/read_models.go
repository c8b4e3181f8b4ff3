package query

// Re-export read models from readmodel package so api handlers depend on query only
import "github.com/example/stock-ledger/internal/readmodel"

type ItemReadModel = readmodel.ItemReadModel
type MovementReadModel = readmodel.MovementReadModel
type OrderReadModel = readmodel.OrderReadModel
type StockReadModel = readmodel.StockReadModel
type EventReadModel = readmodel.EventReadModel
