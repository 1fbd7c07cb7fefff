package db

import "context"

type CustomerTotalsRow struct {
	Name string
	N    int64
}

func (q *Queries) CustomerTotals(ctx context.Context) ([]CustomerTotalsRow, error) {
	return nil, nil
}

func (q *Queries) ListArchived(ctx context.Context) ([]interface{}, error) {
	return nil, nil
}

func (q *Queries) ListOpenOrders(ctx context.Context) ([]OpenOrder, error) {
	return nil, nil
}
