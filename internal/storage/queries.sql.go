package storage

import (
	"context"
	"time"
)

const createItem = `INSERT INTO budget_items (category, amount, currency, type, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

type CreateItemParams struct {
	Category  string
	Amount    float64
	Currency  string
	Type      string
	CreatedAt time.Time
}

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, q.dialect.rebind(createItem),
		arg.Category,
		arg.Amount,
		arg.Currency,
		arg.Type,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listItems = `SELECT id, category, amount, currency, type, created_at
FROM budget_items
ORDER BY id
LIMIT ? OFFSET ?`

type ListItemsParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListItems(ctx context.Context, arg ListItemsParams) ([]BudgetItem, error) {
	rows, err := q.db.QueryContext(ctx, q.dialect.rebind(listItems), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetItem
	for rows.Next() {
		var i BudgetItem
		if err := rows.Scan(
			&i.ID,
			&i.Category,
			&i.Amount,
			&i.Currency,
			&i.Type,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getItem = `SELECT id, category, amount, currency, type, created_at
FROM budget_items
WHERE id = ?`

func (q *Queries) GetItem(ctx context.Context, id int64) (BudgetItem, error) {
	row := q.db.QueryRowContext(ctx, q.dialect.rebind(getItem), id)
	var i BudgetItem
	err := row.Scan(
		&i.ID,
		&i.Category,
		&i.Amount,
		&i.Currency,
		&i.Type,
		&i.CreatedAt,
	)
	return i, err
}

const deleteItem = `DELETE FROM budget_items
WHERE id = ?`

func (q *Queries) DeleteItem(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, q.dialect.rebind(deleteItem), id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
