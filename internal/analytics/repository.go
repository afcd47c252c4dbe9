package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Repository exposes the reads the analytics service relies on.
type Repository interface {
	CompletedSaleLines(ctx context.Context, filter LineFilter) ([]SaleLine, error)
	Product(ctx context.Context, id int64) (Product, error)
}

// PgRepository reads sales and products through pgx.
type PgRepository struct {
	db dbtx
}

// NewPgRepository binds the repository to a pool or transaction.
func NewPgRepository(db dbtx) *PgRepository {
	return &PgRepository{db: db}
}

func saleLinesQuery(filter LineFilter) (string, []interface{}, error) {
	builder := squirrel.
		Select(
			"s.id", "s.sold_at", "s.status", "s.discount", "s.tax_percent",
			"si.product_id", "si.quantity", "si.unit_price", "p.cost_price",
		).
		From("sale_items si").
		Join("sales s ON s.id = si.sale_id").
		Join("products p ON p.id = si.product_id").
		Where(squirrel.Eq{"s.status": string(SaleCompleted)}).
		OrderBy("s.sold_at", "s.id", "si.id").
		PlaceholderFormat(squirrel.Dollar)
	if filter.From != nil {
		builder = builder.Where(squirrel.GtOrEq{"s.sold_at": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(squirrel.LtOrEq{"s.sold_at": *filter.To})
	}
	if filter.ProductID != nil {
		builder = builder.Where(squirrel.Eq{"si.product_id": *filter.ProductID})
	}
	return builder.ToSql()
}

// CompletedSaleLines returns completed sale lines in the filter window joined
// with their sale header and current product cost.
func (r *PgRepository) CompletedSaleLines(ctx context.Context, filter LineFilter) ([]SaleLine, error) {
	query, args, err := saleLinesQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build sale lines query: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []SaleLine
	for rows.Next() {
		var (
			line                               SaleLine
			status                             string
			discount, tax, unitPrice, unitCost pgtype.Numeric
		)
		if err := rows.Scan(&line.SaleID, &line.SoldAt, &status, &discount, &tax,
			&line.ProductID, &line.Quantity, &unitPrice, &unitCost); err != nil {
			return nil, err
		}
		line.Status = SaleStatus(status)
		if line.Discount, err = numericToDecimal(discount); err != nil {
			return nil, err
		}
		if line.TaxPercent, err = numericToDecimal(tax); err != nil {
			return nil, err
		}
		if line.UnitPrice, err = numericToDecimal(unitPrice); err != nil {
			return nil, err
		}
		if line.UnitCost, err = numericToDecimal(unitCost); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Product loads the pricing fields of one product.
func (r *PgRepository) Product(ctx context.Context, id int64) (Product, error) {
	var (
		p           Product
		cost, price pgtype.Numeric
	)
	err := r.db.QueryRow(ctx, `SELECT id, name, cost_price, selling_price FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &cost, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}
	if p.CostPrice, err = numericToDecimal(cost); err != nil {
		return Product{}, err
	}
	if p.SellingPrice, err = numericToDecimal(price); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ProductIDs lists every product, used by cache warmup.
func (r *PgRepository) ProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("non-finite numeric value")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
