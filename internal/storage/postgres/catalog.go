package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/metrics"
)

// Querier é o subconjunto do pgxpool.Pool usado aqui; pgx.Tx também satisfaz.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CatalogStore trata products e stocks como duas tabelas chave-valor
// independentes, ligadas apenas pelo id do produto.
type CatalogStore struct {
	db Querier
}

func NewCatalogStore(db Querier) *CatalogStore {
	return &CatalogStore{db: db}
}

const upsertProduct = `
    INSERT INTO products (id, title, description, price)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (id) DO UPDATE
    SET title = EXCLUDED.title,
        description = EXCLUDED.description,
        price = EXCLUDED.price
`

const upsertStock = `
    INSERT INTO stocks (product_id, count)
    VALUES ($1, $2)
    ON CONFLICT (product_id) DO UPDATE
    SET count = EXCLUDED.count
`

func (s *CatalogStore) PutProduct(ctx context.Context, product domain.Product) error {
	timer := metrics.NewTimer()

	_, err := s.db.Exec(ctx, upsertProduct,
		product.ID,
		product.Title,
		product.Description,
		product.Price,
	)
	metrics.RecordDatabaseQuery("put_product", err, timer.Elapsed().Seconds())
	if err != nil {
		return fmt.Errorf("erro ao gravar produto %s: %w", product.ID, err)
	}

	return nil
}

func (s *CatalogStore) PutStock(ctx context.Context, stock domain.Stock) error {
	timer := metrics.NewTimer()

	_, err := s.db.Exec(ctx, upsertStock, stock.ProductID, stock.Count)
	metrics.RecordDatabaseQuery("put_stock", err, timer.Elapsed().Seconds())
	if err != nil {
		return fmt.Errorf("erro ao gravar estoque %s: %w", stock.ProductID, err)
	}

	return nil
}

func (s *CatalogStore) GetProduct(ctx context.Context, id string) (*domain.JoinedProduct, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("produto %s: %w", id, domain.ErrNotFound)
	}

	timer := metrics.NewTimer()

	query := `
        SELECT
            p.id::text,
            p.title,
            p.description,
            p.price,
            COALESCE(s.count, 0)
        FROM products p
        LEFT JOIN stocks s ON s.product_id = p.id
        WHERE p.id = $1
    `

	var product domain.JoinedProduct
	err := s.db.QueryRow(ctx, query, id).Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.Count,
	)
	metrics.RecordDatabaseQuery("get_product", ignoreNoRows(err), timer.Elapsed().Seconds())

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("produto %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar produto: %w", err)
	}

	return &product, nil
}

func (s *CatalogStore) ListProducts(ctx context.Context, limit, offset int) ([]domain.JoinedProduct, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	timer := metrics.NewTimer()

	query := `
        SELECT
            p.id::text,
            p.title,
            p.description,
            p.price,
            COALESCE(s.count, 0)
        FROM products p
        LEFT JOIN stocks s ON s.product_id = p.id
        ORDER BY p.created_at DESC, p.id
        LIMIT $1 OFFSET $2
    `

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		metrics.RecordDatabaseQuery("list_products", err, timer.Elapsed().Seconds())
		return nil, fmt.Errorf("erro ao listar produtos: %w", err)
	}
	defer rows.Close()

	products := make([]domain.JoinedProduct, 0, limit)
	for rows.Next() {
		var product domain.JoinedProduct
		err := rows.Scan(
			&product.ID,
			&product.Title,
			&product.Description,
			&product.Price,
			&product.Count,
		)
		if err != nil {
			return nil, fmt.Errorf("erro ao escanear produto: %w", err)
		}
		products = append(products, product)
	}

	err = rows.Err()
	metrics.RecordDatabaseQuery("list_products", err, timer.Elapsed().Seconds())
	if err != nil {
		return nil, fmt.Errorf("erro ao iterar resultados: %w", err)
	}

	return products, nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
