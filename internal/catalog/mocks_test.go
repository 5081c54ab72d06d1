package catalog

import (
	"context"
	"sync"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/notify"
	"github.com/stretchr/testify/mock"
)

type MockCatalogWriter struct {
	mock.Mock
}

func (m *MockCatalogWriter) PutProduct(ctx context.Context, product domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockCatalogWriter) PutStock(ctx context.Context, stock domain.Stock) error {
	args := m.Called(ctx, stock)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context, n notify.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// memWriter guarda as gravações em memória, na ordem em que chegam.
type memWriter struct {
	mu       sync.Mutex
	products []domain.Product
	stocks   []domain.Stock
	writes   int
}

func (w *memWriter) PutProduct(ctx context.Context, product domain.Product) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	w.products = append(w.products, product)
	return nil
}

func (w *memWriter) PutStock(ctx context.Context, stock domain.Stock) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	w.stocks = append(w.stocks, stock)
	return nil
}

type memNotifier struct {
	sent []notify.Notification
	err  error
}

func (n *memNotifier) Publish(ctx context.Context, notification notify.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}
