package service

import (
	"context"
	"errors"
	"time"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
	"go.uber.org/zap"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.JoinedProduct, error)
	ListProducts(ctx context.Context, limit, offset int) ([]domain.JoinedProduct, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
}

type ProductService struct {
	reader ProductReader
	cache  Cache
}

// NewProductService aceita cache nil; nesse caso toda leitura vai ao banco.
func NewProductService(reader ProductReader, cache Cache) *ProductService {
	return &ProductService{
		reader: reader,
		cache:  cache,
	}
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.JoinedProduct, error) {
	key := "product:" + id

	if s.cache != nil {
		var cached domain.JoinedProduct
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	product, err := s.reader.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	// produtos não mudam depois de criados, então o cache não fica velho
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, product); err != nil {
			logger.WithContext(ctx).Warn("erro ao salvar produto no cache",
				zap.String("product_id", id),
				zap.Error(err))
		}
	}

	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context, limit, offset int) ([]domain.JoinedProduct, error) {
	return s.reader.ListProducts(ctx, limit, offset)
}

func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
