package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// preços saem como número no JSON, não como string
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	DefaultUploadedPrefix = "uploaded"
	DefaultParsedPrefix   = "parsed"
)

// RawRow é uma linha do CSV indexada pelo nome da coluna do header.
type RawRow map[string]string

type CatalogRecord struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Count       int64           `json:"count"`
}

type Product struct {
	ID          string          `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

type Stock struct {
	ProductID string `db:"product_id" json:"product_id"`
	Count     int64  `db:"count" json:"count"`
}

type JoinedProduct struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Count       int64           `json:"count"`
}

func Join(p Product, s *Stock) JoinedProduct {
	joined := JoinedProduct{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
	}
	if s != nil {
		joined.Count = s.Count
	}
	return joined
}

type SourceFile struct {
	Bucket string
	Key    string
}

// ParsedKey troca o primeiro segmento igual a pendingPrefix por parsedPrefix.
// Chaves fora do prefixo pendente recebem parsedPrefix na frente.
func (f SourceFile) ParsedKey(pendingPrefix, parsedPrefix string) string {
	segments := strings.Split(f.Key, "/")
	for i, segment := range segments {
		if segment == pendingPrefix {
			segments[i] = parsedPrefix
			return strings.Join(segments, "/")
		}
	}
	return parsedPrefix + "/" + f.Key
}
