package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// candidate aceita price e count como string (linha do CSV) ou número.
type candidate struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       json.RawMessage `json:"price"`
	Count       json.RawMessage `json:"count"`
}

func decodeRecord(body string) (domain.CatalogRecord, error) {
	var c candidate
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return domain.CatalogRecord{}, fmt.Errorf("corpo inválido: %w", err)
	}

	if strings.TrimSpace(c.Title) == "" {
		return domain.CatalogRecord{}, errors.New("title é obrigatório")
	}

	price, err := ParsePrice(c.Price)
	if err != nil {
		return domain.CatalogRecord{}, err
	}

	return domain.CatalogRecord{
		Title:       c.Title,
		Description: c.Description,
		Price:       price,
		Count:       CoerceCount(c.Count),
	}, nil
}

func scalarText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}

	return string(raw), true
}

const (
	// casam com a coluna products.price NUMERIC(12, 2)
	priceScale     = 2
	priceMaxDigits = 10
)

var maxPrice = decimal.New(1, priceMaxDigits)

// ParsePrice recusa o que a coluna arredondaria ou não comporta, em vez de
// gravar um valor diferente do anunciado.
func ParsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	text, ok := scalarText(raw)
	if !ok || text == "" {
		return decimal.Zero, errors.New("price é obrigatório")
	}

	price, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price inválido %q: %w", text, err)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("price negativo: %s", text)
	}
	// expoentes extremos não cabem na coluna e custariam caro para reescalar
	if price.Exponent() < -priceMaxDigits-priceScale {
		return decimal.Zero, fmt.Errorf("price com mais de %d casas decimais: %s", priceScale, text)
	}
	if !price.IsZero() && price.Exponent() >= priceMaxDigits {
		return decimal.Zero, fmt.Errorf("price fora do limite: %s", text)
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return decimal.Zero, fmt.Errorf("price fora do limite: %s", text)
	}
	if !price.Equal(price.Truncate(priceScale)) {
		return decimal.Zero, fmt.Errorf("price com mais de %d casas decimais: %s", priceScale, text)
	}

	return price, nil
}

// CoerceCount devolve 0 para count ausente, vazio, não numérico, negativo ou
// fora do intervalo de int64.
func CoerceCount(raw json.RawMessage) int64 {
	text, ok := scalarText(raw)
	if !ok || text == "" {
		return 0
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0
	}

	d, err := decimal.NewFromString(text)
	if err != nil || d.IsNegative() {
		return 0
	}
	// 10^19 já passa de MaxInt64; evita montar o big.Int de expoentes enormes
	if d.Exponent() < -18 || (!d.IsZero() && d.Exponent() > 18) {
		return 0
	}
	if !d.IsInteger() {
		return 0
	}
	if !d.BigInt().IsInt64() {
		return 0
	}
	return d.IntPart()
}
