package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
)

const utf8BOM = "\ufeff"

// RowIterator lê o CSV sob demanda, uma linha por chamada de Next.
// A primeira linha é o header. Passagem única, não reinicia.
type RowIterator struct {
	reader *csv.Reader
	header []string
	row    domain.RawRow
	line   int
	err    error
	done   bool
}

func NewRowIterator(r io.Reader, delimiter rune) *RowIterator {
	csvReader := csv.NewReader(r)
	if delimiter != 0 {
		csvReader.Comma = delimiter
	}
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.ReuseRecord = true

	return &RowIterator{reader: csvReader}
}

func (it *RowIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}

	if err := ctx.Err(); err != nil {
		return it.fail(err)
	}

	if it.header == nil {
		header, err := it.reader.Read()
		if errors.Is(err, io.EOF) {
			it.done = true
			return false
		}
		if err != nil {
			return it.fail(fmt.Errorf("erro ao ler header: %w", err))
		}

		it.header = make([]string, len(header))
		for i, column := range header {
			it.header[i] = strings.TrimSpace(column)
		}
		it.header[0] = strings.TrimPrefix(it.header[0], utf8BOM)
	}

	record, err := it.reader.Read()
	if errors.Is(err, io.EOF) {
		it.done = true
		return false
	}
	if err != nil {
		return it.fail(fmt.Errorf("erro ao ler linha %d: %w", it.line+1, err))
	}

	it.line++
	it.row = make(domain.RawRow, len(it.header))
	for i, column := range it.header {
		if i < len(record) {
			it.row[column] = record[i]
		}
	}

	return true
}

func (it *RowIterator) fail(err error) bool {
	it.err = err
	it.done = true
	it.row = nil
	return false
}

func (it *RowIterator) Row() domain.RawRow {
	return it.row
}

// Line é o número da linha de dados atual, sem contar o header.
func (it *RowIterator) Line() int {
	return it.line
}

func (it *RowIterator) Header() []string {
	return it.header
}

func (it *RowIterator) Err() error {
	return it.err
}
