package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceFile_ParsedKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"uploaded/products.csv", "parsed/products.csv"},
		{"uploaded/a/uploaded.csv", "parsed/a/uploaded.csv"},
		{"in/uploaded/x.csv", "in/parsed/x.csv"},
		{"products.csv", "parsed/products.csv"},
		{"uploaded-old/x.csv", "parsed/uploaded-old/x.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f := SourceFile{Bucket: "b", Key: tt.key}
			assert.Equal(t, tt.want, f.ParsedKey(DefaultUploadedPrefix, DefaultParsedPrefix))
		})
	}
}

func TestStatusCode(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", NewError(InvalidInput, "event", cause), http.StatusBadRequest},
		{"wrapped invalid input", fmt.Errorf("x: %w", NewError(InvalidInput, "event", cause)), http.StatusBadRequest},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound},
		{"source unavailable", NewError(SourceUnavailable, "open", cause), http.StatusInternalServerError},
		{"write failure", NewError(WriteFailure, "put", cause), http.StatusInternalServerError},
		{"plain", cause, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestError_KindAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("batch: %w", NewError(PublishFailure, "notify", cause))

	assert.Equal(t, PublishFailure, KindOf(err))
	assert.True(t, IsKind(err, PublishFailure))
	assert.False(t, IsKind(err, WriteFailure))
	assert.False(t, IsKind(nil, PublishFailure))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorKind(""), KindOf(cause))

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "connection reset", e.Message())
	assert.Equal(t, "notify: publish_failure: connection reset", e.Error())
	assert.Equal(t, "notify: stream_error", NewError(StreamError, "notify", nil).Error())
}

func TestJoin(t *testing.T) {
	p := Product{ID: "id-1", Title: "iPad Air", Price: decimal.RequireFromString("599")}

	assert.Equal(t, int64(0), Join(p, nil).Count)

	joined := Join(p, &Stock{ProductID: "id-1", Count: 12})
	assert.Equal(t, "iPad Air", joined.Title)
	assert.Equal(t, int64(12), joined.Count)

	data, err := json.Marshal(joined)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price":599`)
}
