package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopySource(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"uploaded/batch.csv", "import-service/uploaded/batch.csv"},
		{"uploaded/my file.csv", "import-service/uploaded/my%20file.csv"},
		{"uploaded/a+b.csv", "import-service/uploaded/a+b.csv"},
		{"uploaded/dir/café.csv", "import-service/uploaded/dir/caf%C3%A9.csv"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CopySource("import-service", tt.key))
	}
}
