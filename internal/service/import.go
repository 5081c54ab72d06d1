package service

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
)

var (
	ErrFileNameRequired = errors.New("File name is required")
	ErrOnlyCSV          = errors.New("Only CSV files are allowed")
	ErrInvalidFileName  = errors.New("Invalid file name")
)

type URLSigner interface {
	PresignPut(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type ImportService struct {
	signer         URLSigner
	bucket         string
	uploadedPrefix string
	ttl            time.Duration
}

func NewImportService(signer URLSigner, bucket, uploadedPrefix string, ttl time.Duration) *ImportService {
	if uploadedPrefix == "" {
		uploadedPrefix = domain.DefaultUploadedPrefix
	}
	return &ImportService{
		signer:         signer,
		bucket:         bucket,
		uploadedPrefix: uploadedPrefix,
		ttl:            ttl,
	}
}

// SignedUploadURL devolve uma URL de upload para <uploadedPrefix>/<name>.
func (s *ImportService) SignedUploadURL(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", domain.NewError(domain.InvalidInput, "import", ErrFileNameRequired)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return "", domain.NewError(domain.InvalidInput, "import", ErrOnlyCSV)
	}
	if strings.ContainsAny(name, "/\\") || path.Base(name) != name {
		return "", domain.NewError(domain.InvalidInput, "import", ErrInvalidFileName)
	}

	return s.signer.PresignPut(ctx, s.bucket, s.uploadedPrefix+"/"+name, s.ttl)
}
