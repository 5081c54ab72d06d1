package ingestion

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
)

// FileArrivalEvent segue o formato de notificação de eventos do S3 (e do MinIO).
type FileArrivalEvent struct {
	Records []EventRecord `json:"Records"`
}

type EventRecord struct {
	EventName string   `json:"eventName,omitempty"`
	S3        S3Entity `json:"s3"`
}

type S3Entity struct {
	Bucket S3Bucket `json:"bucket"`
	Object S3Object `json:"object"`
}

type S3Bucket struct {
	Name string `json:"name"`
}

type S3Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size,omitempty"`
}

func NewFileArrivalEvent(bucket string, keys ...string) FileArrivalEvent {
	event := FileArrivalEvent{Records: make([]EventRecord, 0, len(keys))}
	for _, key := range keys {
		event.Records = append(event.Records, EventRecord{
			EventName: "ObjectCreated:Put",
			S3: S3Entity{
				Bucket: S3Bucket{Name: bucket},
				Object: S3Object{Key: EncodeKey(key)},
			},
		})
	}
	return event
}

func (r EventRecord) SourceFile() (domain.SourceFile, error) {
	if r.S3.Bucket.Name == "" {
		return domain.SourceFile{}, domain.NewError(domain.InvalidInput, "evento", errors.New("bucket ausente"))
	}

	key, err := DecodeKey(r.S3.Object.Key)
	if err != nil {
		return domain.SourceFile{}, domain.NewError(domain.InvalidInput, "evento", err)
	}
	if key == "" {
		return domain.SourceFile{}, domain.NewError(domain.InvalidInput, "evento", errors.New("chave ausente"))
	}

	return domain.SourceFile{Bucket: r.S3.Bucket.Name, Key: key}, nil
}

// DecodeKey desfaz o escape da chave do evento, onde '+' representa espaço.
func DecodeKey(key string) (string, error) {
	decoded, err := url.PathUnescape(strings.ReplaceAll(key, "+", " "))
	if err != nil {
		return "", fmt.Errorf("chave inválida %q: %w", key, err)
	}
	return decoded, nil
}

func EncodeKey(key string) string {
	return strings.ReplaceAll(url.QueryEscape(key), "%2F", "/")
}
