package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/metrics"
	"go.uber.org/zap"
)

const (
	MessageCompleted     = "CSV processing completed"
	MessageInternalError = "Internal server error"
)

type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Copy(ctx context.Context, bucket, srcKey, dstKey string) error
	Delete(ctx context.Context, bucket, key string) error
}

type RowPublisher interface {
	Publish(ctx context.Context, body string) error
}

type ProducerConfig struct {
	UploadedPrefix string
	ParsedPrefix   string
	Delimiter      rune
}

type Producer struct {
	store     ObjectStore
	publisher RowPublisher
	cfg       ProducerConfig
}

func NewProducer(store ObjectStore, publisher RowPublisher, cfg ProducerConfig) *Producer {
	if cfg.UploadedPrefix == "" {
		cfg.UploadedPrefix = domain.DefaultUploadedPrefix
	}
	if cfg.ParsedPrefix == "" {
		cfg.ParsedPrefix = domain.DefaultParsedPrefix
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}

	return &Producer{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
	}
}

type FileStats struct {
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	ParsedKey     string `json:"parsed_key,omitempty"`
	RowsObserved  int    `json:"rows_observed"`
	RowsPublished int    `json:"rows_published"`
	RowsDropped   int    `json:"rows_dropped"`
}

type Result struct {
	StatusCode    int         `json:"statusCode"`
	Message       string      `json:"message"`
	RowsObserved  int         `json:"rows_observed"`
	RowsPublished int         `json:"rows_published"`
	RowsDropped   int         `json:"rows_dropped"`
	Files         []FileStats `json:"files,omitempty"`
	Err           error       `json:"-"`
}

func (r *Result) add(stats FileStats) {
	r.RowsObserved += stats.RowsObserved
	r.RowsPublished += stats.RowsPublished
	r.RowsDropped += stats.RowsDropped
	r.Files = append(r.Files, stats)
}

// HandleEvent processa os arquivos do evento em ordem e para no primeiro erro.
func (p *Producer) HandleEvent(ctx context.Context, event FileArrivalEvent) Result {
	var result Result

	for _, record := range event.Records {
		file, err := record.SourceFile()
		if err != nil {
			return p.failure(ctx, result, err)
		}

		timer := metrics.NewTimer()
		stats, err := p.ProcessFile(ctx, file)
		result.add(stats)
		if err != nil {
			metrics.RecordFileProcessed(string(domain.KindOf(err)), timer.Elapsed())
			return p.failure(ctx, result, err)
		}
		metrics.RecordFileProcessed("success", timer.Elapsed())
	}

	result.StatusCode = http.StatusOK
	result.Message = MessageCompleted
	return result
}

func (p *Producer) failure(ctx context.Context, result Result, err error) Result {
	logger.WithContext(ctx).Error("erro ao processar arquivo",
		zap.String("kind", string(domain.KindOf(err))),
		zap.Int("rows", result.RowsObserved),
		zap.Error(err))

	result.StatusCode = domain.StatusCode(err)
	result.Message = MessageInternalError
	if result.StatusCode == http.StatusBadRequest {
		result.Message = err.Error()
	}
	result.Err = err
	return result
}

// ProcessFile envia cada linha do arquivo para a fila e, ao chegar no fim do
// stream, move o arquivo para o prefixo de processados.
func (p *Producer) ProcessFile(ctx context.Context, file domain.SourceFile) (FileStats, error) {
	log := logger.WithContext(ctx).With(
		zap.String("bucket", file.Bucket),
		zap.String("key", file.Key))

	stats := FileStats{Bucket: file.Bucket, Key: file.Key}

	log.Info("processando arquivo")

	body, err := p.store.Open(ctx, file.Bucket, file.Key)
	if err != nil {
		return stats, domain.NewError(domain.SourceUnavailable, "abrir arquivo", err)
	}
	if body == nil {
		return stats, domain.NewError(domain.SourceUnavailable, "abrir arquivo", errors.New("stream inválido"))
	}
	defer body.Close()

	rows := NewRowIterator(body, p.cfg.Delimiter)
	for rows.Next(ctx) {
		stats.RowsObserved++
		metrics.RowsObserved.Inc()

		if p.bestEffortPublish(ctx, rows.Line(), rows.Row()) {
			stats.RowsPublished++
		} else {
			stats.RowsDropped++
		}
	}

	if err := rows.Err(); err != nil {
		return stats, domain.NewError(domain.StreamError, "ler arquivo", err)
	}

	parsedKey, err := p.relocate(ctx, file)
	if err != nil {
		return stats, err
	}
	stats.ParsedKey = parsedKey

	log.Info("arquivo processado",
		zap.String("parsed_key", parsedKey),
		zap.Int("rows", stats.RowsObserved),
		zap.Int("published", stats.RowsPublished),
		zap.Int("dropped", stats.RowsDropped))

	return stats, nil
}

// bestEffortPublish não propaga erro: a linha que falha é descartada e contada.
func (p *Producer) bestEffortPublish(ctx context.Context, line int, row domain.RawRow) bool {
	body, err := json.Marshal(row)
	if err == nil {
		err = p.publisher.Publish(ctx, string(body))
	}

	if err != nil {
		metrics.RowsDropped.Inc()
		logger.WithContext(ctx).Warn("erro ao enviar linha para a fila",
			zap.Int("line", line),
			zap.Error(err))
		return false
	}

	metrics.RowsPublished.Inc()
	return true
}

func (p *Producer) relocate(ctx context.Context, file domain.SourceFile) (string, error) {
	parsedKey := file.ParsedKey(p.cfg.UploadedPrefix, p.cfg.ParsedPrefix)

	if err := p.store.Copy(ctx, file.Bucket, file.Key, parsedKey); err != nil {
		return "", domain.NewError(domain.RelocationFailed, "copiar arquivo",
			fmt.Errorf("%s -> %s: %w", file.Key, parsedKey, err))
	}

	if err := p.store.Delete(ctx, file.Bucket, file.Key); err != nil {
		return "", domain.NewError(domain.RelocationFailed, "remover arquivo",
			fmt.Errorf("%s: %w", file.Key, err))
	}

	return parsedKey, nil
}
