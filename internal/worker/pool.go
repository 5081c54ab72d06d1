package worker

import (
	"context"
	"sync"
	"time"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/catalog"
	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/queue"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/logger"
	"github.com/natanchik/nodejs-aws-shop-react-backend/pkg/metrics"
	"go.uber.org/zap"
)

const (
	receiveErrorPause = time.Second
	settleTimeout     = 5 * time.Second
)

type Receiver interface {
	Receive(ctx context.Context, max int, wait time.Duration) ([]queue.Message, error)
	Ack(ctx context.Context, messages []queue.Message) error
	Requeue(ctx context.Context, messages []queue.Message) error
	Release(ctx context.Context, messages []queue.Message) error
}

type BatchHandler interface {
	HandleBatch(ctx context.Context, messages []queue.Message) (catalog.Result, error)
}

type Config struct {
	Workers     int
	BatchSize   int
	PollTimeout time.Duration
}

// Pool é o ambiente que hospeda o consumer: cada worker recebe um lote da
// fila, chama o handler e confirma ou devolve o lote inteiro.
type Pool struct {
	receiver Receiver
	handler  BatchHandler
	cfg      Config
	wg       sync.WaitGroup
}

type BatchResult struct {
	Messages int
	Created  int
	Error    error
}

func NewPool(receiver Receiver, handler BatchHandler, cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}

	return &Pool{
		receiver: receiver,
		handler:  handler,
		cfg:      cfg,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

// Run bloqueia até o contexto ser cancelado e todos os workers terminarem.
func (p *Pool) Run(ctx context.Context) error {
	p.Start(ctx)
	p.Wait()
	return nil
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := logger.WithContext(ctx).With(zap.Int("worker", id))
	log.Debug("worker iniciado")

	for {
		if ctx.Err() != nil {
			log.Debug("worker finalizado")
			return
		}

		result, err := p.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("erro ao receber lote", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveErrorPause):
			}
			continue
		}

		if result.Error != nil {
			log.Warn("lote devolvido para a fila",
				zap.Int("messages", result.Messages),
				zap.Error(result.Error))
		}
	}
}

// RunOnce recebe e processa no máximo um lote. O erro retornado é só de
// recebimento; falhas do handler vão em BatchResult.Error.
func (p *Pool) RunOnce(ctx context.Context) (BatchResult, error) {
	messages, err := p.receiver.Receive(ctx, p.cfg.BatchSize, p.cfg.PollTimeout)
	if err != nil && len(messages) == 0 {
		return BatchResult{}, err
	}
	if len(messages) == 0 {
		return BatchResult{}, nil
	}

	return p.process(ctx, messages), nil
}

func (p *Pool) process(ctx context.Context, messages []queue.Message) BatchResult {
	result := BatchResult{Messages: len(messages)}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BatchDuration)

	batchResult, err := p.handler.HandleBatch(ctx, messages)

	// confirma/devolve mesmo se o contexto do lote já expirou
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if err != nil && ctx.Err() != nil {
		// encerramento não conta como tentativa de entrega
		result.Error = err
		if rlErr := p.receiver.Release(settleCtx, messages); rlErr != nil {
			logger.WithContext(ctx).Error("erro ao liberar lote", zap.Error(rlErr))
		}
		return result
	}

	if err != nil {
		result.Error = err
		if rqErr := p.receiver.Requeue(settleCtx, messages); rqErr != nil {
			logger.WithContext(ctx).Error("erro ao devolver lote", zap.Error(rqErr))
		}
		return result
	}

	result.Created = batchResult.Created
	if err := p.receiver.Ack(settleCtx, messages); err != nil {
		logger.WithContext(ctx).Error("erro ao confirmar lote", zap.Error(err))
	}

	return result
}
