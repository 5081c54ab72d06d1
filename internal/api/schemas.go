package api

import (
	"time"

	"github.com/natanchik/nodejs-aws-shop-react-backend/internal/domain"
)

type MessageResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ProductListResponse struct {
	Products []domain.JoinedProduct `json:"products"`
	Count    int                    `json:"count"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type QueueStatsResponse struct {
	Queue      string `json:"queue"`
	Depth      int64  `json:"depth"`
	DeadLetter int64  `json:"dead_letter"`
}

type ProcessFileRequest struct {
	Key string `json:"key"`
}
