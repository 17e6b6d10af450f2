package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"RiskLens/internal/domain/models"
	domrepo "RiskLens/internal/domain/repository"
	"RiskLens/pkg/cache"
	pkgkafka "RiskLens/pkg/kafka"
	"RiskLens/pkg/logger"
)

var requestValidator = validator.New()

// KafkaRequestsHandler consumes risk requests and runs them through the use case.
// The use case publishes the resulting report.
type KafkaRequestsHandler struct {
	topic   string
	risk    *RiskUseCase
	metrics domrepo.Metrics
	locks   cache.Service
	lockTTL time.Duration
	l       *logger.Logger
}

func NewKafkaRequestsHandler(topic string, risk *RiskUseCase, metrics domrepo.Metrics, locks cache.Service, l *logger.Logger) *KafkaRequestsHandler {
	if l == nil {
		l = logger.NewNop()
	}
	return &KafkaRequestsHandler{topic: topic, risk: risk, metrics: metrics, locks: locks, lockTTL: 5 * time.Minute, l: l}
}

func (h *KafkaRequestsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, mode, interval?, bars?, policy?, fee?}
func (h *KafkaRequestsHandler) Handle(ctx context.Context, b []byte) error {
	req, code, err := decodeRiskRequest(b)
	if err != nil {
		h.metrics.RecordError("consumer_" + strings.ToLower(strings.TrimPrefix(code, "ERR_")))
		return &pkgkafka.HookError{Code: code, Err: err}
	}

	// identical requests in flight on other replicas are skipped
	if h.locks != nil {
		key := cache.GenerateKeyWithParams("lock", "request", req.Mode, req.Symbol, req.Interval, req.Bars, req.Policy, req.Fee)
		ok, err := h.locks.TryLock(ctx, key, h.lockTTL)
		if err != nil {
			h.l.Warn("request lock failed, running anyway", logger.String("key", key), logger.Error(err))
		} else if !ok {
			h.l.Debug("duplicate request skipped", logger.String("key", key))
			return nil
		} else {
			defer func() {
				if err := h.locks.Unlock(context.Background(), key); err != nil {
					h.l.Warn("request unlock failed", logger.String("key", key), logger.Error(err))
				}
			}()
		}
	}

	if _, err := h.risk.Run(ctx, req); err != nil {
		switch ErrorKind(err) {
		case "internal", "timeout":
			return fmt.Errorf("run %s %s: %w", req.Mode, req.Symbol, err)
		default:
			return &pkgkafka.HookError{Code: "ERR_" + strings.ToUpper(ErrorKind(err)), Err: err}
		}
	}
	return nil
}

// decodeRiskRequest applies defaults, decodes and validates a request message.
// On failure code is ERR_DECODE or ERR_VALIDATION.
func decodeRiskRequest(b []byte) (models.RiskRequest, string, error) {
	var req models.RiskRequest
	if err := defaults.Set(&req); err != nil {
		return req, "ERR_DECODE", err
	}
	if err := json.Unmarshal(b, &req); err != nil {
		return req, "ERR_DECODE", err
	}
	if err := requestValidator.Struct(&req); err != nil {
		return req, "ERR_VALIDATION", err
	}
	return req, "", nil
}

var _ pkgkafka.MessageHandler = (*KafkaRequestsHandler)(nil)
