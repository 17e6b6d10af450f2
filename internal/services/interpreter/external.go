package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RiskLens/internal/domain/models"
	"RiskLens/pkg/cache"
	xhttp "RiskLens/pkg/http"
	"RiskLens/pkg/logger"
)

const (
	chatPath          = "/chat/completions"
	defaultMaxTokens  = 200
	defaultCacheTTL   = 6 * time.Hour
	interpretationKey = "interpretation"
)

// ExternalOption configures External.
type ExternalOption func(*External)

// WithModel sets the chat model name.
func WithModel(model string) ExternalOption {
	return func(e *External) { e.model = model }
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) ExternalOption {
	return func(e *External) { e.retries = n }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *xhttp.Client) ExternalOption {
	return func(e *External) { e.client = c }
}

// WithCache memoises interpretations of identical prompts.
func WithCache(c cache.Service, ttl time.Duration) ExternalOption {
	return func(e *External) {
		e.cache = c
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// WithBreaker sets the consecutive failures that open the circuit and how long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) ExternalOption {
	return func(e *External) {
		e.failures = failures
		e.openFor = openFor
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) ExternalOption {
	return func(e *External) { e.l = l }
}

// External asks an OpenAI-compatible chat completions endpoint for the reading.
// Light, status and action always come from the rule bands so that the
// external text can never contradict the numbers.
type External struct {
	base     *httpBase
	client   *xhttp.Client
	model    string
	retries  int
	cache    cache.Service
	cacheTTL time.Duration
	failures uint32
	openFor  time.Duration
	l        *logger.Logger
}

func NewExternal(baseURL, apiKey string, timeout time.Duration, opts ...ExternalOption) (*External, error) {
	if apiKey == "" {
		return nil, errors.New("interpreter api key is required")
	}
	if baseURL == "" {
		return nil, errors.New("interpreter base url is required")
	}
	e := &External{
		model:    "gpt-4o-mini",
		retries:  2,
		cacheTTL: defaultCacheTTL,
		failures: 5,
		openFor:  time.Minute,
		l:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = xhttp.NewClient(xhttp.WithTimeout(timeout))
	}
	e.base = newHTTPBase(strings.TrimRight(baseURL, "/"), apiKey, e.client, e.failures, e.openFor)
	return e, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (e *External) Interpret(ctx context.Context, in models.InterpretationInput) (models.Interpretation, error) {
	prompt := buildPrompt(in)
	key := cache.GenerateKeyWithParams(interpretationKey, in.Symbol, cache.HashKey(e.model+"\n"+prompt))

	b := bandFor(in.Latest.Value)
	out := models.Interpretation{
		Source: SourceExternal,
		Light:  Light(in.Latest.Value),
		Status: b.status,
		Action: b.action,
	}

	if e.cache != nil {
		var summary string
		if err := e.cache.Get(ctx, key, &summary); err == nil {
			out.Summary = summary
			return out, nil
		}
	}

	req := chatRequest{
		Model:     e.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: defaultMaxTokens,
	}
	var resp chatResponse
	start := time.Now()
	if err := e.base.PostJSONWithRetry(ctx, chatPath, req, &resp, e.retries+1); err != nil {
		e.l.Warn("external interpreter failed",
			logger.String("symbol", in.Symbol),
			logger.String("model", e.model),
			logger.Duration("took", time.Since(start)),
			logger.Error(err),
		)
		return models.Interpretation{}, fmt.Errorf("interpret %s: %w", in.Symbol, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return models.Interpretation{}, fmt.Errorf("interpret %s: empty completion", in.Symbol)
	}
	out.Summary = strings.TrimSpace(resp.Choices[0].Message.Content)

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, out.Summary, e.cacheTTL); err != nil {
			e.l.Debug("interpretation cache set failed", logger.String("key", key), logger.Error(err))
		}
	}
	e.l.Debug("external interpretation ok",
		logger.String("symbol", in.Symbol),
		logger.Duration("took", time.Since(start)),
	)
	return out, nil
}

func buildPrompt(in models.InterpretationInput) string {
	var sb strings.Builder
	risk := in.Latest.Value
	fmt.Fprintf(&sb, "You are a financial risk assistant reading a statistical risk model.\n\n")
	fmt.Fprintf(&sb, "Asset: %s\nPrice: %.2f\nComposite risk (0 = deep value, 1 = bubble): %.2f\n", in.Symbol, in.Metadata.LastPrice, risk)
	fmt.Fprintf(&sb, "Signal: %s\nTraffic light: %s\n", in.Latest.Signal, Light(risk))
	for _, f := range in.Latest.Factors {
		fmt.Fprintf(&sb, "Factor %s: %.2f\n", f.Kind, f.Value)
	}
	if r, ok := in.Metadata.Returns["30d"]; ok {
		fmt.Fprintf(&sb, "30 day return: %.1f%%\n", r*100)
	}
	fmt.Fprintf(&sb, "Drawdown from peak: %.1f%%\n", in.Metadata.CurrentDrawdown*100)
	if v := in.Validation; v != nil {
		fmt.Fprintf(&sb, "Model validation score: %.0f/100 (grade %s), forward correlation %.2f\n",
			v.OverallScore, v.Grade, v.PredictivePower.Correlation)
	}
	sb.WriteString("\nWrite a three sentence assessment for a dollar cost averaging investor. ")
	sb.WriteString("Say whether the model is trustworthy for this asset and what the current risk implies. Plain text, no markdown.")
	return sb.String()
}
