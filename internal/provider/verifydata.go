package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"remedia/internal/identity"
	"remedia/internal/platform/metrics"
)

const (
	verifydataName     = "verifydata"
	verifydataEndpoint = "/api/ValidateRcNumber/Initiate"
)

// verifydataRequest is the wire request. The secret key travels in the body,
// never in a header or URL.
type verifydataRequest struct {
	RCNumber  string `json:"rcNumber"`
	SecretKey string `json:"secretKey"`
}

type verifydataResponse struct {
	Success    bool           `json:"success"`
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data"`
}

// Verifydata verifies CAC registration numbers against the VerifyData API.
type Verifydata struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	limiter    *RateLimiter
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

// VerifydataOption configures a Verifydata client.
type VerifydataOption func(*Verifydata)

func WithVerifydataHTTPClient(c *http.Client) VerifydataOption {
	return func(v *Verifydata) { v.httpClient = c }
}

func WithVerifydataLimiter(l *RateLimiter) VerifydataOption {
	return func(v *Verifydata) { v.limiter = l }
}

func WithVerifydataRetries(n int, backoff time.Duration) VerifydataOption {
	return func(v *Verifydata) {
		v.maxRetries = n
		v.backoff = backoff
	}
}

func WithVerifydataLogger(l *slog.Logger) VerifydataOption {
	return func(v *Verifydata) { v.logger = l }
}

func WithVerifydataMetrics(m *metrics.Metrics) VerifydataOption {
	return func(v *Verifydata) { v.metrics = m }
}

func NewVerifydata(baseURL, secretKey string, opts ...VerifydataOption) *Verifydata {
	v := &Verifydata{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		backoff:    defaultBackoffBase,
		logger:     slog.Default(),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifydata) Name() string { return verifydataName }

// Verify validates a CAC registration number. Retry policy mirrors Datapro.
func (v *Verifydata) Verify(ctx context.Context, kind identity.Kind, number string) (Result, error) {
	ctx, span := tracer.Start(ctx, "provider.verify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider", verifydataName)))
	defer span.End()

	if v.baseURL == "" || v.secretKey == "" {
		return Result{}, NewError(CodeNotConfigured, verifydataName, "missing base URL or secret key", nil)
	}
	if kind != identity.KindCAC {
		return Result{}, NewError(CodeInvalidInput, verifydataName, "unsupported identity kind "+string(kind), nil)
	}
	if err := identity.ValidateNumber(kind, number); err != nil {
		return Result{}, NewError(CodeInvalidFormat, verifydataName, "registration number failed format check", err)
	}

	var lastErr error
	for attempt := 0; attempt <= v.maxRetries; attempt++ {
		if attempt > 0 {
			delay := v.backoff << (attempt - 1)
			if err := v.sleep(ctx, delay); err != nil {
				return Result{}, NewError(CodeNetworkError, verifydataName, "retry wait aborted", err)
			}
		}

		result, err := v.call(ctx, number)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			span.RecordError(err)
			return Result{}, err
		}
		v.logger.WarnContext(ctx, "verifydata call failed, will retry",
			"attempt", attempt+1, "max_retries", v.maxRetries, "error_code", CodeOf(err))
	}

	err := NewError(CodeMaxRetriesExceeded, verifydataName, "retry budget exhausted", lastErr)
	span.RecordError(err)
	return Result{}, err
}

func (v *Verifydata) call(ctx context.Context, number string) (Result, error) {
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return Result{}, NewError(CodeNetworkError, verifydataName, "rate limit wait aborted", err)
		}
	}

	payload, err := json.Marshal(verifydataRequest{RCNumber: number, SecretKey: v.secretKey})
	if err != nil {
		return Result{}, NewError(CodeInvalidInput, verifydataName, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+verifydataEndpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, NewError(CodeInvalidInput, verifydataName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := v.httpClient.Do(req)
	if v.metrics != nil {
		v.metrics.ObserveProviderCall(verifydataName, time.Since(start))
	}
	if err != nil {
		return Result{}, v.fail(NewError(CodeNetworkError, verifydataName, "request failed", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, v.fail(NewError(CodeNetworkError, verifydataName, "read response", err))
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return Result{}, v.fail(NewError(CodeBadRequest, verifydataName, "provider rejected the request", nil))
	case resp.StatusCode == http.StatusUnauthorized:
		return Result{}, v.fail(NewError(CodeUnauthorized, verifydataName, "provider rejected credentials", nil))
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, v.fail(NewError(CodeRateLimitExceeded, verifydataName, "provider rate limit hit", nil))
	case resp.StatusCode >= 500:
		return Result{}, v.fail(NewError(CodeUnexpectedStatus, verifydataName,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil))
	case resp.StatusCode != http.StatusOK:
		return Result{}, v.fail(&Error{
			Code: CodeUnexpectedStatus, Provider: verifydataName,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		})
	}

	var parsed verifydataResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, v.fail(NewError(CodeParseError, verifydataName, "decode response", err))
	}

	// The API reports a miss as a 200 with success=false.
	if !parsed.Success || parsed.Data == nil {
		if strings.Contains(strings.ToLower(parsed.Message), "not found") {
			return Result{}, v.fail(NewError(CodeCACNotFound, verifydataName, "registration number not found", nil))
		}
		return Result{}, v.fail(NewError(CodeInvalidResponse, verifydataName,
			"unsuccessful response: "+parsed.Message, nil))
	}

	return Result{
		Data: stringifyData(parsed.Data),
		ResponseInfo: map[string]any{
			"statusCode": parsed.StatusCode,
			"message":    parsed.Message,
		},
	}, nil
}

func (v *Verifydata) fail(err *Error) error {
	if v.metrics != nil {
		v.metrics.ProviderCallErrors.WithLabelValues(verifydataName, string(err.Code)).Inc()
	}
	return err
}
