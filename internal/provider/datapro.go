package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"remedia/internal/identity"
	"remedia/internal/platform/metrics"
)

var tracer = otel.Tracer("provider")

const (
	dataproName = "datapro"

	// Datapro ResponseCode values.
	dataproCodeSuccess        = "00"
	dataproCodeNoRecord       = "01"
	dataproCodeBadServiceID   = "87"
	dataproCodeNetworkFailure = "88"
)

// DefaultTimeout and retry policy shared by the HTTP clients.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	defaultBackoffBase = time.Second
)

// dataproResponse is the Datapro wire format. ResponseData is null when no
// record matched.
type dataproResponse struct {
	ResponseInfo struct {
		ResponseCode string `json:"ResponseCode"`
		Parameter    string `json:"Parameter"`
		Source       string `json:"Source"`
		Message      string `json:"Message"`
		Timestamp    string `json:"Timestamp"`
	} `json:"ResponseInfo"`
	ResponseData map[string]any `json:"ResponseData"`
}

// Datapro verifies NIN and BVN numbers against the NIMC-backed Datapro API.
type Datapro struct {
	baseURL    string
	serviceID  string
	httpClient *http.Client
	limiter    *RateLimiter
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

// DataproOption configures a Datapro client.
type DataproOption func(*Datapro)

func WithDataproHTTPClient(c *http.Client) DataproOption {
	return func(d *Datapro) { d.httpClient = c }
}

func WithDataproLimiter(l *RateLimiter) DataproOption {
	return func(d *Datapro) { d.limiter = l }
}

func WithDataproRetries(n int, backoff time.Duration) DataproOption {
	return func(d *Datapro) {
		d.maxRetries = n
		d.backoff = backoff
	}
}

func WithDataproLogger(l *slog.Logger) DataproOption {
	return func(d *Datapro) { d.logger = l }
}

func WithDataproMetrics(m *metrics.Metrics) DataproOption {
	return func(d *Datapro) { d.metrics = m }
}

func NewDatapro(baseURL, serviceID string, opts ...DataproOption) *Datapro {
	d := &Datapro{
		baseURL:    baseURL,
		serviceID:  serviceID,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		backoff:    defaultBackoffBase,
		logger:     slog.Default(),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Datapro) Name() string { return dataproName }

// Verify looks up a NIN or BVN. Transient failures are retried with
// exponential backoff up to the retry budget; the final failure surfaces as
// MAX_RETRIES_EXCEEDED wrapping the last error.
func (d *Datapro) Verify(ctx context.Context, kind identity.Kind, number string) (Result, error) {
	ctx, span := tracer.Start(ctx, "provider.verify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider", dataproName)))
	defer span.End()

	if d.baseURL == "" || d.serviceID == "" {
		return Result{}, NewError(CodeNotConfigured, dataproName, "missing base URL or service ID", nil)
	}
	if kind != identity.KindNIN && kind != identity.KindBVN {
		return Result{}, NewError(CodeInvalidInput, dataproName, "unsupported identity kind "+string(kind), nil)
	}
	if err := identity.ValidateNumber(kind, number); err != nil {
		return Result{}, NewError(CodeInvalidFormat, dataproName, "identity number failed format check", err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			delay := d.backoff << (attempt - 1)
			if err := d.sleep(ctx, delay); err != nil {
				return Result{}, NewError(CodeNetworkError, dataproName, "retry wait aborted", err)
			}
		}

		result, err := d.call(ctx, number)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			span.RecordError(err)
			return Result{}, err
		}
		d.logger.WarnContext(ctx, "datapro call failed, will retry",
			"attempt", attempt+1, "max_retries", d.maxRetries, "error_code", CodeOf(err))
	}

	err := NewError(CodeMaxRetriesExceeded, dataproName, "retry budget exhausted", lastErr)
	span.RecordError(err)
	return Result{}, err
}

func (d *Datapro) call(ctx context.Context, number string) (Result, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Result{}, NewError(CodeNetworkError, dataproName, "rate limit wait aborted", err)
		}
	}

	endpoint := fmt.Sprintf("%s/verifynin/?regNo=%s", d.baseURL, url.QueryEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, NewError(CodeInvalidInput, dataproName, "build request", err)
	}
	req.Header.Set("SERVICEID", d.serviceID)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if d.metrics != nil {
		d.metrics.ObserveProviderCall(dataproName, time.Since(start))
	}
	if err != nil {
		return Result{}, d.fail(NewError(CodeNetworkError, dataproName, "request failed", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, d.fail(NewError(CodeNetworkError, dataproName, "read response", err))
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return Result{}, d.fail(NewError(CodeBadRequest, dataproName, "provider rejected the request", nil))
	case resp.StatusCode == http.StatusUnauthorized:
		return Result{}, d.fail(NewError(CodeUnauthorized, dataproName, "provider rejected credentials", nil))
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, d.fail(NewError(CodeRateLimitExceeded, dataproName, "provider rate limit hit", nil))
	case resp.StatusCode >= 500:
		return Result{}, d.fail(NewError(CodeUnexpectedStatus, dataproName,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil))
	case resp.StatusCode != http.StatusOK:
		return Result{}, d.fail(&Error{
			Code: CodeUnexpectedStatus, Provider: dataproName,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		})
	}

	var parsed dataproResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, d.fail(NewError(CodeParseError, dataproName, "decode response", err))
	}

	switch parsed.ResponseInfo.ResponseCode {
	case dataproCodeSuccess:
	case dataproCodeNoRecord:
		return Result{}, d.fail(NewError(CodeNINNotFound, dataproName, "no record found", nil))
	case dataproCodeBadServiceID:
		return Result{}, d.fail(NewError(CodeInvalidServiceID, dataproName, "service id rejected", nil))
	case dataproCodeNetworkFailure:
		return Result{}, d.fail(NewError(CodeNetworkError, dataproName, "provider-side network failure", nil))
	default:
		return Result{}, d.fail(NewError(CodeUnexpectedStatus, dataproName,
			"unexpected response code "+parsed.ResponseInfo.ResponseCode, nil))
	}

	if parsed.ResponseData == nil {
		return Result{}, d.fail(NewError(CodeInvalidResponse, dataproName, "success response without data", nil))
	}

	return Result{
		Data: stringifyData(parsed.ResponseData),
		ResponseInfo: map[string]any{
			"ResponseCode": parsed.ResponseInfo.ResponseCode,
			"Source":       parsed.ResponseInfo.Source,
			"Message":      parsed.ResponseInfo.Message,
			"Timestamp":    parsed.ResponseInfo.Timestamp,
		},
	}, nil
}

func (d *Datapro) fail(err *Error) error {
	if d.metrics != nil {
		d.metrics.ProviderCallErrors.WithLabelValues(dataproName, string(err.Code)).Inc()
	}
	return err
}

// stringifyData flattens provider payload values to strings for the matcher.
// Nested objects are dropped; the raw payload stays on ResponseInfo callers
// who need it.
func stringifyData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = formatNumber(t)
		case bool:
			out[k] = fmt.Sprintf("%t", t)
		case nil:
		}
	}
	return out
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
