package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/PipelineNotifier/src/format"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "PipelineNotifier/1.0"
)

var (
	ErrDeliveryTransport = fmt.Errorf("delivery transport error")
	ErrNoEndpoint        = fmt.Errorf("no webhook endpoint configured")
)

// TransportError wraps whatever stopped the exchange from completing.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: webhook returned status %d", ErrDeliveryTransport.Error(), e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", ErrDeliveryTransport.Error(), e.Err.Error())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrDeliveryTransport
}

type DeliveryResult struct {
	Succeeded    bool
	StatusCode   int
	ResponseBody string
	Err          error
}

type Config struct {
	URL          string
	Timeout      time.Duration
	StrictStatus bool
	UserAgent    string
}

// Dispatcher posts one message per call to a chat webhook. It holds no
// mutable state and may be shared between goroutines.
type Dispatcher struct {
	endpoint  string
	timeout   time.Duration
	strict    bool
	userAgent string
	client    *http.Client
}

func New(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Dispatcher{
		endpoint:  cfg.URL,
		timeout:   timeout,
		strict:    cfg.StrictStatus,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Dispatch makes exactly one attempt. Failures come back inside the result,
// retrying is left to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, msg format.Message) DeliveryResult {
	if d.endpoint == "" {
		return failed(0, ErrNoEndpoint)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return failed(0, fmt.Errorf("marshal webhook payload: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(data))
	if err != nil {
		return failed(0, fmt.Errorf("create webhook request: %w", redact(err)))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return failed(0, redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(resp.StatusCode, fmt.Errorf("read webhook response: %w", redact(err)))
	}

	result := DeliveryResult{
		Succeeded:    true,
		StatusCode:   resp.StatusCode,
		ResponseBody: string(body),
	}

	if d.strict && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		result.Succeeded = false
		result.Err = &TransportError{StatusCode: resp.StatusCode}
	}

	return result
}

func failed(status int, err error) DeliveryResult {
	return DeliveryResult{
		StatusCode: status,
		Err: &TransportError{
			StatusCode: status,
			Err:        err,
		},
	}
}

// the webhook url is a credential, keep it out of error strings
func redact(err error) error {
	var uErr *url.Error
	if errors.As(err, &uErr) {
		uErr.URL = "[webhook]"
	}
	return err
}
