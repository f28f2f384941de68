package request

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "advisor/request"

// Client HTTP 客户端
type Client struct {
	cfg    *Config
	client *http.Client
}

// New 创建 HTTP 客户端
func New(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig 使用配置创建 HTTP 客户端
func NewWithConfig(cfg *Config) *Client {
	transport := cfg.buildTransport()
	if cfg.EnableTracing {
		transport = newTracingTransport(transport)
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// Get 创建 GET 请求
func (c *Client) Get(url string) *Request {
	return newRequest(c, http.MethodGet, url)
}

// Post 创建 POST 请求
func (c *Client) Post(url string) *Request {
	return newRequest(c, http.MethodPost, url)
}

// Put 创建 PUT 请求
func (c *Client) Put(url string) *Request {
	return newRequest(c, http.MethodPut, url)
}

// Delete 创建 DELETE 请求
func (c *Client) Delete(url string) *Request {
	return newRequest(c, http.MethodDelete, url)
}

// mergeHeaders 请求级 header 覆盖全局
func (c *Client) mergeHeaders(reqHeaders map[string]string) map[string]string {
	merged := make(map[string]string, len(c.cfg.Headers)+len(reqHeaders))
	for k, v := range c.cfg.Headers {
		merged[k] = v
	}
	for k, v := range reqHeaders {
		merged[k] = v
	}
	return merged
}

func (c *Client) execute(r *Request) (*Response, error) {
	retryCfg := r.retry
	if retryCfg == nil {
		retryCfg = c.cfg.Retry
	}
	if retryCfg == nil {
		return c.doOnce(r)
	}

	rc := *retryCfg
	rc.normalize()

	var lastResp *Response
	var lastErr error

	for attempt := 0; attempt <= rc.MaxAttempts; attempt++ {
		lastResp, lastErr = c.doOnce(r)

		if attempt == rc.MaxAttempts {
			break
		}

		var httpResp *http.Response
		if lastResp != nil {
			httpResp = &http.Response{StatusCode: lastResp.StatusCode}
		}
		if !rc.RetryIf(httpResp, lastErr) {
			return lastResp, lastErr
		}

		timer := time.NewTimer(rc.backoff(attempt))
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return nil, ErrTimeout.WithError(r.ctx.Err())
		case <-timer.C:
		}
	}

	if lastErr != nil {
		return nil, ErrMaxRetry.WithError(lastErr)
	}
	return lastResp, nil
}

func (c *Client) doOnce(r *Request) (*Response, error) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var span trace.Span
	if c.cfg.EnableTracing {
		ctx, span = otel.Tracer(tracerName).Start(ctx, "HTTP "+r.method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("http.method", r.method)),
		)
		defer span.End()
	}

	httpReq, err := r.buildHTTPRequest(ctx, c.cfg.BaseURL, c.mergeHeaders(r.headers))
	if err != nil {
		return nil, err
	}
	if span != nil {
		span.SetAttributes(attribute.String("http.url", httpReq.URL.String()))
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err == nil {
		defer httpResp.Body.Close()
	}
	var body []byte
	if err == nil {
		body, err = io.ReadAll(httpResp.Body)
	}
	duration := time.Since(start)

	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if c.cfg.Logger != nil {
			c.cfg.Logger.WarnContext(ctx, "http request failed",
				zap.String("method", r.method),
				zap.String("url", httpReq.URL.Redacted()),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout.WithError(err)
		}
		return nil, ErrRequestFailed.WithError(err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   duration,
		Request:    httpReq,
	}

	if span != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if resp.IsError() {
			span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		}
	}
	return resp, nil
}
