// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// LatencyRecorder receives the duration and outcome of every RPC attempt.
// metrics.Collector implements it.
type LatencyRecorder interface {
	RecordRPCLatency(method string, d time.Duration, err error)
}

// Config tunes a Client.
type Config struct {
	Endpoint   string
	RateLimit  float64 // requests per second
	Burst      int
	Retries    int
	Timeout    time.Duration
	RetryDelay time.Duration
	Commitment rpc.CommitmentType
}

// Client is a thin rate limited, retrying wrapper around solana-go's RPC client.
type Client struct {
	rpc        *rpc.Client
	limiter    *rate.Limiter
	retries    uint
	timeout    time.Duration
	retryDelay time.Duration
	commitment rpc.CommitmentType
	latency    LatencyRecorder
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLatencyRecorder reports each attempt to r.
func WithLatencyRecorder(r LatencyRecorder) Option {
	return func(c *Client) { c.latency = r }
}

// NewClient creates a client for cfg.Endpoint.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}

	c := &Client{
		rpc:        rpc.New(cfg.Endpoint),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		retries:    uint(cfg.Retries),
		timeout:    cfg.Timeout,
		retryDelay: cfg.RetryDelay,
		commitment: cfg.Commitment,
		logger:     logger.Named("solbc-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call runs fn under the rate limiter with a per-attempt timeout, retrying
// transient failures with exponential backoff.
func call[T any](ctx context.Context, c *Client, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = c.retryDelay * 10

	op := func() (T, error) {
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		out, err := fn(attemptCtx)
		if c.latency != nil {
			c.latency.RecordRPCLatency(method, time.Since(start), err)
		}
		if err == nil {
			return out, nil
		}
		err = classify(err)
		if ctx.Err() != nil || !IsRetryable(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	notify := func(err error, d time.Duration) {
		c.logger.Debug("Retrying RPC call",
			zap.String("method", method),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.retries+1),
		backoff.WithNotify(notify))
	if err != nil {
		c.logger.Debug("RPC call failed", zap.String("method", method), zap.Error(err))
		return out, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

// GetHealth returns nil when the node reports itself healthy.
func (c *Client) GetHealth(ctx context.Context) error {
	status, err := call(ctx, c, "getHealth", func(ctx context.Context) (string, error) {
		return c.rpc.GetHealth(ctx)
	})
	if err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("node unhealthy: %s", status)
	}
	return nil
}

// TokenAmount is an SPL token account balance in base units.
type TokenAmount struct {
	Amount   uint64
	Decimals uint8
}

// GetTokenAccountBalance returns the raw amount held by an SPL token account.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (TokenAmount, error) {
	return call(ctx, c, "getTokenAccountBalance", func(ctx context.Context) (TokenAmount, error) {
		res, err := c.rpc.GetTokenAccountBalance(ctx, account, c.commitment)
		if err != nil {
			return TokenAmount{}, err
		}
		if res == nil || res.Value == nil {
			return TokenAmount{}, ErrInvalidResponse
		}
		amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
		if err != nil {
			return TokenAmount{}, fmt.Errorf("%w: amount %q", ErrInvalidResponse, res.Value.Amount)
		}
		return TokenAmount{Amount: amount, Decimals: res.Value.Decimals}, nil
	})
}
