package catstatus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// SecureScheme is prepended to URLs that do not start with it.
	SecureScheme = "https://"
	// FallbackStatus is reported when the target URL cannot be reached at all.
	FallbackStatus = http.StatusBadRequest
	// DefaultResolveTimeout bounds a single status resolution request.
	DefaultResolveTimeout = 30 * time.Second
)

// Normalize turns user input into a URL that can be requested.
// Anything not starting with https:// gets it prepended, including the empty string.
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" || !strings.HasPrefix(raw, SecureScheme) {
		return SecureScheme + raw
	}
	return raw
}

// Resolution is the outcome of resolving a URL to a status code.
// Err is set when the target could not be reached and Code is FallbackStatus.
type Resolution struct {
	Code int
	Err  error
}

// Fallback reports whether the code was substituted because of a network failure.
func (r Resolution) Fallback() bool {
	return r.Err != nil
}

type ResolverConfig struct {
	// Timeout for the whole request, redirects included.
	// DefaultResolveTimeout is used if zero.
	Timeout time.Duration
	// Transport to use for outgoing requests. http.DefaultTransport if nil.
	Transport http.RoundTripper
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Resolver finds out which status code a URL responds with.
type Resolver struct {
	client http.Client
	log    zerolog.Logger
}

func NewResolver(config ResolverConfig) *Resolver {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &Resolver{
		client: http.Client{
			Timeout:   timeout,
			Transport: config.Transport,
		},
		log: logger,
	}
}

// Resolve issues a GET to url and returns the response status code.
// Network failures are not returned as errors; they resolve to FallbackStatus.
func (r *Resolver) Resolve(ctx context.Context, url string) Resolution {
	logger := loggerFrom(ctx, &r.log).With().Str("url", url).Logger()

	res, err := r.get(ctx, url)
	if err != nil {
		logger.Error().Err(err).Msg("Could not fetch url")
		return Resolution{Code: FallbackStatus, Err: err}
	}
	if res.StatusCode >= 400 {
		logger.Warn().Int("status", res.StatusCode).Msg("Received error status code")
	} else {
		logger.Trace().Int("status", res.StatusCode).Msg("Resolved status code")
	}
	return Resolution{Code: res.StatusCode}
}

func (r *Resolver) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	// only the status line is needed, but draining lets the connection be reused
	io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
	res.Body.Close()
	return res, nil
}

// loggerFrom returns the request logger from the context.
// If there is none, the fallback logger is used.
func loggerFrom(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = fallback
	}
	return logger
}
