package source

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"time"
)

// Defaults for the remote collector.
const (
	DefaultAPIBase         = "https://api.github.com"
	DefaultConnectTimeout  = 10 * time.Second
	DefaultDownloadTimeout = 60 * time.Second
)

// Options configures a Collector. Zero values take the defaults above.
type Options struct {
	APIBase         string
	ConnectTimeout  time.Duration
	DownloadTimeout time.Duration

	// HTTPClient overrides the client built from the timeouts.
	HTTPClient *http.Client
}

// Collector dispatches collection to the local walker or the remote
// archive downloader depending on the Config variant.
type Collector struct {
	apiBase string
	client  *http.Client
	logger  *log.Logger
}

// NewCollector creates a Collector. If logger is nil, logs go to stderr.
func NewCollector(opts Options, logger *log.Logger) *Collector {
	if logger == nil {
		logger = log.New(os.Stderr, "[source] ", log.LstdFlags)
	}
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = DefaultDownloadTimeout
	}

	client := opts.HTTPClient
	if client == nil {
		dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
		client = &http.Client{
			Timeout: opts.DownloadTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: opts.ConnectTimeout,
			},
		}
	}

	return &Collector{
		apiBase: opts.APIBase,
		client:  client,
		logger:  logger,
	}
}

// Collect gathers the markdown files for cfg. Per-file read failures are
// tallied in Collection.Errors; whole-source failures return an *Error.
func (c *Collector) Collect(ctx context.Context, cfg Config) (*Collection, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	switch src := cfg.(type) {
	case Local:
		return c.collectLocal(src.Path)
	case Remote:
		return c.collectRemote(ctx, src)
	}
	return nil, newError(ErrNotConfigured, "Unknown source type: %T", cfg)
}
