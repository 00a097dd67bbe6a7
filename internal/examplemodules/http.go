package examplemodules

import (
	"context"
	"fmt"

	"resty.dev/v3"

	"github.com/vk/workloop/internal/module"
)

// HTTPInput configures one HTTPModule run, mirroring the teacher's
// http_client Input shape.
type HTTPInput struct {
	Method string
	URL    string
	Body   any
}

// NewHTTPModule builds a module that issues one resty request per run
// and hands the response to onResponse. It defaults to Exclusive policy,
// since a shared resty.Client's connection pool and the caller-supplied
// onResponse closure are not assumed safe for concurrent reentry; pass
// AllowConcurrent(canRun) to switch to ParallelCustom for clients known to
// tolerate concurrent requests.
func NewHTTPModule(name string, client *resty.Client, input HTTPInput, onResponse func(*resty.Response) error, opts ...HTTPOption) *module.Module {
	cfg := httpConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	onRun := func(ctx context.Context) error {
		req := client.R().SetContext(ctx)
		if input.Body != nil {
			req = req.SetBody(input.Body)
		}
		resp, err := req.Execute(input.Method, input.URL)
		if err != nil {
			return fmt.Errorf("http module %s: %w", name, err)
		}
		if resp.IsError() {
			return fmt.Errorf("http module %s: %s returned %s", name, input.URL, resp.Status())
		}
		if onResponse != nil {
			return onResponse(resp)
		}
		return nil
	}

	if cfg.allowConcurrent {
		canRun := cfg.canRun
		if canRun == nil {
			canRun = func() bool { return true }
		}
		moduleOpts := append([]module.Option{module.WithCanRun(canRun)}, cfg.moduleOpts...)
		return module.New(name, module.ParallelCustom, onRun, moduleOpts...)
	}
	return module.New(name, module.Exclusive, onRun, cfg.moduleOpts...)
}

// HTTPOption configures NewHTTPModule's dispatch policy and passes
// through underlying module.Options (e.g. WithHandleException).
type HTTPOption func(*httpConfig)

type httpConfig struct {
	allowConcurrent bool
	canRun          func() bool
	moduleOpts      []module.Option
}

// AllowConcurrent switches an HTTPModule from Exclusive to ParallelCustom,
// optionally gated by canRun (nil means always runnable).
func AllowConcurrent(canRun func() bool) HTTPOption {
	return func(c *httpConfig) {
		c.allowConcurrent = true
		c.canRun = canRun
	}
}

// WithHandleException forwards a module.HandleException hook to the
// constructed HTTPModule.
func WithHandleException(fn func(error)) HTTPOption {
	return func(c *httpConfig) {
		c.moduleOpts = append(c.moduleOpts, module.WithHandleException(fn))
	}
}

// WithModuleOptions forwards arbitrary module.Options (e.g.
// module.WithPredictorRates from an ambient config profile) to the
// constructed HTTPModule, alongside its own policy-selection options.
func WithModuleOptions(opts ...module.Option) HTTPOption {
	return func(c *httpConfig) {
		c.moduleOpts = append(c.moduleOpts, opts...)
	}
}

// NewHTTPClient builds the shared resty client one or more HTTPModules
// should reuse, analogous to the teacher's CreateHttpClient/DestroyHttpClient
// asset pair collapsed into a single constructor (workloop has no
// separate asset-lifecycle layer; a resty.Client is already safe to share
// across concurrent requests).
func NewHTTPClient() *resty.Client {
	return resty.New()
}
