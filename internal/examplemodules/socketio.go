package examplemodules

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/workloop/internal/module"
)

// SocketIOInput configures one SocketIOModule round trip, adapted from
// the teacher's socketio runner Input.
type SocketIOInput struct {
	URL                string
	Namespace          string
	OnEvent            string
	EmitEvent          string
	EmitData           map[string]any
	Timeout            time.Duration
	InsecureSkipVerify bool
}

type socketIOResult struct {
	data any
	err  error
}

// NewSocketIOModule builds an Exclusive module that connects, optionally
// emits one event, and waits for OnEvent (or a connect error) once per
// run — the same connect/emit/await shape as the teacher's
// OnRunSocketIO, stripped of the registry's Input/Output marshalling.
func NewSocketIOModule(name string, input SocketIOInput, onResult func(any), opts ...module.Option) *module.Module {
	onRun := func(ctx context.Context) error {
		timeout := input.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		var connected atomic.Bool
		done := make(chan socketIOResult, 1)
		opCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		parsed, err := url.Parse(input.URL)
		if err != nil {
			return fmt.Errorf("socketio module %s: parse url: %w", name, err)
		}
		baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

		sockOpts := socket.DefaultOptions()
		sockOpts.SetPath(parsed.Path)
		if input.InsecureSkipVerify {
			sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		}
		sockOpts.SetTransports(types.NewSet(transports.WebSocket))

		manager := socket.NewManager(baseURL, sockOpts)
		io := manager.Socket(input.Namespace, sockOpts)
		defer io.Disconnect()

		io.On(types.EventName("connect"), func(...any) {
			connected.Store(true)
			if input.EmitEvent != "" {
				io.Emit(input.EmitEvent, input.EmitData)
			}
		})
		io.On(types.EventName("connect_error"), func(errs ...any) {
			var cause error
			if len(errs) > 0 {
				if e, ok := errs[0].(error); ok {
					cause = e
				} else {
					cause = fmt.Errorf("%v", errs[0])
				}
			}
			done <- socketIOResult{err: cause}
		})
		io.On(types.EventName(input.OnEvent), func(data ...any) {
			var value any
			if len(data) > 0 {
				value = data[0]
			}
			done <- socketIOResult{data: value}
		})

		io.Connect()

		select {
		case <-opCtx.Done():
			if connected.Load() {
				return fmt.Errorf("socketio module %s: timed out waiting for event %q", name, input.OnEvent)
			}
			return fmt.Errorf("socketio module %s: timed out connecting", name)
		case res := <-done:
			if res.err != nil {
				return fmt.Errorf("socketio module %s: %w", name, res.err)
			}
			if onResult != nil {
				onResult(res.data)
			}
			return nil
		}
	}
	return module.New(name, module.Exclusive, onRun, opts...)
}
