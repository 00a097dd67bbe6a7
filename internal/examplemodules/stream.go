package examplemodules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vk/workloop/internal/module"
)

// StreamInput configures a long-lived websocket connection read by a
// StreamModule. ReadTimeout bounds the websocket handshake; reads are
// given no deadline. IdleSlice bounds how long a single Module.Idle slice waits for the
// background reader before checking back in with the scheduler.
type StreamInput struct {
	URL         string
	ReadTimeout time.Duration
	IdleSlice   time.Duration
}

// NewStreamModule builds an Exclusive module whose on_run dials once,
// then cooperatively idles while a background goroutine pumps frames to
// onMessage, instead of occupying a worker thread outright while it
// conceptually blocks on the connection. Unlike HTTPModule/SocketIOModule
// (one round trip per run), a stream module's single run spans the
// connection's whole lifetime; on_run returns once the connection closes
// or ctx is cancelled.
func NewStreamModule(name string, input StreamInput, onMessage func([]byte), opts ...module.Option) *module.Module {
	var mod *module.Module
	idleSlice := input.IdleSlice
	if idleSlice <= 0 {
		idleSlice = 20 * time.Millisecond
	}

	onRun := func(ctx context.Context) error {
		dialer := websocket.Dialer{HandshakeTimeout: input.ReadTimeout}
		conn, _, err := dialer.DialContext(ctx, input.URL, nil)
		if err != nil {
			return fmt.Errorf("stream module %s: dial: %w", name, err)
		}
		defer conn.Close()

		var (
			mu      sync.Mutex
			closed  bool
			readErr error
		)

		go func() {
			defer func() {
				mu.Lock()
				closed = true
				mu.Unlock()
			}()
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					mu.Lock()
					readErr = err
					mu.Unlock()
					return
				}
				if onMessage != nil {
					onMessage(data)
				}
			}
		}()

		for {
			mu.Lock()
			done := closed
			cause := readErr
			mu.Unlock()
			if done {
				if cause != nil && ctx.Err() == nil {
					return fmt.Errorf("stream module %s: read: %w", name, cause)
				}
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			mod.Idle(idleSlice)
		}
	}

	mod = module.New(name, module.Exclusive, onRun, opts...)
	return mod
}
