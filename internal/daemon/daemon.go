// Package daemon implements the hookd control-plane bridge: a websocket
// server that accepts persistent connections from the trusted front-end,
// dispatches JSON commands to OS-level handlers, and pushes unsolicited
// filesystem-event broadcasts to every connected client.
//
// # Concurrency model
//
// A single dispatch goroutine (the loop started by Start) owns all
// command handling, the connection registry, the history log writes and
// the watch-manager mutations. Each connection contributes a read
// goroutine that posts parsed frames onto the loop's inbound channel and
// a write pump that drains a buffered per-connection send queue. The
// filesystem watcher goroutine reaches the loop only through the watch
// manager's event channel.
//
// Ordering discipline: responses on one connection are emitted in
// submission order. The loop handles frames one at a time and each
// connection's sends are queued FIFO, so a blocking handler stalls all
// later commands on every connection until it returns.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hookd/internal/ax"
	"hookd/internal/config"
	"hookd/internal/history"
	"hookd/internal/native"
	"hookd/internal/protocol"
	"hookd/internal/watch"
)

// Version is the daemon version.
const Version = "0.1.0"

// Options carries the collaborators injected into a Daemon. Nil fields
// get defaults: a no-op logger, the exec-based desktop, and an
// unavailable accessibility provider.
type Options struct {
	Logger        *zap.Logger
	Desktop       native.Desktop
	Accessibility ax.Provider
}

// inboundFrame is one raw wire frame read from a connection, queued for
// the dispatch loop.
type inboundFrame struct {
	conn *Connection
	data []byte
}

// Daemon is the hookd server instance. All mutable state (registry,
// history, watch registrations) is owned by the instance; there are no
// package-level singletons.
type Daemon struct {
	cfg     *config.Config
	logger  *zap.Logger
	desktop native.Desktop
	axp     ax.Provider

	history  *history.Log
	watchMgr *watch.Manager
	handlers map[string]handlerFunc

	// clients is touched only by the dispatch loop.
	clients map[*Connection]struct{}

	register   chan *Connection
	unregister chan *Connection
	inbound    chan inboundFrame

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	nextID atomic.Int64

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a daemon from cfg and opts.
func New(cfg *config.Config, opts Options) *Daemon {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	desktop := opts.Desktop
	if desktop == nil {
		desktop = native.NewDesktop(logger)
	}
	axp := opts.Accessibility
	if axp == nil {
		axp = ax.Unavailable()
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		cfg:        cfg,
		logger:     logger.Named("daemon"),
		desktop:    desktop,
		axp:        axp,
		history:    history.NewLog(),
		watchMgr:   watch.NewManager(logger),
		clients:    make(map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		inbound:    make(chan inboundFrame),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// One trusted local peer; no origin policy.
				return true
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
	d.registerHandlers()
	return d
}

// Start binds the listener and launches the accept path and the dispatch
// loop.
func (d *Daemon) Start() error {
	d.shutdownMu.Lock()
	if d.shutdown {
		d.shutdownMu.Unlock()
		return errors.New("daemon already shut down")
	}
	d.shutdownMu.Unlock()

	listener, err := net.Listen("tcp", d.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", d.cfg.ListenAddr, err)
	}
	d.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleUpgrade)
	d.httpSrv = &http.Server{Handler: mux}

	d.logger.Info("daemon started", zap.String("addr", listener.Addr().String()))

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		if err := d.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("serve error", zap.Error(err))
		}
	}()
	go d.run()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (d *Daemon) Addr() net.Addr {
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Stop gracefully shuts the daemon down: stop accepting, close clients,
// stop the watcher, and wait for goroutines bounded by ctx.
func (d *Daemon) Stop(ctx context.Context) error {
	d.shutdownMu.Lock()
	if d.shutdown {
		d.shutdownMu.Unlock()
		return nil
	}
	d.shutdown = true
	d.shutdownMu.Unlock()

	d.logger.Info("daemon stopping")

	var errs []error
	if d.httpSrv != nil {
		if err := d.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	d.cancel()
	d.watchMgr.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	d.logger.Info("daemon stopped")
	return errors.Join(errs...)
}

// Wait blocks until the daemon's loop context ends.
func (d *Daemon) Wait() {
	<-d.ctx.Done()
	d.wg.Wait()
}

// handleUpgrade upgrades an HTTP request to a websocket connection and
// hands it to the dispatch loop.
func (d *Daemon) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	wsConn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := newConnection(d.nextID.Add(1), wsConn, d)

	select {
	case d.register <- c:
	case <-d.ctx.Done():
		wsConn.Close()
		return
	}

	d.wg.Add(2)
	go c.readPump()
	go c.writePump()
}

// run is the dispatch loop. It is the single owner of the connection
// registry and the only goroutine that invokes handlers, records history
// and mutates the watch manager.
func (d *Daemon) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			for c := range d.clients {
				delete(d.clients, c)
				c.shutdown()
			}
			return

		case c := <-d.register:
			d.clients[c] = struct{}{}
			d.logger.Info("client connected",
				zap.Int64("client", c.id),
				zap.String("remote", c.remoteAddr()))

		case c := <-d.unregister:
			// Unregistering an already-absent connection is a no-op.
			if _, ok := d.clients[c]; ok {
				delete(d.clients, c)
				c.shutdown()
				d.logger.Info("client disconnected", zap.Int64("client", c.id))
			}

		case frame := <-d.inbound:
			d.dispatch(frame.conn, frame.data)

		case ev := <-d.watchMgr.Events():
			d.handleWatchEvent(ev)
		}
	}
}

// handleWatchEvent records a bridged filesystem event and broadcasts it
// to every registered connection. Runs on the dispatch loop.
func (d *Daemon) handleWatchEvent(ev watch.Event) {
	payload := protocol.FileSystemEventPayload{
		EventType:   string(ev.Type),
		SrcPath:     ev.SrcPath,
		DestPath:    ev.DestPath,
		IsDirectory: ev.IsDirectory,
		Timestamp:   ev.Time,
	}
	d.history.FileEvents.Add(payload)

	frame, err := json.Marshal(protocol.FileSystemEvent(payload))
	if err != nil {
		d.logger.Error("broadcast encode failed", zap.Error(err))
		return
	}
	d.broadcast(frame)
}

// broadcast sends frame to a snapshot of the registered connections.
// Delivery is best-effort; a connection that cannot accept the frame is
// dropped from the registry.
func (d *Daemon) broadcast(frame []byte) {
	snapshot := make([]*Connection, 0, len(d.clients))
	for c := range d.clients {
		snapshot = append(snapshot, c)
	}

	for _, c := range snapshot {
		if !c.enqueue(frame) {
			d.logger.Warn("dropping unresponsive client", zap.Int64("client", c.id))
			delete(d.clients, c)
			c.shutdown()
		}
	}
}

// respond encodes and queues one response frame on c.
func (d *Daemon) respond(c *Connection, resp *protocol.Response) {
	frame, err := json.Marshal(resp)
	if err != nil {
		d.logger.Error("response encode failed", zap.Error(err))
		return
	}
	if !c.enqueue(frame) {
		d.logger.Warn("dropping unresponsive client", zap.Int64("client", c.id))
		delete(d.clients, c)
		c.shutdown()
	}
}

// operationContext bounds a blocking collaborator call.
func (d *Daemon) operationContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(d.ctx, timeout)
}
