// Package hostbridge exposes the notice surface to a host UI over a
// websocket. The host renders what it receives and sends back the user's
// install, reload, check and list actions.
package hostbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

const (
	// NoticesPath is the websocket endpoint
	NoticesPath = "/notices"

	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Frame types sent to the host
const (
	FrameRender  = "render"
	FrameDismiss = "dismiss"
	FrameToast   = "toast"
	FrameError   = "error"
	FramePlugins = "plugins"
)

// Actions accepted from the host
const (
	ActionInstall = "install"
	ActionReload  = "reload"
	ActionCheck   = "check"
	ActionList    = "list"
)

// Frame is one message to the host
type Frame struct {
	Type       string   `json:"type"`
	Outdated   []string `json:"outdated,omitempty"`
	Downloaded []string `json:"downloaded,omitempty"`
	Message    string   `json:"message,omitempty"`
	Error      string   `json:"error,omitempty"`
	Plugins    []string `json:"plugins,omitempty"`
}

// Request is one action from the host
type Request struct {
	Action string `json:"action"`
	Name   string `json:"name,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan Frame
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Bridge is a presenter that broadcasts to every connected host
type Bridge struct {
	actions  ports.Actions
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	server *http.Server
}

var _ ports.Presenter = (*Bridge)(nil)

// New creates a bridge invoking actions for host requests
func New(actions ports.Actions, logger zerolog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		actions: actions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// hosts are local UIs served from arbitrary origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With().Str("component", "hostbridge").Logger(),
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the HTTP handler serving NoticesPath
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(NoticesPath, b.serveNotices)
	return mux
}

// ListenAndServe serves the bridge on addr until Close. It returns the bound
// address once listening.
func (b *Bridge) ListenAndServe(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	b.server = &http.Server{Handler: b.Handler(), ReadHeaderTimeout: 10 * time.Second}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error().Err(err).Msg("host bridge stopped")
		}
	}()

	b.logger.Info().Str("addr", ln.Addr().String()).Msg("host bridge listening")
	return ln.Addr(), nil
}

// Clients returns the number of connected hosts
func (b *Bridge) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every host and stops the server
func (b *Bridge) Close() error {
	b.cancel()

	var err error
	if b.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = b.server.Shutdown(shutdownCtx)
	}

	b.mu.Lock()
	for c := range b.clients {
		c.conn.Close()
	}
	b.mu.Unlock()

	b.wg.Wait()
	return err
}

func (b *Bridge) RenderNotice(n plugindomain.Notice) {
	b.broadcast(renderFrame(n))
}

func (b *Bridge) DismissNotice() {
	b.broadcast(Frame{Type: FrameDismiss})
}

func (b *Bridge) Toast(message string) {
	b.broadcast(Frame{Type: FrameToast, Message: message})
}

func (b *Bridge) ReportError(message string, err error) {
	b.broadcast(errorFrame(message, err))
}

func renderFrame(n plugindomain.Notice) Frame {
	return Frame{Type: FrameRender, Outdated: n.Outdated, Downloaded: n.Downloaded, Message: n.Message()}
}

func errorFrame(message string, err error) Frame {
	f := Frame{Type: FrameError, Message: message}
	if err != nil {
		f.Error = err.Error()
	}
	return f
}

// broadcast never blocks; a host that cannot keep up is dropped
func (b *Bridge) broadcast(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		b.enqueueLocked(c, f)
	}
}

func (b *Bridge) enqueueLocked(c *client, f Frame) {
	select {
	case c.send <- f:
	default:
		b.logger.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("dropping slow host")
		delete(b.clients, c)
		c.close()
	}
}

func (b *Bridge) serveNotices(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan Frame, sendBuffer)}

	// snapshot and registration under one lock so later broadcasts follow it
	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		conn.Close()
		return
	}
	if n := b.actions.Notice(); n.Visible() {
		c.send <- renderFrame(n)
	}
	b.clients[c] = struct{}{}
	b.wg.Add(2)
	b.mu.Unlock()

	b.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("host connected")

	go b.writeLoop(c)
	go b.readLoop(c)
}

func (b *Bridge) writeLoop(c *client) {
	defer b.wg.Done()
	defer c.conn.Close()

	for f := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(f); err != nil {
			b.logger.Debug().Err(err).Msg("write to host failed")
			b.drop(c)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (b *Bridge) readLoop(c *client) {
	defer b.wg.Done()
	defer b.drop(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug().Err(err).Msg("host disconnected")
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			b.reply(c, errorFrame("Invalid request", err))
			continue
		}
		b.handle(c, req)
	}
}

func (b *Bridge) handle(c *client, req Request) {
	b.logger.Debug().Str("action", req.Action).Str("plugin", req.Name).Msg("host action")

	switch req.Action {
	case ActionInstall:
		if req.Name == "" {
			b.reply(c, errorFrame("Invalid request", errors.New("install needs a plugin name")))
			return
		}
		// outcome reaches every host as toast or error frames
		b.actions.InstallByName(b.ctx, req.Name)

	case ActionReload:
		if err := b.actions.Reload(b.ctx); errors.Is(err, plugindomain.ErrNothingToReload) {
			b.reply(c, errorFrame("Nothing to reload", err))
		}

	case ActionCheck:
		b.actions.SweepNow(b.ctx)

	case ActionList:
		// only the asking host gets the list
		b.reply(c, Frame{Type: FramePlugins, Plugins: b.actions.TrackedNames()})

	default:
		b.reply(c, errorFrame("Invalid request", fmt.Errorf("unknown action %q", req.Action)))
	}
}

func (b *Bridge) reply(c *client, f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		b.enqueueLocked(c, f)
	}
}

func (b *Bridge) drop(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
}
