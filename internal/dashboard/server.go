package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/coder/websocket"
	"github.com/spf13/afero"

	prierrors "github.com/conneroisu/pri/internal/errors"
	"github.com/conneroisu/pri/internal/logging"
	"github.com/conneroisu/pri/internal/validation"
)

// StatusFunc reports the current project status pushed to the dashboard.
type StatusFunc func(ctx context.Context) (interface{}, error)

// Options configures a Server.
type Options struct {
	// Port to listen on. Zero picks a free port.
	Port int
	// Host defaults to localhost.
	Host string
	// Fs and StaticDir back the /static/ route.
	Fs        afero.Fs
	StaticDir string
	Title     string
	// AllowedOrigins extends the loopback hosts accepted for websocket
	// connections.
	AllowedOrigins []string
	Status         StatusFunc
	Listeners      *Listeners
	Logger         logging.Logger
}

// Server is the development dashboard.
type Server struct {
	opts      Options
	listeners *Listeners
	logger    logging.Logger
	allowed   []string

	clients      map[*client]struct{}
	clientsMutex sync.RWMutex
	register     chan *client
	unregister   chan *client
	broadcast    chan []byte

	startOnce sync.Once
	ctx       context.Context
	done      chan struct{}
}

// New creates a dashboard server. It does not listen until Run.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Listeners == nil {
		opts.Listeners = NewListeners()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Title == "" {
		opts.Title = "pri dashboard"
	}

	allowed := append([]string{"localhost", "127.0.0.1", opts.Host}, opts.AllowedOrigins...)

	return &Server{
		opts:       opts,
		listeners:  opts.Listeners,
		logger:     opts.Logger.WithComponent("dashboard"),
		allowed:    allowed,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
}

// Listeners returns the socket listener registry.
func (s *Server) Listeners() *Listeners {
	return s.listeners
}

// Start runs the websocket hub until ctx is cancelled. Run calls it; it is
// exported for callers that mount Handler on their own server.
func (s *Server) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx = ctx
		go s.runHub(ctx)
	})
}

// Handler routes the index page, the websocket endpoint and static assets.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	static := http.FileServer(afero.NewHttpFs(s.opts.Fs).Dir(s.opts.StaticDir))
	mux.Handle("/static/", http.StripPrefix("/static", withCORS(static)))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/", s.index())

	return mux
}

// Run listens on the configured port and serves until ctx is cancelled.
// The bound address is sent on ready, if non-nil.
func (s *Server) Run(ctx context.Context, ready chan<- string) error {
	addr := net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return prierrors.Wrap(err, prierrors.ErrorTypeExec, prierrors.ErrCodeExecFailed,
			"dashboard cannot listen on "+addr)
	}

	s.Start(ctx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info(ctx, "Dashboard listening", "url", "http://"+ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Fresh recomputes the project status and pushes freshProjectStatus.
func (s *Server) Fresh(ctx context.Context) error {
	status, err := s.status(ctx)
	if err != nil {
		return err
	}
	return s.Broadcast(ctx, EventFreshProjectStatus, status)
}

// ChangeFile pushes the new content of a changed file.
func (s *Server) ChangeFile(ctx context.Context, path, content string) error {
	return s.Broadcast(ctx, EventChangeFile, ChangedFile{Path: path, FileContent: content})
}

// Broadcast pushes an event to every connected dashboard.
func (s *Server) Broadcast(ctx context.Context, event string, data interface{}) error {
	raw, err := json.Marshal(Push{Event: event, Data: data})
	if err != nil {
		return prierrors.NewInternalError(prierrors.ErrCodeInternalError, "encode "+event, err)
	}

	select {
	case s.broadcast <- raw:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) status(ctx context.Context) (interface{}, error) {
	if s.opts.Status == nil {
		return struct{}{}, nil
	}
	return s.opts.Status(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if err := validation.ValidateOrigin(origin, s.allowed); err != nil {
		s.logger.Warn(r.Context(), err, "Rejected dashboard connection", "origin", origin)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.allowed),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		server: s,
		cancel: cancel,
	}

	status, err := s.status(ctx)
	if err != nil {
		s.logger.Warn(ctx, err, "Project status failed")
		status = struct{}{}
	}
	for _, event := range []string{EventFreshProjectStatus, EventInitProjectStatus} {
		raw, err := json.Marshal(Push{Event: event, Data: status})
		if err != nil {
			conn.Close(websocket.StatusInternalError, "status encoding failed")
			return
		}
		c.send <- raw
	}

	// Registered before the first write so that a client that has seen the
	// initial status also receives every later broadcast.
	select {
	case s.register <- c:
	case <-s.done:
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	go c.writePump(ctx)
	c.readPump(ctx)
}

func originPatterns(hosts []string) []string {
	patterns := make([]string, 0, len(hosts)*2)
	for _, h := range hosts {
		h = strings.TrimPrefix(strings.TrimPrefix(h, "https://"), "http://")
		patterns = append(patterns, h, h+":*")
	}
	return patterns
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) index() http.Handler {
	return templ.Handler(indexPage(s.opts.Title))
}
