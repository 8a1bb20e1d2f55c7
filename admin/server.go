// Package admin serves a read-only HTTP view of the running host: loaded
// modules, their lifecycle state, commands and tenant overrides.
package admin

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leeforge/bot/command"
	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/logging"
	"github.com/leeforge/bot/metrics"
	"github.com/leeforge/bot/registry"
	"github.com/leeforge/bot/tenant"
	"github.com/leeforge/bot/utils"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options wires the server to the host registries.
type Options struct {
	Addr     string
	Modules  *registry.Registry
	Commands *command.Registry
	Tenants  *tenant.Policy
	Metrics  *metrics.Collector // optional, enables GET /metrics
	Logger   *zap.Logger
}

// Server is the admin API.
type Server struct {
	opts   Options
	router chi.Router
	logger *zap.Logger
}

// ModuleView is a loaded module as the API shows it.
type ModuleView struct {
	extension.Descriptor
	State    string   `json:"state"`
	Commands []string `json:"commands"`
}

// CommandView is a registered command as the API shows it.
type CommandView struct {
	Module       string   `json:"module"`
	Name         string   `json:"name"`
	FriendlyName string   `json:"friendlyName,omitempty"`
	Description  string   `json:"description,omitempty"`
	Syntax       []string `json:"syntax,omitempty"`
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{opts: opts, logger: logger.Named("admin")}

	r := chi.NewRouter()
	r.Use(traceMiddleware)
	r.Use(logging.HTTPMiddleware(s.logger, func(r *http.Request) zap.Field {
		return zap.String("trace_id", TraceID(r.Context()))
	}))
	r.Use(logging.RecoveryMiddleware)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware(routePattern))
		r.Get("/metrics", s.listMetrics)
	}

	r.Get("/healthz", s.health)
	r.Route("/modules", func(r chi.Router) {
		r.Get("/", s.listModules)
		r.Get("/{id}", s.getModule)
	})
	r.Get("/commands", s.listCommands)
	r.Get("/tenants/{id}", s.getTenant)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, errors.NewNotFound("route", r.URL.Path))
	})
	s.router = r
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.WrapWithType(err, errors.ErrorTypeExternal, "admin listen failed").WithDetail("addr", s.opts.Addr)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("admin api listening", zap.String("addr", ln.Addr().String()))
	if routes, err := utils.Routes(s.router); err == nil {
		s.logger.Debug("admin routes", zap.Strings("routes", routes))
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ok(w, r, map[string]any{"status": "ok", "modules": s.opts.Modules.Len()})
}

func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	modules := s.opts.Modules.All()
	views := make([]ModuleView, 0, len(modules))
	for _, m := range modules {
		views = append(views, s.moduleView(m))
	}
	ok(w, r, views, withTotal(len(views)))
}

func (s *Server) getModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, found := s.opts.Modules.Find(id)
	if !found {
		fail(w, r, errors.NewNotFound("module", id))
		return
	}
	ok(w, r, s.moduleView(m))
}

func (s *Server) moduleView(m extension.Module) ModuleView {
	d := m.Descriptor()
	view := ModuleView{Descriptor: d, Commands: []string{}}
	if state, found := s.opts.Modules.State(d.ID); found {
		view.State = state.String()
	}
	for _, c := range m.Commands() {
		view.Commands = append(view.Commands, c.Name)
	}
	return view
}

// listCommands takes optional tenant and module query filters.
func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := command.Filter{TenantID: q.Get("tenant"), ModuleID: q.Get("module")}
	cmds, err := s.opts.Commands.GetAll(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	views := make([]CommandView, 0, len(cmds))
	for _, c := range cmds {
		views = append(views, CommandView{
			Module:       c.ModuleID,
			Name:         c.Name,
			FriendlyName: c.FriendlyName,
			Description:  c.Description,
			Syntax:       c.Syntax,
		})
	}
	ok(w, r, views, withTotal(len(views)))
}

func (s *Server) listMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := s.opts.Metrics.Snapshot()
	ok(w, r, snapshot, withTotal(len(snapshot)))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func (s *Server) getTenant(w http.ResponseWriter, r *http.Request) {
	if s.opts.Tenants == nil {
		fail(w, r, errors.NewNotFound("tenant store", nil))
		return
	}
	id := chi.URLParam(r, "id")
	o, err := s.opts.Tenants.Overrides(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	prefix, err := s.opts.Tenants.Prefix(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, r, map[string]any{"overrides": o, "effectivePrefix": prefix})
}
