// Package bootstrap provides the litebus process facade
package bootstrap

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/config"
	"github.com/najoast/litebus/httpd"
	"github.com/najoast/litebus/timer"
	"github.com/najoast/litebus/wire"
)

// DefaultApplication implements Application for a litebus process: it
// owns the actor system, timer service, and HTTP and framed-TCP
// transports, and starts them in dependency order through its
// LifecycleManager.
type DefaultApplication struct {
	config *config.Config

	container        Container
	lifecycleManager LifecycleManager

	log *logrus.Entry

	actorSystem *actorsys.System
	timerSvc    *timer.Service
	registry    *httpd.Registry
	httpServer  *httpd.Server
	httpClient  *httpd.Client
	wireSender  *wire.Sender
	wireServer  *wire.Server

	mutex   sync.RWMutex
	running bool

	shutdownChan chan os.Signal
}

// NewApplication creates a new, unconfigured litebus application. Call
// Configure with a *config.Config before Run.
func NewApplication(log *logrus.Entry) Application {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	container := NewContainer()
	lifecycleManager := NewLifecycleManager(container)

	app := &DefaultApplication{
		container:        container,
		lifecycleManager: lifecycleManager,
		log:              log.WithField("component", "bootstrap.application"),
		shutdownChan:     make(chan os.Signal, 1),
	}

	app.registerCoreServices()

	return app
}

// Configure builds the actor system, timer service and HTTP transport
// from cfg, which must be a *config.Config (typically from
// config.Loader.Load or config.Watcher.GetConfig).
func (app *DefaultApplication) Configure(cfg interface{}) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if app.running {
		return errors.New("cannot configure application while running")
	}

	litebusCfg, ok := cfg.(*config.Config)
	if !ok {
		return errors.Errorf("bootstrap: Configure expects *config.Config, got %T", cfg)
	}
	app.config = litebusCfg

	return app.configureCoreServices(litebusCfg)
}

// Run starts every registered service and blocks until a shutdown
// signal (SIGINT/SIGTERM), ctx cancellation, or a service start failure,
// then shuts down gracefully.
func (app *DefaultApplication) Run(ctx context.Context) error {
	app.mutex.Lock()
	if app.running {
		app.mutex.Unlock()
		return errors.New("application is already running")
	}
	app.running = true
	app.mutex.Unlock()

	signal.Notify(app.shutdownChan, os.Interrupt, syscall.SIGTERM)

	if err := app.lifecycleManager.Start(ctx); err != nil {
		app.mutex.Lock()
		app.running = false
		app.mutex.Unlock()
		return errors.Wrap(err, "start services")
	}

	select {
	case <-app.shutdownChan:
		app.log.Info("received shutdown signal, starting graceful shutdown")
	case <-ctx.Done():
		app.log.Info("context cancelled, starting graceful shutdown")
	}

	return app.Shutdown(context.Background())
}

// Shutdown stops every registered service in reverse start order, each
// bounded by a 30s timeout derived from ctx.
func (app *DefaultApplication) Shutdown(ctx context.Context) error {
	app.mutex.Lock()
	if !app.running {
		app.mutex.Unlock()
		return nil
	}
	app.running = false
	app.mutex.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := app.lifecycleManager.Stop(shutdownCtx); err != nil {
		return errors.Wrap(err, "stop services")
	}

	return nil
}

// Container returns the dependency injection container.
func (app *DefaultApplication) Container() Container {
	return app.container
}

// LifecycleManager returns the lifecycle manager.
func (app *DefaultApplication) LifecycleManager() LifecycleManager {
	return app.lifecycleManager
}

// registerCoreServices registers the four core services with the
// lifecycle manager; each looks up its instance on app lazily, since
// Configure runs after NewApplication.
func (app *DefaultApplication) registerCoreServices() {
	app.lifecycleManager.Register("actor-system", &actorSystemService{app: app})
	app.lifecycleManager.Register("timer-service", &timerService{app: app}, "actor-system")
	app.lifecycleManager.Register("http-server", &httpServerService{app: app}, "actor-system", "timer-service")
	app.lifecycleManager.Register("wire-server", &wireServerService{app: app}, "actor-system")
}

// configureCoreServices constructs the actor system, timer service and
// transports from cfg and registers each as a container instance.
// actorsys.NewSystem and timer.NewService both start their goroutines
// immediately, so these are live from this call onward; the lifecycle
// services' Start only opens the HTTP/TCP listeners.
//
// wireSender is built before the actor system so it can be handed to
// NewSystem as its IOSender: every WIRE_TCP-addressed Send dials out
// through it rather than returning StatusIoNotFound.
func (app *DefaultApplication) configureCoreServices(cfg *config.Config) error {
	app.wireSender = wire.NewSender(app.log)
	app.container.RegisterInstance("wire-sender", app.wireSender)

	app.actorSystem = actorsys.NewSystem(cfg.Actor.ThreadCount, app.wireSender, app.log)
	app.container.RegisterInstance("actor-system", app.actorSystem)

	// timer.Service.Schedule (Future.After's rescue timer and the HTTP
	// client's per-request timeout) always delivers to timer.AfterTarget;
	// without this actor spawned, every such delivery silently drops with
	// StatusActorNotFound and the timeout callback never runs. Its
	// behavior is never type-asserted: ASYNC_THUNK dispatch only calls
	// msg.Thunk(behavior) directly.
	if _, err := app.actorSystem.Spawn(timer.AfterTarget, struct{}{}, actorsys.DefaultSpawnOptions()); err != nil {
		return errors.Wrap(err, "spawn timer after-actor")
	}

	app.timerSvc = timer.NewService(app.actorSystem, nil, app.log)
	app.container.RegisterInstance("timer-service", app.timerSvc)

	app.registry = httpd.NewRegistry()
	app.httpServer = httpd.NewServer(app.actorSystem, app.registry, cfg.Network.MaxConnections, app.log)
	app.container.RegisterInstance("http-server", app.httpServer)

	app.httpClient = httpd.NewClient(app.actorSystem, app.registry, app.timerSvc, app.log)
	app.container.RegisterInstance("http-client", app.httpClient)

	app.wireServer = wire.NewServer(app.actorSystem, app.log)
	app.container.RegisterInstance("wire-server", app.wireServer)

	return nil
}

// actorSystemService wraps app.actorSystem as a managed Service. Since
// NewSystem starts the worker pool in its constructor, Start is a
// no-op; Stop drains it.
type actorSystemService struct {
	app *DefaultApplication
}

func (s *actorSystemService) Name() string { return "actor-system" }

func (s *actorSystemService) Start(ctx context.Context) error {
	if s.app.actorSystem == nil {
		return errors.New("actor system not configured")
	}
	return nil
}

func (s *actorSystemService) Stop(ctx context.Context) error {
	if s.app.actorSystem != nil {
		s.app.actorSystem.Shutdown()
	}
	return nil
}

func (s *actorSystemService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.actorSystem == nil {
		return HealthStatus{State: HealthUnhealthy, Message: "actor system not configured"}, nil
	}
	return HealthStatus{State: HealthHealthy, Message: "actor system running"}, nil
}

// timerService wraps app.timerSvc. Like the actor system, its goroutine
// is already running by the time Start is called.
type timerService struct {
	app *DefaultApplication
}

func (s *timerService) Name() string { return "timer-service" }

func (s *timerService) Start(ctx context.Context) error {
	if s.app.timerSvc == nil {
		return errors.New("timer service not configured")
	}
	return nil
}

func (s *timerService) Stop(ctx context.Context) error {
	if s.app.timerSvc != nil {
		s.app.timerSvc.Stop()
	}
	return nil
}

func (s *timerService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.timerSvc == nil {
		return HealthStatus{State: HealthUnhealthy, Message: "timer service not configured"}, nil
	}
	return HealthStatus{State: HealthHealthy, Message: "timer service running"}, nil
}

// httpServerService opens the HTTP listener on Start (parsed from
// Network.HTTPBindURL) and closes it on Stop; an empty HTTPBindURL
// leaves the transport unbound, for processes that only dial out.
type httpServerService struct {
	app      *DefaultApplication
	listener net.Listener
}

func (s *httpServerService) Name() string { return "http-server" }

func (s *httpServerService) Start(ctx context.Context) error {
	if s.app.httpServer == nil {
		return errors.New("http server not configured")
	}

	addr := strings.TrimPrefix(s.app.config.Network.HTTPBindURL, "tcp://")
	if addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	s.listener = ln

	go func() {
		if err := s.app.httpServer.Serve(ln); err != nil {
			s.app.log.WithError(err).Warn("http server stopped")
		}
	}()

	return nil
}

func (s *httpServerService) Stop(ctx context.Context) error {
	if s.app.httpServer == nil {
		return nil
	}
	return s.app.httpServer.Close()
}

func (s *httpServerService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.httpServer == nil {
		return HealthStatus{State: HealthUnknown, Message: "http server not configured"}, nil
	}
	state := HealthHealthy
	if s.listener == nil {
		state = HealthUnknown
	}
	return HealthStatus{State: state, Message: "http server running"}, nil
}

// wireServerService opens the framed-TCP listener on Start (parsed from
// Network.TCPBindURL) and closes it, along with the shared wire.Sender's
// cached outbound connections, on Stop. An empty TCPBindURL leaves the
// transport unbound, for processes that only dial out over HTTP.
type wireServerService struct {
	app      *DefaultApplication
	listener net.Listener
}

func (s *wireServerService) Name() string { return "wire-server" }

func (s *wireServerService) Start(ctx context.Context) error {
	if s.app.wireServer == nil {
		return errors.New("wire server not configured")
	}

	addr := strings.TrimPrefix(s.app.config.Network.TCPBindURL, "tcp://")
	if addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	s.listener = ln

	go func() {
		if err := s.app.wireServer.Serve(ln); err != nil {
			s.app.log.WithError(err).Warn("wire server stopped")
		}
	}()

	return nil
}

func (s *wireServerService) Stop(ctx context.Context) error {
	if s.app.wireSender != nil {
		s.app.wireSender.Close()
	}
	if s.app.wireServer == nil {
		return nil
	}
	return s.app.wireServer.Close()
}

func (s *wireServerService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.wireServer == nil {
		return HealthStatus{State: HealthUnknown, Message: "wire server not configured"}, nil
	}
	state := HealthHealthy
	if s.listener == nil {
		state = HealthUnknown
	}
	return HealthStatus{State: state, Message: "wire server running"}, nil
}

// ApplicationBuilder offers a fluent alternative to constructing an
// Application and calling Configure/Register by hand.
type ApplicationBuilder struct {
	app *DefaultApplication
	cfg *config.Config
}

// NewApplicationBuilder creates a new application builder seeded with
// config.DefaultConfig.
func NewApplicationBuilder(log *logrus.Entry) *ApplicationBuilder {
	return &ApplicationBuilder{
		app: NewApplication(log).(*DefaultApplication),
		cfg: config.DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration outright.
func (b *ApplicationBuilder) WithConfig(cfg *config.Config) *ApplicationBuilder {
	b.cfg = cfg
	return b
}

// WithConfigFile loads configuration from filename, overlaying
// LITEBUS_* environment variables as config.Loader.Load always does.
// A load failure leaves the builder's current configuration unchanged.
func (b *ApplicationBuilder) WithConfigFile(filename string) *ApplicationBuilder {
	loaded, err := config.NewLoader().Load(filename)
	if err != nil {
		b.app.log.WithError(err).WithField("file", filename).Warn("failed loading config file, keeping previous configuration")
		return b
	}
	b.cfg = loaded
	return b
}

// WithHTTPBindURL sets the HTTP listener's bind URL, e.g. "tcp://0.0.0.0:8080".
func (b *ApplicationBuilder) WithHTTPBindURL(url string) *ApplicationBuilder {
	b.cfg.Network.HTTPBindURL = url
	return b
}

// WithTCPBindURL sets the framed-TCP listener's bind URL, e.g. "tcp://0.0.0.0:9090".
func (b *ApplicationBuilder) WithTCPBindURL(url string) *ApplicationBuilder {
	b.cfg.Network.TCPBindURL = url
	return b
}

// WithThreadCount sets the shared actor worker pool size.
func (b *ApplicationBuilder) WithThreadCount(n int) *ApplicationBuilder {
	b.cfg.Actor.ThreadCount = n
	return b
}

// WithService registers an additional service with the lifecycle
// manager, on top of the four core services.
func (b *ApplicationBuilder) WithService(name string, service Service, deps ...string) *ApplicationBuilder {
	b.app.lifecycleManager.Register(name, service, deps...)
	return b
}

// WithServiceFactory registers an additional service factory with the
// container.
func (b *ApplicationBuilder) WithServiceFactory(name string, factory ServiceFactory) *ApplicationBuilder {
	b.app.container.Register(name, factory)
	return b
}

// Build configures the application with the accumulated configuration
// and returns it, ready for Run.
func (b *ApplicationBuilder) Build() (Application, error) {
	if err := b.app.Configure(b.cfg); err != nil {
		return nil, errors.Wrap(err, "configure application")
	}
	return b.app, nil
}
