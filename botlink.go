package botlink

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/botlink/internal/logging"
	"github.com/aretw0/botlink/internal/runtime"
	statushttp "github.com/aretw0/botlink/pkg/adapters/http"
	"github.com/aretw0/botlink/pkg/adapters/mqtt"
	"github.com/aretw0/botlink/pkg/adapters/socket"
	"github.com/aretw0/botlink/pkg/adapters/websocket"
	"github.com/aretw0/botlink/pkg/api"
	"github.com/aretw0/botlink/pkg/ast"
	"github.com/aretw0/botlink/pkg/observability"
	"github.com/aretw0/botlink/pkg/ports"
	"github.com/aretw0/botlink/pkg/session"
)

// Version is the build version, overridden with -ldflags at release time.
var Version = "dev"

// Transport selects the wire encoding used for the live connection.
type Transport string

const (
	// TransportWebsocket speaks JSON messages over a websocket.
	TransportWebsocket Transport = "websocket"
	// TransportSocket speaks framed binary messages over a TCP socket.
	TransportSocket Transport = "socket"
)

// Robot is a configured robot client: interpreter, session, metrics and status surface.
type Robot struct {
	client  *session.Client
	engine  *runtime.Engine
	metrics *observability.Metrics
	streams *statushttp.StreamManager
	bridge  *mqtt.Bridge
	logger  *slog.Logger
}

type options struct {
	name          string
	password      string
	secure        bool
	verify        bool
	transport     Transport
	socketPort    int
	store         ports.ProgramStore
	locker        ports.Locker
	actuator      ports.Actuator
	bridge        *mqtt.Bridge
	dialer        ports.Dialer
	newAPI        func(address string) session.API
	logger        *slog.Logger
	maxReconnects *int
	settle        *time.Duration
	hooks         []session.Hooks
}

// Option configures a Robot.
type Option func(*options)

// WithName sets the robot identity (default: host name).
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithPassword sets the robot password.
func WithPassword(password string) Option {
	return func(o *options) {
		o.password = password
	}
}

// WithSecure selects TLS (https/wss) for every connection. Enabled by default.
func WithSecure(secure bool) Option {
	return func(o *options) {
		o.secure = secure
	}
}

// WithVerify toggles certificate verification. Enabled by default.
func WithVerify(verify bool) Option {
	return func(o *options) {
		o.verify = verify
	}
}

// WithTransport selects the live connection encoding.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithSocketPort overrides the socket transport port.
func WithSocketPort(port int) Option {
	return func(o *options) {
		o.socketPort = port
	}
}

// WithStore keeps the last prepared program across restarts.
func WithStore(s ports.ProgramStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithLocker claims the robot name so only one process serves it.
func WithLocker(l ports.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithActuator sets the hardware programs drive.
func WithActuator(a ports.Actuator) Option {
	return func(o *options) {
		o.actuator = a
	}
}

// WithBridge drives hardware over MQTT. Its events are forwarded as triggers while Run is active.
func WithBridge(b *mqtt.Bridge) Option {
	return func(o *options) {
		o.bridge = b
		o.actuator = b
	}
}

// WithDialer replaces the transport dialer.
func WithDialer(d ports.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithAPI replaces the coordination API client factory.
func WithAPI(factory func(address string) session.API) Option {
	return func(o *options) {
		o.newAPI = factory
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxReconnects bounds consecutive reconnect attempts. Negative means unlimited.
func WithMaxReconnects(n int) Option {
	return func(o *options) {
		o.maxReconnects = &n
	}
}

// WithSettleDelay sets the pause between authentication and the first Waiting announcement.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settle = &d
	}
}

// WithSessionHooks attaches an observer to the session.
func WithSessionHooks(h session.Hooks) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, h)
	}
}

// New wires a robot for the given coordination servers, tried in order.
func New(addresses []string, opts ...Option) *Robot {
	o := &options{
		secure:    true,
		verify:    true,
		transport: TransportWebsocket,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	metrics := observability.NewMetrics()
	streams := statushttp.NewStreamManager()

	engineOpts := []runtime.Option{
		runtime.WithLogger(o.logger),
		runtime.WithHooks(metrics.Hooks()),
	}
	if o.actuator != nil {
		engineOpts = append(engineOpts, runtime.WithActuator(o.actuator))
	}
	engine := runtime.New(engineOpts...)

	dialer := o.dialer
	if dialer == nil {
		dialer = newDialer(o)
	}
	newAPI := o.newAPI
	if newAPI == nil {
		newAPI = func(address string) session.API {
			return api.New(address,
				api.WithSecure(o.secure),
				api.WithVerify(o.verify),
				api.WithLogger(o.logger),
			)
		}
	}

	sessionOpts := []session.Option{
		session.WithName(o.name),
		session.WithPassword(o.password),
		session.WithDialer(dialer),
		session.WithAPI(newAPI),
		session.WithEngine(engine),
		session.WithLogger(o.logger),
		session.WithHooks(metrics.SessionHooks()),
		session.WithHooks(streams.SessionHooks()),
	}
	if o.store != nil {
		sessionOpts = append(sessionOpts, session.WithStore(o.store))
	}
	if o.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(o.locker))
	}
	if o.maxReconnects != nil {
		sessionOpts = append(sessionOpts, session.WithMaxReconnects(*o.maxReconnects))
	}
	if o.settle != nil {
		sessionOpts = append(sessionOpts, session.WithSettleDelay(*o.settle))
	}
	for _, h := range o.hooks {
		sessionOpts = append(sessionOpts, session.WithHooks(h))
	}

	return &Robot{
		client:  session.New(addresses, sessionOpts...),
		engine:  engine,
		metrics: metrics,
		streams: streams,
		bridge:  o.bridge,
		logger:  o.logger,
	}
}

func newDialer(o *options) ports.Dialer {
	if o.transport == TransportSocket {
		socketOpts := []socket.Option{socket.WithLogger(o.logger)}
		if o.socketPort > 0 {
			socketOpts = append(socketOpts, socket.WithPort(o.socketPort))
		}
		if o.secure {
			socketOpts = append(socketOpts, socket.WithTLS(o.verify))
		}
		return socket.NewDialer(socketOpts...)
	}
	return websocket.NewDialer(
		websocket.WithSecure(o.secure),
		websocket.WithVerify(o.verify),
		websocket.WithLogger(o.logger),
	)
}

// Run connects and serves until Close, ctx cancellation or a give-up condition.
// It returns nil after Close.
func (r *Robot) Run(ctx context.Context) error {
	if r.bridge != nil {
		if err := r.bridge.Start(ctx, r.client.Trigger); err != nil {
			return err
		}
		defer func() {
			if err := r.bridge.Close(); err != nil {
				r.logger.Warn("Failed to close hardware bridge", "error", err)
			}
		}()
	}
	return r.client.Run(ctx)
}

// Trigger fires a registered trigger while the robot is idle.
func (r *Robot) Trigger(ctx context.Context, name string, value any) error {
	return r.client.Trigger(ctx, name, value)
}

// Close stops the robot for good.
func (r *Robot) Close() error {
	return r.client.Close()
}

// Status returns a snapshot of the session.
func (r *Robot) Status() session.Status {
	return r.client.Status()
}

// Program returns the prepared program, if any.
func (r *Robot) Program() *ast.Program {
	return r.client.Program()
}

// Name returns the robot identity.
func (r *Robot) Name() string {
	return r.client.Name()
}

// Metrics returns the robot's collectors.
func (r *Robot) Metrics() *observability.Metrics {
	return r.metrics
}

// Handler returns the local status surface: health, status, events, triggers and metrics.
func (r *Robot) Handler(opts ...statushttp.Option) http.Handler {
	base := []statushttp.Option{
		statushttp.WithMetrics(r.metrics.Handler()),
		statushttp.WithStreams(r.streams),
		statushttp.WithVersion(Version),
		statushttp.WithLogger(r.logger),
	}
	return statushttp.NewHandler(r.client, append(base, opts...)...)
}
