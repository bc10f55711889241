package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/domain"
	"github.com/vietddude/vitality/internal/infra/notify"
	redisclient "github.com/vietddude/vitality/internal/infra/redis"
	"github.com/vietddude/vitality/internal/infra/rpc"
	"github.com/vietddude/vitality/internal/infra/storage"
	"github.com/vietddude/vitality/internal/infra/storage/memory"
	"github.com/vietddude/vitality/internal/infra/storage/postgres"
	"github.com/vietddude/vitality/internal/infra/telemetry"
	"github.com/vietddude/vitality/internal/watch/backoff"
	"github.com/vietddude/vitality/internal/watch/channels"
	"github.com/vietddude/vitality/internal/watch/health"
	"github.com/vietddude/vitality/internal/watch/reachability"
	"github.com/vietddude/vitality/internal/watch/remedy"
)

// restartDelay is the pause before a crashed loop is started again.
const restartDelay = 30 * time.Second

// Config holds what the service needs besides the parsed file.
type Config struct {
	App *config.AppConfig
	// Path enables live reload of the config file when set.
	Path    string
	Version string
}

// Vitality is the main application struct that wires the node gateway,
// the loops and the status surface together.
type Vitality struct {
	cfg     *config.AppConfig
	version string

	client     *rpc.Client
	store      *config.Store
	dispatcher *notify.Dispatcher
	monitor    *health.Monitor
	server     *health.Server
	grpc       *health.GRPCServer
	watcher    *config.Watcher

	cycle   *channels.Cycle
	prober  *reachability.Prober
	db      *postgres.DB
	redis   *redisclient.Client
	tracing func(context.Context) error
	sleep   backoff.Sleeper
	log     *slog.Logger
}

// New creates a Vitality instance with all dependencies initialized. It
// does not talk to the node yet.
func New(ctx context.Context, cfg Config) (*Vitality, error) {
	app := cfg.App
	v := &Vitality{
		cfg:     app,
		version: cfg.Version,
		sleep:   backoff.Sleep,
		log:     slog.Default().With("component", "control"),
	}

	// 1. Tracing
	shutdown, err := telemetry.Init(ctx, app.Telemetry.ServiceName, app.Telemetry.OTLPEndpoint, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	v.tracing = shutdown

	// 2. Node gateway
	p, err := rpc.NewProvider(app.Node)
	if err != nil {
		return nil, fmt.Errorf("failed to create node provider: %w", err)
	}
	v.client = rpc.NewClient(p)

	// 3. Option storage
	var repo storage.OptionRepository
	if app.Database.URL != "" {
		v.db, err = postgres.NewDB(ctx, app.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := v.db.Migrate(ctx); err != nil {
			v.db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		repo = postgres.NewOptionRepo(v.db)
		v.log.Info("Using PostgreSQL option storage")
	} else {
		repo = memory.NewMemoryStorage()
		v.log.Info("Using memory option storage")
	}

	v.store = config.NewStore(app.Vitality, repo)
	if err := v.store.LoadOverrides(ctx); err != nil {
		v.log.Warn("Failed to load option overrides", "error", err)
	}

	// 4. Notification sinks
	var static []notify.Sink
	if app.Redis.URL != "" {
		v.redis, err = redisclient.NewClient(app.Redis)
		if err != nil {
			v.log.Warn("Failed to connect to Redis, redis sink disabled", "error", err)
		} else {
			static = append(static, notify.NewRedisSink(v.redis))
		}
	}
	if app.NATS.URL != "" {
		sink, err := notify.NewNATSSink(app.NATS.URL, app.NATS.Subject)
		if err != nil {
			v.log.Warn("Failed to connect to NATS, nats sink disabled", "error", err)
		} else {
			static = append(static, sink)
		}
	}
	v.dispatcher = notify.NewDispatcher(notify.NewTelegramClient("", 30*time.Second), static...)

	// 5. Engine
	sched := app.Schedule
	actuator := remedy.NewActuator(v.client, sched.DisconnectSettle, sched.ReconnectSettle)
	v.cycle = channels.NewCycle(v.client, actuator, v.store, v.dispatcher)
	v.prober = reachability.NewProber(v.client, app.Amboss.URL, app.Amboss.Timeout)

	// 6. Status surface
	v.monitor = health.NewMonitor(v.client.Provider())
	if v.db != nil {
		v.monitor.AddDependency("postgres", v.db.Health)
	}
	if v.redis != nil {
		v.monitor.AddDependency("redis", v.redis.Ping)
	}
	v.server = health.NewServer(v.monitor, v.store, v.dispatcher, app.Server.Port)
	if app.Server.GRPCPort > 0 {
		v.grpc = health.NewGRPCServer(v.monitor, app.Server.GRPCPort)
	}

	if cfg.Path != "" {
		v.watcher = config.NewWatcher(cfg.Path, v.store)
	}
	return v, nil
}

// Store returns the live option store.
func (v *Vitality) Store() *config.Store { return v.store }

// Cycle returns the channel health cycle.
func (v *Vitality) Cycle() *channels.Cycle { return v.cycle }

// Prober returns the reachability prober.
func (v *Vitality) Prober() *reachability.Prober { return v.prober }

// Dispatcher returns the alert dispatcher.
func (v *Vitality) Dispatcher() *notify.Dispatcher { return v.dispatcher }

// CheckNode queries the node identity and refuses versions older than
// node.min_version.
func (v *Vitality) CheckNode(ctx context.Context) (domain.NodeInfo, error) {
	info, err := v.client.GetInfo(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to reach node: %w", err)
	}
	if err := CheckVersion(info.Version, v.cfg.Node.MinVersion); err != nil {
		return info, err
	}
	v.dispatcher.SetNode(info.ID)
	v.log.Info("Connected to node",
		"id", info.ID,
		"alias", info.Alias,
		"version", info.Version,
		"network", info.Network,
		"height", info.BlockHeight,
	)
	return info, nil
}

// CheckVersion returns an error if have is older than min. Build suffixes
// such as "-modded" are ignored. An empty min accepts everything.
func CheckVersion(have, min string) error {
	if min == "" {
		return nil
	}
	want, err := version.NewVersion(min)
	if err != nil {
		return fmt.Errorf("invalid node.min_version %q: %w", min, err)
	}
	got, err := version.NewVersion(have)
	if err != nil {
		return fmt.Errorf("unrecognized node version %q: %w", have, err)
	}
	if got.Core().LessThan(want.Core()) {
		return fmt.Errorf("node version %s is older than the required %s", have, min)
	}
	return nil
}

// Run starts the enabled loops and the status servers and blocks until
// ctx is done.
func (v *Vitality) Run(ctx context.Context) error {
	if _, err := v.CheckNode(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v.log.Info("Status server listening", "port", v.cfg.Server.Port)
		if err := v.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})
	if v.grpc != nil {
		g.Go(func() error {
			v.log.Info("gRPC health server listening", "port", v.cfg.Server.GRPCPort)
			return v.grpc.Start()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return v.stopServers()
	})

	settings := v.store.Snapshot()
	sched := v.cfg.Schedule

	if settings.ChannelsEnabled() {
		v.monitor.Register(health.LoopChannels)
		loop := channels.NewLoop(v.cycle, sched.ChannelInterval, sched.InitialDelay, v.monitor)
		g.Go(func() error { return v.supervise(gctx, health.LoopChannels, loop.Run) })
		v.log.Info("Channel health loop enabled", "interval", sched.ChannelInterval, "initial_delay", sched.InitialDelay)
	} else {
		v.log.Info("Channel health loop disabled")
	}

	if settings.Amboss {
		v.monitor.Register(health.LoopReachability)
		b := backoff.NewLinearBackoff(sched.ProbeInterval, sched.ProbeRetry, sched.ProbeStep, sched.ProbeMax)
		loop := reachability.NewLoop(v.prober, b, v.store, v.dispatcher, v.monitor)
		g.Go(func() error { return v.supervise(gctx, health.LoopReachability, loop.Run) })
		v.log.Info("Reachability loop enabled", "interval", sched.ProbeInterval)
	} else {
		v.log.Info("Reachability loop disabled")
	}

	if v.watcher != nil {
		g.Go(func() error { return v.watcher.Run(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// supervise keeps run alive until ctx is done. A loop that returns early
// or panics is alarmed and started again.
func (v *Vitality) supervise(ctx context.Context, name string, run func(context.Context) error) error {
	for {
		err := guard(ctx, run)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("loop exited")
		}

		v.log.Error("Loop stopped unexpectedly, restarting", "loop", name, "error", err, "delay", restartDelay)
		subject := fmt.Sprintf("ALARM: %s loop Error", name)
		if derr := v.dispatcher.Dispatch(ctx, v.store.Snapshot(), subject, err.Error()); derr != nil {
			v.log.Warn("Failed to send loop alarm", "loop", name, "error", derr)
		}

		if err := v.sleep(ctx, restartDelay); err != nil {
			return nil
		}
	}
}

func guard(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}

func (v *Vitality) stopServers() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if v.grpc != nil {
		v.grpc.Stop()
	}
	return v.server.Stop(ctx)
}

// Close releases every connection held by the instance.
func (v *Vitality) Close(ctx context.Context) error {
	v.log.Info("Stopping vitality...")

	var errs []error
	if err := v.dispatcher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sinks: %w", err))
	}
	if v.db != nil {
		v.db.Close()
	}
	if err := v.client.Provider().Close(); err != nil {
		errs = append(errs, fmt.Errorf("close provider: %w", err))
	}
	if err := v.tracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	return errors.Join(errs...)
}
