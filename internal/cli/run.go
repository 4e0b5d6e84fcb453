package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/botlink"
	"github.com/aretw0/botlink/internal/config"
	"github.com/aretw0/botlink/internal/presentation/tui"
	"github.com/aretw0/botlink/pkg/adapters/memory"
	"github.com/aretw0/botlink/pkg/adapters/mqtt"
	"github.com/aretw0/botlink/pkg/domain"
	"github.com/aretw0/botlink/pkg/session"
)

// RunOptions contains the configuration for the run command.
type RunOptions struct {
	Config config.Config
	Debug  bool
	Banner bool
	Out    io.Writer
}

// Run connects the robot and serves until a signal, Close or a give-up condition.
func Run(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	if len(cfg.Addresses) == 0 {
		return domain.ErrNoServer
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := createLogger(cfg.Log, opts.Debug)
	if opts.Banner {
		tui.PrintBanner(opts.Out)
	}

	backing, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := backing.close(); err != nil {
			logger.Warn("Failed to close program store", "error", err)
		}
	}()

	robotOpts := []botlink.Option{
		botlink.WithName(cfg.Name),
		botlink.WithPassword(cfg.Password),
		botlink.WithSecure(cfg.Secure),
		botlink.WithVerify(cfg.Verify),
		botlink.WithTransport(botlink.Transport(cfg.Transport)),
		botlink.WithSocketPort(cfg.SocketPort),
		botlink.WithStore(backing.store),
		botlink.WithLogger(logger),
		botlink.WithMaxReconnects(cfg.ReconnectAttempts),
		botlink.WithSettleDelay(cfg.AuthenticatedDelay),
		botlink.WithSessionHooks(session.Hooks{
			OnReconnect: func(attempt int, delay time.Duration) {
				printSystemMessage(opts.Out, "Connection lost, retry %d in %s", attempt, delay)
			},
		}),
	}
	if backing.locker != nil {
		robotOpts = append(robotOpts, botlink.WithLocker(backing.locker))
	}

	if cfg.MQTT.Broker != "" {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "botlink-" + cfg.Name
		}
		client, err := mqtt.Connect(cfg.MQTT.Broker, clientID, cfg.MQTT.Timeout, logger)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		robotOpts = append(robotOpts, botlink.WithBridge(mqtt.New(client,
			mqtt.WithPrefix(cfg.MQTT.Prefix),
			mqtt.WithTimeout(cfg.MQTT.Timeout),
			mqtt.WithLogger(logger),
		)))
	} else {
		robotOpts = append(robotOpts, botlink.WithActuator(memory.NewActuator(memory.WithActuatorLogger(logger))))
	}

	robot := botlink.New(cfg.Addresses, robotOpts...)

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	if cfg.Status.Address != "" {
		srv := &http.Server{Addr: cfg.Status.Address, Handler: robot.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("Status surface listening", "address", cfg.Status.Address)
	}

	go func() {
		<-sigCtx.Done()
		_ = robot.Close()
	}()

	printSystemMessage(opts.Out, "Robot %q connecting to %v", robot.Name(), cfg.Addresses)
	runErr := robot.Run(sigCtx)

	if sig := sigCtx.Signal(); sig != nil {
		printSystemMessage(opts.Out, "Received %s, robot closed.", sig)
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("robot stopped: %w", runErr)
	}
	return nil
}
