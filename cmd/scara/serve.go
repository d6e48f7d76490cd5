package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gwillem/scara/pkg/api"
	"github.com/gwillem/scara/pkg/arbiter"
	"github.com/gwillem/scara/pkg/control"
	"github.com/gwillem/scara/pkg/link"
	"github.com/gwillem/scara/pkg/robot"
	"github.com/gwillem/scara/pkg/status"
)

type ServeCommand struct {
	Addr     string `long:"addr" description:"HTTP listen address (overrides config)"`
	Device   string `long:"device" description:"Device IP address (overrides config)"`
	Actuator string `long:"actuator" choice:"udp" choice:"servo" description:"Actuator backend (overrides config)"`
	Port     string `long:"port" description:"Servo bus serial port (overrides config)"`
	Verbose  bool   `short:"v" long:"verbose" description:"Development logging"`
}

func (c *ServeCommand) apply(cfg *robot.Config) {
	if c.Addr != "" {
		cfg.HTTP.Addr = c.Addr
	}
	if c.Device != "" {
		cfg.Link.DeviceAddr = c.Device
	}
	if c.Actuator != "" {
		cfg.Actuator = c.Actuator
	}
	if c.Port != "" {
		cfg.Servo.Port = c.Port
	}
}

func (c *ServeCommand) Execute(args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.apply(cfg)

	logger, err := newLogger(c.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()
	health := link.NewHealth(cfg.Link.DeviceAddr)
	hub := api.NewHub(clk)
	agg := status.NewAggregator(cfg.Geometry, health, cfg.Link.Timeout(), clk).WithObservers(hub.Subscribers)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	var actuator arbiter.Actuator
	switch cfg.Actuator {
	case robot.ActuatorServo:
		if cfg.Servo.Port == "" {
			return errors.New("no servo port configured, run 'scara setup' or pass --port")
		}
		arm, err := robot.NewArm(cfg.Servo.Port, cfg.Servo.Calibration, log.Named("servo"))
		if err != nil {
			return err
		}
		closers = append(closers, disableOnClose{arm})
		if err := arm.Enable(ctx); err != nil {
			log.Warnw("enable servos", "error", err)
		}
		actuator = arm
		g.Go(func() error {
			return arm.Watch(ctx, clk, cfg.Link.HeartbeatPeriod(), func(addr string, ts time.Time) {
				health.OnDeviceAlive(addr, ts)
			})
		})

	case robot.ActuatorUDP, "":
		cmdConn, err := net.ListenPacket("udp4", ":0")
		if err != nil {
			return fmt.Errorf("open command socket: %w", err)
		}
		closers = append(closers, cmdConn)
		actuator = link.NewUDPActuator(cmdConn, health, cfg.Link.CommandPort, log.Named("udp"))

		pingConn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", cfg.Link.ListenPort))
		if err != nil {
			return fmt.Errorf("open liveness socket: %w", err)
		}
		closers = append(closers, pingConn)
		listener := link.NewListener(pingConn, health, clk, log.Named("link"))
		g.Go(func() error { return listener.Run(ctx) })

	default:
		return fmt.Errorf("unknown actuator %q", cfg.Actuator)
	}

	arb := arbiter.New(arbiter.Options{
		Geometry:   cfg.Geometry,
		Policy:     cfg.Motion.Policy(),
		Speed:      cfg.Motion.DefaultSpeed,
		Throttle:   cfg.Link.Throttle(),
		Actuator:   actuator,
		Observer:   hub,
		Aggregator: agg,
		Clock:      clk,
		Logger:     log.Named("arbiter"),
	})

	ctrl := control.NewController(control.Config{
		Period:   cfg.Link.HeartbeatPeriod(),
		Motion:   arb,
		Link:     agg,
		Notifier: hub,
		Clock:    clk,
		Logger:   log.Named("control"),
	})
	g.Go(func() error { return ctrl.Start(ctx) })

	localIP := outboundIP()
	info := func() api.ServerInfo {
		return api.ServerInfo{HTTPAddr: cfg.HTTP.Addr, LocalIP: localIP, RobotAddr: health.Addr()}
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(arb, hub, info, log.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		// Ends the event streams so Shutdown does not wait on them.
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Infow("scara controller running",
		"http", cfg.HTTP.Addr,
		"actuator", cfg.Actuator,
		"device", cfg.Link.DeviceAddr,
		"local_ip", localIP,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Infow("scara controller stopped")
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// outboundIP returns the address this host uses to reach the outside,
// without sending anything.
func outboundIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// disableOnClose releases servo torque before closing the bus.
type disableOnClose struct {
	arm *robot.Arm
}

func (d disableOnClose) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return multierr.Combine(d.arm.Disable(ctx), d.arm.Close())
}
