package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fatih/color"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/burp"
	"github.com/vango-dev/burp/internal/config"
	burperrors "github.com/vango-dev/burp/internal/errors"
	"github.com/vango-dev/burp/pkg/mirrorstore"
	"github.com/vango-dev/burp/pkg/session"
	"github.com/vango-dev/burp/pkg/telemetry"
)

// app carries global flags and the resolved configuration.
type app struct {
	configPath string
	addr       string
	logLevel   string
	noColor    bool

	out    io.Writer
	errOut io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

// load resolves the configuration from file, environment and flags.
func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.addr != "" {
		cfg.Addr = a.addr
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger(a.errOut)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// storeHandle is an open snapshot store and whatever must close with it.
type storeHandle struct {
	mirrorstore.Store
	closers []func() error
}

func (h *storeHandle) Close() error {
	err := h.Store.Close()
	for _, c := range h.closers {
		if cerr := c(); err == nil {
			err = cerr
		}
	}
	return err
}

// openStore opens the configured snapshot store, or returns nil when
// persistence is off.
func (a *app) openStore(ctx context.Context) (*storeHandle, error) {
	sc := a.cfg.Store
	switch sc.Kind {
	case "", "none":
		return nil, nil
	case "memory":
		return &storeHandle{Store: mirrorstore.NewMemoryStore()}, nil
	case "sqlite":
		db, err := sql.Open("sqlite3", sc.Path)
		if err != nil {
			return nil, burperrors.New("B400").Wrap(err).WithDetail(err.Error())
		}
		st := mirrorstore.NewSQLStore(db,
			mirrorstore.WithSQLDialect(mirrorstore.DialectSQLite),
			mirrorstore.WithSQLLogger(a.logger),
		)
		if err := st.CreateTable(ctx); err != nil {
			st.Close()
			db.Close()
			return nil, burperrors.New("B400").Wrap(err).WithDetail(err.Error())
		}
		return &storeHandle{Store: st, closers: []func() error{db.Close}}, nil
	case "s3":
		return &storeHandle{Store: mirrorstore.NewS3Store(newS3Client(sc), sc.Bucket, sc.Prefix)}, nil
	default:
		return nil, burperrors.New("B102").WithDetailf("store.kind: unknown kind %q", sc.Kind)
	}
}

func newS3Client(sc config.StoreConfig) *s3.Client {
	region := sc.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	opts := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(envCredentials{}),
	}
	if sc.Endpoint != "" {
		opts.BaseEndpoint = aws.String(sc.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

// envCredentials reads the standard AWS credential variables.
type envCredentials struct{}

func (envCredentials) Retrieve(ctx context.Context) (aws.Credentials, error) {
	creds := aws.Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "EnvCredentials",
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set for the s3 store")
	}
	return creds, nil
}

// connectOptions are extra knobs for dial.
type connectOptions struct {
	metrics *telemetry.Metrics
	store   mirrorstore.Store
}

// dial connects to the configured switcher.
func (a *app) dial(ctx context.Context, co connectOptions) (*session.Session, error) {
	opts := []burp.Option{
		burp.WithLogger(a.logger),
		burp.WithSession(a.cfg.SessionOptions()...),
		burp.WithSession(session.WithTracer(telemetry.NewTracer("burpctl"))),
	}
	if co.metrics != nil {
		opts = append(opts, burp.WithSession(session.WithMetrics(co.metrics)))
	}
	if co.store != nil {
		opts = append(opts, burp.WithSeedFrom(co.store, a.cfg.SwitcherAddr()))
	}
	if a.cfg.Transport == "websocket" {
		opts = append(opts, burp.ViaRelay(nil))
	}

	a.logger.Debug("connecting", "addr", a.cfg.SwitcherAddr(), "transport", a.cfg.Transport)
	return burp.Dial(ctx, a.cfg.SwitcherAddr(), opts...)
}

// newMetrics registers session metrics on a fresh registry.
func newMetrics() (*telemetry.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return telemetry.NewMetrics(telemetry.WithRegistry(reg)), reg
}

func (a *app) success(format string, args ...any) {
	fmt.Fprintf(a.out, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func (a *app) warn(format string, args ...any) {
	fmt.Fprintf(a.errOut, "%s %s\n", color.YellowString("!"), fmt.Sprintf(format, args...))
}
