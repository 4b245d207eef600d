package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/go-redis/redis/v8"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/consentd/pkg/config"
	"github.com/umputun/consentd/pkg/consent"
	"github.com/umputun/consentd/pkg/domain"
	"github.com/umputun/consentd/pkg/redisstore"
	"github.com/umputun/consentd/pkg/repository"
	"github.com/umputun/consentd/pkg/scheduler"
	"github.com/umputun/consentd/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"consentd.yml" description:"configuration file"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

	// common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug)

	log.Printf("[INFO] starting consentd version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		cancel()
		log.Printf("[ERROR] consentd failed: %v", err)
		os.Exit(1)
	}
	cancel()

	log.Print("[INFO] shutdown complete")
}

// run loads configuration, opens the consent storage and runs the http server
// with the purger until ctx is canceled
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if cfg.Redis.Password != "" {
		setupLog(opts.Debug, cfg.Redis.Password)
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.close()

	hub := consent.NewHub()
	unsubscribe := hub.Subscribe(func(e domain.Event) {
		lgr.Printf("[DEBUG] consent changed, profile %s, status %s, %+v", e.ProfileID, e.Status, e.Preferences)
	})
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)

	// with redis events enabled the hub is fed from the channel, so changes made
	// by other instances reach local listeners too
	var publisher consent.Publisher = hub
	if cfg.Redis.PublishEvents {
		pub := redisstore.NewPublisher(st.redis, cfg.Redis.Channel)
		publisher = pub
		g.Go(func() error {
			return pub.Subscribe(ctx, hub.Publish)
		})
	}

	if st.purgeDB != nil && cfg.Purge.Enabled {
		sched := scheduler.NewScheduler(st.purgeDB, scheduler.Config{
			PurgeInterval: cfg.Purge.Interval,
			Retention:     cfg.Consent.Retention,
			RecordKey:     cfg.Storage.Key,
		})
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := server.New(cfg, st.profiles, publisher, revision, opts.Debug)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	return g.Wait()
}

// storage holds the opened consent backends
type storage struct {
	profiles server.ProfileStore
	purgeDB  scheduler.Database // nil if the primary store expires entries itself or is ephemeral
	redis    redis.UniversalClient
	closers  []io.Closer
}

func (s *storage) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Printf("[WARN] failed to close storage: %v", err)
		}
	}
}

// openStorage opens the primary consent store selected by config and the redis
// client if events are published
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	st := &storage{}

	if cfg.Storage.Primary == config.StorageRedis || cfg.Redis.PublishEvents {
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		st.redis = client
		st.closers = append(st.closers, client)
	}

	switch cfg.Storage.Primary {
	case config.StorageSQLite:
		repos, err := repository.NewRepositories(ctx, repository.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		})
		if err != nil {
			st.close()
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		st.profiles = repos.Consent
		st.purgeDB = repos.Consent
		st.closers = append(st.closers, repos)
		log.Printf("[INFO] consent storage: sqlite")
	case config.StorageRedis:
		st.profiles = redisstore.NewStore(st.redis, cfg.Redis.Prefix)
		log.Printf("[INFO] consent storage: redis %v", cfg.Redis.Addrs)
	case config.StorageMemory:
		st.profiles = consent.NewProfiles()
		log.Printf("[WARN] consent storage: memory, records are lost on restart")
	default:
		st.close()
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage.Primary)
	}
	return st, nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
