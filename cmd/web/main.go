package main

import (
	"context"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/broker"
	"github.com/myrjola/sleuth/internal/cache"
	"github.com/myrjola/sleuth/internal/detective"
	"github.com/myrjola/sleuth/internal/envstruct"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/images"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/myrjola/sleuth/internal/pprofserver"
	"github.com/myrjola/sleuth/internal/repositories"
	"github.com/myrjola/sleuth/internal/sqlite"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	players        *repositories.PlayerRepository
	investigations *repositories.InvestigationRepository
	detective      *detective.Service
	generations    *broker.ChannelBroker[string, detective.Progress]
	// background is the context of background work such as investigation generation. It is cancelled on shutdown.
	background        context.Context
	backgroundWG      sync.WaitGroup
	generationTimeout time.Duration
	requestTimeout    time.Duration
	secureCookies     bool
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"SLEUTH_ADDR" envDefault:"localhost:4000"`
	// PprofPort is the port for the pprof server on loopback. Empty disables it.
	PprofPort string `env:"SLEUTH_PPROF_PORT" envDefault:":6060"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"SLEUTH_SQLITE_URL" envDefault:"./sleuth.sqlite"`
	// AI is populated separately, see [ai.Config].
	AI ai.Config
	// RedisAddr enables caching model responses in Redis.
	RedisAddr string        `env:"SLEUTH_REDIS_ADDR" envDefault:""`
	CacheTTL  time.Duration `env:"SLEUTH_CACHE_TTL" envDefault:"24h"`
	// CDNUploadURL enables painting the investigations. Images are generated with OpenAI.
	CDNUploadURL      string        `env:"SLEUTH_CDN_UPLOAD_URL" envDefault:""`
	CDNUploadPreset   string        `env:"SLEUTH_CDN_UPLOAD_PRESET" envDefault:""`
	RequestTimeout    time.Duration `env:"SLEUTH_REQUEST_TIMEOUT" envDefault:"30s"`
	GenerationTimeout time.Duration `env:"SLEUTH_GENERATION_TIMEOUT" envDefault:"3m"`
	SecureCookies     bool          `env:"SLEUTH_SECURE_COOKIES" envDefault:"true"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		err error
		cfg config
	)

	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	if err = envstruct.Populate(&cfg.AI, lookupEnv); err != nil {
		return errors.Wrap(err, "populate ai config")
	}

	if cfg.PprofPort != "" {
		// Initialise pprof listening on localhost so that it's not open to the world.
		pprofserver.Launch(ctx, cfg.PprofPort, logger)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close database", errors.SlogError(closeErr))
		}
	}()

	investigations := repositories.NewInvestigationRepository(db, logger)
	var interrupted int64
	if interrupted, err = investigations.FailInterrupted(ctx, time.Now()); err != nil {
		return errors.Wrap(err, "fail interrupted generations")
	}
	if interrupted > 0 {
		logger.LogAttrs(ctx, slog.LevelWarn, "generations were interrupted", slog.Int64("count", interrupted))
	}

	text, painter, closeAI, err := newAI(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAI()

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, 24*time.Hour) //nolint:mnd // daily
	sessionManager.Lifetime = 30 * 24 * time.Hour                                              //nolint:mnd // a month
	sessionManager.Cookie.Secure = cfg.SecureCookies
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	generations := broker.NewChannelBroker[string, detective.Progress]()
	go generations.Start()
	defer generations.Stop()

	background, cancelBackground := context.WithCancel(context.WithoutCancel(ctx))
	app := application{
		logger:            logger,
		sessionManager:    sessionManager,
		players:           repositories.NewPlayerRepository(db, logger),
		investigations:    investigations,
		detective:         detective.NewService(investigations, text, painter, logger),
		generations:       generations,
		background:        background,
		backgroundWG:      sync.WaitGroup{},
		generationTimeout: cfg.GenerationTimeout,
		requestTimeout:    cfg.RequestTimeout,
		secureCookies:     cfg.SecureCookies,
	}

	err = app.configureAndStartServer(ctx, cfg.Addr)
	cancelBackground()
	app.backgroundWG.Wait()
	if err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

// newAI wires the language model and the optional painter according to the configuration.
func newAI(ctx context.Context, cfg config, logger *slog.Logger) (ai.TextGenerator, detective.Painter, func(), error) {
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	text, closeText, err := ai.NewTextGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return nil, nil, closeAll, errors.Wrap(err, "new text generator")
	}
	closers = append(closers, func() {
		if closeErr := closeText(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close ai client", errors.SlogError(closeErr))
		}
	})

	if cfg.RedisAddr != "" {
		redis := cache.NewRedis(cfg.RedisAddr, logger)
		if err := redis.Ping(ctx); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "redis not reachable, caching anyway", errors.SlogError(err))
		}
		closers = append(closers, func() {
			if err := redis.Close(); err != nil {
				logger.LogAttrs(ctx, slog.LevelError, "failed to close redis", errors.SlogError(err))
			}
		})
		text = ai.NewCached(text, redis, cfg.CacheTTL, logger)
	}

	var painter detective.Painter
	if cfg.CDNUploadURL != "" {
		cdn := images.NewCDN(&http.Client{Timeout: time.Minute}, cfg.CDNUploadURL, cfg.CDNUploadPreset) //nolint:exhaustruct // defaults
		painter = images.NewPainter(ai.NewImageGenerator(cfg.AI, logger), cdn, logger)
	}

	return text, painter, closeAll, nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	// A missing .env file is fine, the environment is used as is.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failure loading .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
