package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/agriai/pkg/adapter"
	"github.com/m-mizutani/agriai/pkg/gate"
	"github.com/m-mizutani/agriai/pkg/i18n"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/service/advisor"
	"github.com/m-mizutani/agriai/pkg/usecase/history"
	"github.com/m-mizutani/agriai/pkg/usecase/profile"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging and locale
	logLevel  string
	logFormat string
	lang      string
	localeDir string

	// Store
	store    string
	dataDir  string
	project  string
	database string
	bucket   string

	// Adapters
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	timeout        time.Duration
	gatePolicy     string

	// History
	predictionCap int64
	scanCap       int64

	// Audio
	player   string
	audioDir string
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "agriai")
	}
	return ".agriai"
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("AGRIAI_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("AGRIAI_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "lang",
			Aliases:     []string{"l"},
			Usage:       "Language (en, am, om). Defaults to the saved preference",
			Sources:     cli.EnvVars("AGRIAI_LANG"),
			Destination: &cfg.lang,
		},
		&cli.StringFlag{
			Name:        "locale-dir",
			Usage:       "Directory of YAML files overriding the built-in translations",
			Sources:     cli.EnvVars("AGRIAI_LOCALE_DIR"),
			Destination: &cfg.localeDir,
		},
	}
}

// storeFlags returns flags for durable storage
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Key/value store backend (bolt, firestore)",
			Value:       "bolt",
			Sources:     cli.EnvVars("AGRIAI_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory of the local database and artifacts",
			Value:       defaultDataDir(),
			Sources:     cli.EnvVars("AGRIAI_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for images. Local files are used if empty",
			Sources:     cli.EnvVars("AGRIAI_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini on Vertex AI",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of each AI service call",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("AGRIAI_TIMEOUT"),
			Destination: &cfg.timeout,
		},
		&cli.StringFlag{
			Name:        "gate-policy",
			Usage:       "Rego file replacing the built-in feature gate policy",
			Sources:     cli.EnvVars("AGRIAI_GATE_POLICY"),
			Destination: &cfg.gatePolicy,
		},
	}
}

// historyFlags returns flags for history capacities
func historyFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "prediction-history-cap",
			Usage:       "Maximum number of saved predictions",
			Value:       history.DefaultPredictionCapacity,
			Sources:     cli.EnvVars("AGRIAI_PREDICTION_HISTORY_CAP"),
			Destination: &cfg.predictionCap,
		},
		&cli.IntFlag{
			Name:        "scan-history-cap",
			Usage:       "Maximum number of saved scans",
			Value:       history.DefaultScanCapacity,
			Sources:     cli.EnvVars("AGRIAI_SCAN_HISTORY_CAP"),
			Destination: &cfg.scanCap,
		},
	}
}

// audioFlags returns flags for speech playback
func audioFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "player",
			Usage:       "Command playing a WAV file given as its last argument (default: aplay or afplay)",
			Sources:     cli.EnvVars("AGRIAI_PLAYER"),
			Destination: &cfg.player,
		},
		&cli.StringFlag{
			Name:        "audio-dir",
			Usage:       "Write speech to WAV files in this directory instead of playing it",
			Sources:     cli.EnvVars("AGRIAI_AUDIO_DIR"),
			Destination: &cfg.audioDir,
		},
	}
}

// setup installs the configured logger into ctx
func (cfg *config) setup(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr, logging.WithFormat(cfg.logFormat))
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	var opts []adapter.GeminiOption
	if cfg.geminiAPIKey != "" {
		opts = append(opts, adapter.WithAPIKey(cfg.geminiAPIKey))
	}
	if cfg.geminiProject != "" {
		opts = append(opts, adapter.WithVertexAI(cfg.geminiProject, cfg.geminiLocation))
	}
	return adapter.NewGemini(ctx, opts...)
}

// newAdvisor creates the AI advisor
func (cfg *config) newAdvisor(ctx context.Context, catalog *i18n.Catalog) (*advisor.Advisor, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}
	return advisor.New(gemini,
		advisor.WithTimeout(cfg.timeout),
		advisor.WithRegions(catalog.For(model.LanguageEnglish).Regions),
	), nil
}

// newKVStore opens the key/value store. The returned function closes it.
func (cfg *config) newKVStore(ctx context.Context) (interfaces.KVStore, func(), error) {
	switch cfg.store {
	case "bolt":
		if err := os.MkdirAll(cfg.dataDir, 0o700); err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create data directory",
				goerr.V("dir", cfg.dataDir), goerr.T(model.TagConfiguration))
		}
		db, err := adapter.NewBolt(filepath.Join(cfg.dataDir, "agriai.db"))
		if err != nil {
			return nil, nil, err
		}
		return db, closer(ctx, db.Close), nil

	case "firestore":
		if cfg.project == "" {
			return nil, nil, goerr.New("project is required for firestore", goerr.T(model.TagConfiguration))
		}
		fs, err := adapter.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, nil, err
		}
		return fs, closer(ctx, fs.Close), nil

	default:
		return nil, nil, goerr.New("unknown store", goerr.V("store", cfg.store), goerr.T(model.TagConfiguration))
	}
}

func closer(ctx context.Context, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			logging.From(ctx).Warn("failed to close store", logging.ErrAttr(err))
		}
	}
}

// newArtifactStorage creates the image storage
func (cfg *config) newArtifactStorage(ctx context.Context) (interfaces.ArtifactStorage, error) {
	if cfg.bucket != "" {
		return adapter.NewStorage(ctx, cfg.bucket, "agriai")
	}
	return adapter.NewFileStorage(filepath.Join(cfg.dataDir, "artifacts"))
}

// newGate prepares the feature gate
func (cfg *config) newGate(ctx context.Context) (*gate.Gate, error) {
	var opts []gate.Option
	if cfg.gatePolicy != "" {
		opts = append(opts, gate.WithPolicyFile(cfg.gatePolicy))
	}
	return gate.New(ctx, opts...)
}

// newCatalog loads and validates the translations
func (cfg *config) newCatalog() (*i18n.Catalog, error) {
	var opts []i18n.Option
	if cfg.localeDir != "" {
		opts = append(opts, i18n.WithOverrideDir(cfg.localeDir))
	}
	return i18n.Load(opts...)
}

// newPlayer creates the audio output
func (cfg *config) newPlayer() (interfaces.Player, error) {
	if cfg.audioDir != "" {
		return adapter.NewWAVFilePlayer(cfg.audioDir, true)
	}
	var opts []adapter.ExecPlayerOption
	if cfg.player != "" {
		opts = append(opts, adapter.WithPlayerCommand(cfg.player))
	}
	return adapter.NewExecPlayer(opts...)
}

// language returns the --lang value, or the saved preference
func (cfg *config) language(ctx context.Context, prof *profile.Service) model.Language {
	if cfg.lang != "" {
		return model.ParseLanguage(cfg.lang)
	}
	return prof.Language(ctx)
}
