package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/DossierPipe/internal/api"
	"github.com/BTreeMap/DossierPipe/internal/enrich"
	"github.com/BTreeMap/DossierPipe/internal/genai"
	"github.com/BTreeMap/DossierPipe/internal/lockfile"
	"github.com/BTreeMap/DossierPipe/internal/notify"
	"github.com/BTreeMap/DossierPipe/internal/store"
	"github.com/BTreeMap/DossierPipe/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for DossierPipe state data
	DefaultStateDir = "/var/lib/dossierpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "dossierpipe.db"
)

func main() {
	loadDotEnv()
	initializeLogger(os.Getenv("LOG_LEVEL"))

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)

	if err := run(flags); err != nil {
		slog.Error("DossierPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("DossierPipe exited successfully")
}

func run(flags Flags) error {
	if store.DetectDSNType(flags.dbDSN) == store.DSNTypeSQLite && flags.dbDSN != "" {
		if err := ensureDirectoriesExist(flags); err != nil {
			return err
		}
		lock, err := lockfile.Acquire(filepath.Dir(flags.dbDSN))
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				slog.Warn("Failed to release state directory lock", "error", err)
			}
		}()
	}

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	notifyOpts := buildNotifyOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping DossierPipe with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "notify", len(notifyOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", flags.stateDir, "dsn_set", flags.dbDSN != "", "api_addr", flags.apiAddr, "genai_provider", flags.genaiProvider)
	return api.Run(storeOpts, genaiOpts, notifyOpts, apiOpts)
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	APIAddr       string
	GenAIProvider string
	OpenAIKey     string
	AnthropicKey  string
	GenAIModel    string
	GenAIDebugDir string
	GenAITimeout  time.Duration
	RatePerMinute int
	KBPath        string
	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	InMemory      bool
}

// Flags holds command line flag values after parsing
type Flags struct {
	stateDir      string
	dbDSN         string
	apiAddr       string
	genaiProvider string
	genaiKey      string
	genaiModel    string
	genaiDebugDir string
	genaiTimeout  time.Duration
	ratePerMinute int
	kbPath        string
	twilioSID     string
	twilioToken   string
	twilioFrom    string
}

// loadDotEnv loads a .env file from the working directory when present.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
}

// initializeLogger sets up structured text logging at the given level.
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: util.ParseLogLevel(level)}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig reads configuration from environment variables
func loadEnvironmentConfig() Config {
	config := Config{
		StateDir:      os.Getenv("DOSSIERPIPE_STATE_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		APIAddr:       os.Getenv("API_ADDR"),
		GenAIProvider: os.Getenv("GENAI_PROVIDER"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GenAIModel:    os.Getenv("GENAI_MODEL"),
		GenAIDebugDir: os.Getenv("GENAI_DEBUG_DIR"),
		GenAITimeout:  util.ParseDurationEnv("GENAI_TIMEOUT", enrich.DefaultTimeout),
		RatePerMinute: util.ParseIntEnv("GENAI_RATE_PER_MINUTE", enrich.DefaultRatePerMinute),
		KBPath:        os.Getenv("KB_PATH"),
		TwilioSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:    os.Getenv("TWILIO_FROM_NUMBER"),
		InMemory:      util.ParseBoolEnv("DOSSIERPIPE_IN_MEMORY", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DOSSIERPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.GenAIProvider == "" {
		config.GenAIProvider = detectProvider(config)
	}

	slog.Debug("environment variables loaded",
		"DOSSIERPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"GENAI_PROVIDER", config.GenAIProvider,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"ANTHROPIC_API_KEY_SET", config.AnthropicKey != "",
		"GENAI_MODEL", config.GenAIModel,
		"GENAI_TIMEOUT", config.GenAITimeout,
		"GENAI_RATE_PER_MINUTE", config.RatePerMinute,
		"KB_PATH", config.KBPath,
		"TWILIO_SET", config.TwilioSID != "" && config.TwilioToken != "",
		"DOSSIERPIPE_IN_MEMORY", config.InMemory)
	return config
}

// detectProvider picks the provider whose API key is set, preferring OpenAI.
func detectProvider(config Config) string {
	switch {
	case config.OpenAIKey != "":
		return api.ProviderOpenAI
	case config.AnthropicKey != "":
		return api.ProviderAnthropic
	default:
		return api.ProviderNone
	}
}

// providerKey returns the API key configured for provider.
func providerKey(config Config, provider string) string {
	if provider == api.ProviderAnthropic {
		return config.AnthropicKey
	}
	return config.OpenAIKey
}

// defaultDSN returns the database DSN implied by the environment: the
// DATABASE_URL when set, otherwise SQLite in the state directory. The
// in-memory store is selected with an empty DSN.
func defaultDSN(config Config, stateDir string) string {
	if config.InMemory {
		return ""
	}
	if config.DatabaseURL != "" {
		return config.DatabaseURL
	}
	return filepath.Join(stateDir, DefaultDBFileName)
}

// parseCommandLineFlags parses args with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) Flags {
	stateDir := fs.String("state-dir", config.StateDir, "state directory for DossierPipe data (overrides $DOSSIERPIPE_STATE_DIR)")
	dbDSN := fs.String("db-dsn", "", "database DSN, Postgres URL or SQLite path (overrides $DATABASE_URL; default SQLite in the state directory)")
	apiAddr := fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	provider := fs.String("genai-provider", config.GenAIProvider, "text generation provider: openai, anthropic or none (overrides $GENAI_PROVIDER)")
	genaiKey := fs.String("genai-api-key", "", "API key for the selected provider (overrides $OPENAI_API_KEY / $ANTHROPIC_API_KEY)")
	model := fs.String("genai-model", config.GenAIModel, "model name (overrides $GENAI_MODEL)")
	debugDir := fs.String("genai-debug-dir", config.GenAIDebugDir, "directory for generation debug logs (overrides $GENAI_DEBUG_DIR)")
	timeout := fs.Duration("genai-timeout", config.GenAITimeout, "timeout per enrichment call (overrides $GENAI_TIMEOUT)")
	rate := fs.Int("genai-rate-per-minute", config.RatePerMinute, "enrichment calls allowed per minute, 0 disables the limit (overrides $GENAI_RATE_PER_MINUTE)")
	kbPath := fs.String("kb-path", config.KBPath, "knowledge base YAML file (overrides $KB_PATH)")
	twilioFrom := fs.String("twilio-from", config.TwilioFrom, "Twilio sender number, prefix with whatsapp: for WhatsApp (overrides $TWILIO_FROM_NUMBER)")

	if err := fs.Parse(args); err != nil {
		slog.Error("failed to parse flags", "error", err)
	}

	flags := Flags{
		stateDir:      *stateDir,
		dbDSN:         *dbDSN,
		apiAddr:       *apiAddr,
		genaiProvider: *provider,
		genaiKey:      *genaiKey,
		genaiModel:    *model,
		genaiDebugDir: *debugDir,
		genaiTimeout:  *timeout,
		ratePerMinute: *rate,
		kbPath:        *kbPath,
		twilioSID:     config.TwilioSID,
		twilioToken:   config.TwilioToken,
		twilioFrom:    *twilioFrom,
	}
	// The SQLite default follows a --state-dir override.
	if flags.dbDSN == "" {
		flags.dbDSN = defaultDSN(config, flags.stateDir)
	}
	if flags.genaiKey == "" {
		flags.genaiKey = providerKey(config, flags.genaiProvider)
	}

	slog.Debug("flags parsed",
		"stateDir", flags.stateDir,
		"dbDSN_set", flags.dbDSN != "",
		"apiAddr", flags.apiAddr,
		"genaiProvider", flags.genaiProvider,
		"genaiKeySet", flags.genaiKey != "",
		"genaiModel", flags.genaiModel,
		"genaiTimeout", flags.genaiTimeout,
		"ratePerMinute", flags.ratePerMinute,
		"kbPath", flags.kbPath)
	return flags
}

// ensureDirectoriesExist creates the directory holding a file-based database
func ensureDirectoriesExist(flags Flags) error {
	dir := filepath.Dir(flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(flags.dbDSN) == store.DSNTypePostgres {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		storeOpts = append(storeOpts, store.WithPostgresDSN(flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(flags.dbDSN))
	}
	return storeOpts
}

// buildGenAIOptions constructs text generation options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if flags.genaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(flags.genaiKey))
	}
	if flags.genaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(flags.genaiModel))
	}
	if flags.genaiDebugDir != "" {
		genaiOpts = append(genaiOpts, genai.WithDebugDir(flags.genaiDebugDir))
	}
	return genaiOpts
}

// buildNotifyOptions constructs Twilio notifier options
func buildNotifyOptions(flags Flags) []notify.Option {
	var notifyOpts []notify.Option
	if flags.twilioSID != "" {
		notifyOpts = append(notifyOpts, notify.WithAccountSID(flags.twilioSID))
	}
	if flags.twilioToken != "" {
		notifyOpts = append(notifyOpts, notify.WithAuthToken(flags.twilioToken))
	}
	if flags.twilioFrom != "" {
		notifyOpts = append(notifyOpts, notify.WithFrom(flags.twilioFrom))
	}
	return notifyOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	apiOpts := []api.Option{
		api.WithGenAIProvider(flags.genaiProvider),
		api.WithRatePerMinute(flags.ratePerMinute),
	}
	if flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(flags.apiAddr))
	}
	if flags.genaiTimeout > 0 {
		apiOpts = append(apiOpts, api.WithGenAITimeout(flags.genaiTimeout))
	}
	if flags.kbPath != "" {
		apiOpts = append(apiOpts, api.WithKnowledgeBasePath(flags.kbPath))
	}
	return apiOpts
}
