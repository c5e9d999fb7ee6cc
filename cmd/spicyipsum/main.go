package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/grasp-labs/ds-spicyipsum-go/internal/config"
	"github.com/grasp-labs/ds-spicyipsum-go/internal/server"
	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

var (
	// Version as provided by goreleaser.
	Version = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:           "spicyipsum",
		Short:         "Serve spicy placeholder text",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	seedCmd = &cobra.Command{
		Use:   "seed FILE",
		Short: "Create the corpus tables and load categories and words from FILE",
		Args:  cobra.ExactArgs(1),
		RunE:  seed,
	}
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}
	lvl, _ := cfg.Env.Level()
	log.SetLevel(lvl)
	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
	}
	return cfg, nil
}

// resolveDSN returns the configured DSN, or reads it from SSM when a
// parameter name is configured.
func resolveDSN(ctx context.Context, cfg *config.Config, opts ...ipsum.SSMOption) (string, error) {
	if cfg.Database.SSMParameter == "" {
		return cfg.Database.DSN, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}
	prov := ipsum.NewSSMProvider(ssm.NewFromConfig(awsCfg), 5*time.Minute, opts...)
	return prov.Get(ctx, cfg.Database.SSMParameter)
}

func openStore(ctx context.Context, cfg *config.Config, opts ...ipsum.SSMOption) (*ipsum.GormCorpusStore, error) {
	dsn, err := resolveDSN(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}
	return ipsum.NewGormCorpusStore(dialector)
}

func closeStore(store *ipsum.GormCorpusStore) {
	if sqlDB, err := store.DB().DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := ipsum.NewTTLCache[any](ipsum.WithSweepInterval(cfg.Cache.SweepInterval))
	defer cache.Close() //nolint:errcheck

	store, err := openStore(ctx, cfg, ipsum.WithSSMCache(cache))
	if err != nil {
		return err
	}
	defer closeStore(store)

	limCfg := cfg.Limiter()
	limiter := ipsum.NewRateLimiter(cache, limCfg)
	corpus := ipsum.NewCorpusCache(cache, store)
	srv := server.New(limiter, ipsum.NewGenerator(corpus), server.Options{
		Name:            cfg.App.Name,
		UserAgentBlocks: cfg.UserAgentBlocks,
		TrustProxy:      cfg.TrustProxy,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		RetryAfter:      limCfg.BlockDuration,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	log.Info(cfg.App.Name, "version", Version, "environment", cfg.Env.Environment)
	errc := make(chan error, 1)
	go func() {
		log.Info("server started", "serving", httpSrv.Addr)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

type seedFile struct {
	Types []struct {
		ID   int    `mapstructure:"type_id"`
		Name string `mapstructure:"name"`
	} `mapstructure:"types"`
	Words []struct {
		Type  string   `mapstructure:"type"`
		Texts []string `mapstructure:"texts"`
	} `mapstructure:"words"`
}

func seed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	v := viper.New()
	v.SetConfigFile(args[0])
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var data seedFile
	if err := v.Unmarshal(&data); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}

	byName := make(map[string]int, len(data.Types))
	categories := make([]ipsum.Category, 0, len(data.Types))
	for _, t := range data.Types {
		byName[t.Name] = t.ID
		categories = append(categories, ipsum.Category{TypeID: t.ID, Name: t.Name})
	}
	var words []ipsum.Word
	for _, group := range data.Words {
		id, ok := byName[group.Type]
		if !ok {
			return fmt.Errorf("seed file: words reference unknown type %q", group.Type)
		}
		for _, t := range group.Texts {
			words = append(words, ipsum.Word{Text: t, TypeID: id})
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if err := store.AddCategories(ctx, categories); err != nil {
		return fmt.Errorf("add types: %w", err)
	}
	if err := store.AddWords(ctx, words); err != nil {
		return fmt.Errorf("add words: %w", err)
	}
	log.Info("seeded corpus", "types", len(categories), "words", len(words))
	return nil
}

func setupLog() {
	log.SetReportTimestamp(true)
	log.SetPrefix("spicyipsum")
}

func main() {
	setupLog()
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./spicyipsum.yaml)")
	rootCmd.PersistentFlags().String("address", "", "listen address")
	rootCmd.PersistentFlags().Int("port", 0, "listen port")
	seedCmd.Flags().Bool("reset", false, "delete existing types and words first")

	_ = viper.BindPFlag("app.address", rootCmd.PersistentFlags().Lookup("address"))
	_ = viper.BindPFlag("app.port", rootCmd.PersistentFlags().Lookup("port"))

	rootCmd.AddCommand(serveCmd, seedCmd)
}
