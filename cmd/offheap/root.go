package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreyvit/offheap"
	"github.com/andreyvit/offheap/logger"
)

const Version = "0.3.0"

var (
	RootCmd = &cobra.Command{
		Use:   "offheap",
		Short: "disk-backed maps and sets",
		Long: fmt.Sprintf(`offheap (v%s)

Maps and sets that keep their entries in an embedded key-value engine
instead of memory. Every flag can also be set through an OFFHEAP_*
environment variable or a .env file.`, Version),
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of offheap",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "offheap v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(dedupCmd)
	RootCmd.AddCommand(dumpCmd)
	RootCmd.AddCommand(statsCmd)

	flags := RootCmd.PersistentFlags()
	flags.String("config", "", "YAML or JSON file with an offheap: section")
	flags.String("engine", offheap.DefaultEngine, "storage engine ("+strings.Join(offheap.Engines(), ", ")+")")
	flags.String("base-dir", "", "parent directory for scratch collections (default: system temp dir)")
	flags.Int64("cache-size", 0, "engine cache size in bytes (0 = engine default)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
}

// initConfig loads env files and wires viper to the environment.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("offheap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
	logger.SetDefault(newLogger(viper.GetString("log-level")))
	return nil
}

// newLogger picks the console logger for debugging and JSON otherwise.
func newLogger(level string) logger.Logger {
	if level == "debug" {
		return logger.MustDevelopment()
	}
	return logger.MustProduction(level)
}

func teardown(_ *cobra.Command, _ []string) error {
	offheap.DefaultRegistry().Shutdown()
	logger.SyncDefault()
	return nil
}

// collectionOptions layers command-line flags over the config file.
func collectionOptions() ([]offheap.Option, error) {
	base, err := offheap.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	opts := []offheap.Option{offheap.WithConfig(base)}
	if viper.IsSet("engine") {
		opts = append(opts, offheap.WithEngine(viper.GetString("engine")))
	}
	if dir := viper.GetString("base-dir"); dir != "" {
		opts = append(opts, offheap.WithBaseDir(dir))
	}
	if size := viper.GetInt64("cache-size"); size > 0 {
		opts = append(opts, offheap.WithCacheSize(size))
	}
	return opts, nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; open collections are closed once the command returns.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := executeContext(ctx); err != nil {
		logger.Fatal("command failed", "error", err)
	}
}

// executeContext runs the root command and then closes whatever it left
// open, on the calling goroutine.
func executeContext(ctx context.Context) error {
	err := RootCmd.ExecuteContext(ctx)
	if n := offheap.DefaultRegistry().Shutdown(); n > 0 && ctx.Err() != nil {
		logger.Default().Warn("interrupted, closed open collections", "count", n)
	}
	return err
}
