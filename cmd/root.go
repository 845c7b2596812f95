/*
Copyright © 2023 Alixinne <alixinne@pm.me>
*/
package cmd

import (
	"agp/config"
	"agp/constants"
	"agp/process"
	"agp/push"
	"agp/vcs"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agp",
	Short: "Push a keep-alive commit to every repository of a user",
	Long: `agp lists the repositories of a user, skips archived ones and those carrying
a .github/.noagp file on their default branch, and force-pushes a commit updating
.github/.agp to each of the others.`,
	Args: cobra.NoArgs,
	Run:  run,
}

var configPath string
var username string
var token string
var scratchDir string
var concurrency int
var timeout time.Duration
var dryRun bool
var debugMode bool

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("username") {
		cfg.Username = username
	}
	if flags.Changed("token") {
		cfg.Token = token
	}
	if flags.Changed("scratch-dir") {
		cfg.ScratchDir = scratchDir
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}

	err := cfg.Finalize()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func run(cmd *cobra.Command, args []string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if !debugMode {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, constants.DRY_RUN, dryRun)

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatal().Err(err).Send()
	}

	host, err := vcs.LoadClient(ctx, cfg.Host, cfg.Token)
	if err != nil {
		log.Fatal().Err(err).Send()
	}

	pipeline := push.NewPipeline(process.NewOSRunner(), host, cfg)
	batch := push.NewBatch(host, pipeline, cfg, cmd.OutOrStdout())

	_, err = batch.Run(ctx, cfg.Username)
	if errors.Is(err, push.ErrSomeFailed) {
		stop()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "User whose repositories are processed (default $GITHUB_ACTOR)")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "Access token used to clone and push (default $GITHUB_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&scratchDir, "scratch-dir", "", "Directory wiped and used for clones")
	rootCmd.PersistentFlags().IntVarP(&concurrency, "concurrency", "j", 0, "Maximum number of repositories processed at once")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Time limit for processing a single repository")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Dry-run mode")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "D", false, "Debug mode")
}
