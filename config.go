/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/partyquiz/games/quiz"
)

const (
	rankingNone     = "none"
	rankingRedis    = "redis"
	rankingPostgres = "postgres"
)

type Config struct {
	bind    string
	port    int
	prefix  string
	profile bool
	tlsCert string
	tlsKey  string
	verbose bool
	version bool

	difficulty    string
	maxPlayers    int
	rounds        int
	questionTime  time.Duration
	leadIn        time.Duration
	resultsDelay  time.Duration
	gracePeriod   time.Duration
	lobbyTimeout  time.Duration
	sweepInterval time.Duration
	questions     string

	rewardRate    float64
	positionBonus []int

	ranking       string
	redisAddr     string
	redisPassword string
	redisDB       int
	postgresDSN   string
}

// settings are the defaults applied to rooms created without their own.
func (c *Config) settings() quiz.Settings {
	return quiz.Settings{
		MaxPlayers:         c.maxPlayers,
		TotalRounds:        c.rounds,
		SecondsPerQuestion: int(c.questionTime / time.Second),
		Difficulty:         quiz.Difficulty(c.difficulty),
	}
}

func (c *Config) rewards() quiz.RewardPolicy {
	return quiz.RewardPolicy{
		Rate:          c.rewardRate,
		PositionBonus: c.positionBonus,
	}
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.questionTime%time.Second != 0 {
		return fmt.Errorf("invalid question time (must be whole seconds): %s", c.questionTime)
	}
	if err := c.settings().Validate(); err != nil {
		return err
	}
	if err := c.rewards().Validate(); err != nil {
		return err
	}
	if c.leadIn < 0 || c.resultsDelay < 0 || c.gracePeriod < 0 || c.lobbyTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	if c.sweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval (must be positive): %s", c.sweepInterval)
	}

	switch c.ranking {
	case rankingNone:
	case rankingRedis:
		if c.redisAddr == "" {
			return errors.New("--redis-addr is required when --ranking=redis")
		}
	case rankingPostgres:
		if c.postgresDSN == "" {
			return errors.New("--postgres-dsn is required when --ranking=postgres")
		}
	default:
		return fmt.Errorf("invalid ranking store (must be one of none, redis, postgres): %q", c.ranking)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyquiz",
		Short:         "Multiplayer money and math quizzes for kids, played over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := quiz.DefaultSettings()
	rewards := quiz.DefaultRewardPolicy()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PARTYQUIZ_BIND)")
	fs.StringVar(&cfg.difficulty, "difficulty", string(defaults.Difficulty), "default question difficulty: auto, easy, medium, or hard (env: PARTYQUIZ_DIFFICULTY)")
	fs.DurationVar(&cfg.gracePeriod, "grace-period", 5*time.Minute, "time finished rooms stay readable before removal (env: PARTYQUIZ_GRACE_PERIOD)")
	fs.DurationVar(&cfg.leadIn, "lead-in", 3*time.Second, "pause between game start and the first question (env: PARTYQUIZ_LEAD_IN)")
	fs.DurationVar(&cfg.lobbyTimeout, "lobby-timeout", 0, "time before idle lobbies are closed, 0 to keep them (env: PARTYQUIZ_LOBBY_TIMEOUT)")
	fs.IntVar(&cfg.maxPlayers, "max-players", defaults.MaxPlayers, "default room capacity (env: PARTYQUIZ_MAX_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PARTYQUIZ_PORT)")
	fs.IntSliceVar(&cfg.positionBonus, "position-bonus", rewards.PositionBonus, "reward bonus by final position (env: PARTYQUIZ_POSITION_BONUS)")
	fs.StringVar(&cfg.postgresDSN, "postgres-dsn", "", "postgres connection string for --ranking=postgres (env: PARTYQUIZ_POSTGRES_DSN)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PARTYQUIZ_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PARTYQUIZ_PROFILE)")
	fs.DurationVar(&cfg.questionTime, "question-time", time.Duration(defaults.SecondsPerQuestion)*time.Second, "default time allowed per question (env: PARTYQUIZ_QUESTION_TIME)")
	fs.StringVar(&cfg.questions, "questions", "", "path to a json question bank, built-in questions if unset (env: PARTYQUIZ_QUESTIONS)")
	fs.StringVar(&cfg.ranking, "ranking", rankingNone, "where final standings are stored: none, redis, or postgres (env: PARTYQUIZ_RANKING)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address for --ranking=redis (env: PARTYQUIZ_REDIS_ADDR)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "redis database number (env: PARTYQUIZ_REDIS_DB)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "redis password (env: PARTYQUIZ_REDIS_PASSWORD)")
	fs.DurationVar(&cfg.resultsDelay, "results-delay", 5*time.Second, "pause between round results and the next question (env: PARTYQUIZ_RESULTS_DELAY)")
	fs.Float64Var(&cfg.rewardRate, "reward-rate", rewards.Rate, "reward earned per point scored (env: PARTYQUIZ_REWARD_RATE)")
	fs.IntVar(&cfg.rounds, "rounds", defaults.TotalRounds, "default number of questions per game (env: PARTYQUIZ_ROUNDS)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 30*time.Second, "how often finished rooms are swept (env: PARTYQUIZ_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PARTYQUIZ_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PARTYQUIZ_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PARTYQUIZ_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PARTYQUIZ_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyquiz v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
