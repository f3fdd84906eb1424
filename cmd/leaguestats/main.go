// Command leaguestats syncs league data from Yahoo and Kalshi, prints season
// standings and serves the wagers API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warriorpoets/league-stats/internal/config"
	"github.com/warriorpoets/league-stats/internal/league"
	"github.com/warriorpoets/league-stats/internal/logging"
	"github.com/warriorpoets/league-stats/internal/store"
	"github.com/warriorpoets/league-stats/internal/vault"
)

type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logrus.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "leaguestats",
		Short:         "Warrior Poets league stats toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		a.syncYahooCmd(),
		a.syncRostersCmd(),
		a.syncKalshiCmd(),
		a.standingsCmd(),
		a.serveCmd(),
		a.migrateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	log, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) scale() (league.Scale, error) {
	s := league.Scale{Step: a.cfg.Payout.Step}
	if err := s.Validate(league.LeagueSize); err != nil {
		return league.Scale{}, err
	}
	return s, nil
}

func (a *app) printStandings(w io.Writer, season string, pts league.WeeklyPoints) error {
	scale, err := a.scale()
	if err != nil {
		return err
	}
	table, err := scale.Season(pts)
	if err != nil {
		return err
	}
	league.PrintStandings(w, season, table)
	return nil
}

// openStore connects and migrates. The vault is attached when an encryption
// key is configured.
func (a *app) openStore() (*store.Store, error) {
	if a.cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("no database configured, set DATABASE_URL")
	}
	s, err := store.Open(a.cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if a.cfg.Server.EncryptionKey != "" {
		v, err := vault.New(a.cfg.Server.EncryptionKey)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Vault = v
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			a.log.Info("database migrated")
			return nil
		},
	}
}
