package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warriorpoets/league-stats/internal/datajs"
	"github.com/warriorpoets/league-stats/internal/kalshi"
	"github.com/warriorpoets/league-stats/internal/league"
	"github.com/warriorpoets/league-stats/internal/yahoo"
)

// yahooClient builds an authorized client, walking the user through the
// out-of-band grant when no token is saved yet.
func (a *app) yahooClient(ctx context.Context) (*yahoo.Client, error) {
	yc := a.cfg.Yahoo
	if yc.ClientID == "" || yc.ClientSecret == "" {
		return nil, errors.New("YAHOO_CLIENT_ID and YAHOO_CLIENT_SECRET are required")
	}
	auth := yahoo.NewAuth(yc.ClientID, yc.ClientSecret, yc.RedirectURI, yc.TokenFile)

	httpClient, err := auth.Client(ctx)
	if errors.Is(err, yahoo.ErrNoToken) {
		fmt.Fprintf(os.Stderr, "Open this URL and authorize the app:\n\n  %s\n\nPaste the code: ", auth.AuthCodeURL())
		code, rerr := bufio.NewReader(os.Stdin).ReadString('\n')
		if rerr != nil {
			return nil, fmt.Errorf("reading code: %w", rerr)
		}
		if _, err := auth.Exchange(ctx, strings.TrimSpace(code)); err != nil {
			return nil, err
		}
		httpClient, err = auth.Client(ctx)
	}
	if err != nil {
		return nil, err
	}

	c := yahoo.NewClient(httpClient, a.log)
	for year, id := range yc.LeagueIDs {
		// env overrides beat the config file
		if os.Getenv("YAHOO_LEAGUE_ID_"+year) == "" {
			c.LeagueIDs[year] = id
		}
	}
	return c, nil
}

func (a *app) syncYahooCmd() *cobra.Command {
	var dryRun, toDB bool
	var weeks int
	cmd := &cobra.Command{
		Use:   "sync-yahoo <year>",
		Short: "Pull a season's weekly scores from Yahoo into the data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year := args[0]
			if _, err := strconv.Atoi(year); err != nil {
				return fmt.Errorf("invalid year %q", year)
			}
			ctx := cmd.Context()
			log := a.log.WithField("season", year)

			yc, err := a.yahooClient(ctx)
			if err != nil {
				return err
			}
			if weeks == 0 {
				weeks = a.cfg.Yahoo.Weeks
			}
			next, err := yc.WeeklyPoints(ctx, year, weeks)
			if err != nil {
				return err
			}

			f, err := datajs.Read(a.cfg.DataFile)
			if err != nil {
				return err
			}
			prev, err := f.WeeklyPoints(year)
			if err != nil {
				return err
			}
			changes := datajs.Diff(prev, next)
			for _, c := range changes {
				fmt.Fprintln(cmd.OutOrStdout(), " ", c)
			}
			log.WithField("changes", len(changes)).Info("compared with data file")

			if dryRun {
				log.Info("dry run, nothing written")
				return nil
			}
			if len(changes) > 0 {
				if err := f.SetWeeklyPoints(year, next); err != nil {
					return err
				}
				if err := datajs.Write(a.cfg.DataFile, f); err != nil {
					return err
				}
				log.WithField("file", a.cfg.DataFile).Info("data file updated")
			}

			if toDB {
				s, err := a.openStore()
				if err != nil {
					return err
				}
				defer s.Close()
				if err := s.SaveWeeklyPoints(ctx, year, next); err != nil {
					return err
				}
				log.Info("weekly points saved to database")
			}

			return a.printStandings(cmd.OutOrStdout(), year, next)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show changes without writing")
	cmd.Flags().BoolVar(&toDB, "db", false, "also save the weekly points to Postgres")
	cmd.Flags().IntVar(&weeks, "weeks", 0, "number of weeks to fetch (default from config)")
	return cmd
}

func (a *app) syncRostersCmd() *cobra.Command {
	var week int
	cmd := &cobra.Command{
		Use:   "sync-rosters [year]",
		Short: "Write every team's roster to the roster data file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year := strconv.Itoa(seasonYear(time.Now()))
			if len(args) == 1 {
				year = args[0]
			}
			ctx := cmd.Context()

			yc, err := a.yahooClient(ctx)
			if err != nil {
				return err
			}
			rosters, err := yc.Rosters(ctx, year, week)
			if err != nil {
				return err
			}

			names := make(map[string][]string, len(rosters))
			total := 0
			for member, r := range rosters {
				if len(r.Players) == 0 {
					continue
				}
				names[member] = r.PlayerNames()
				total += len(r.Players)
			}
			updated := utcStamp(time.Now())
			data := map[string]any{"rosters": names, "updated": updated}
			header := "Fantasy team rosters - auto-generated\nLast updated: " + updated
			if err := datajs.WriteConst(a.cfg.RosterFile, "ROSTER_DATA", header, data); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"file":     a.cfg.RosterFile,
				"managers": len(names),
				"players":  total,
			}).Info("rosters saved")
			return nil
		},
	}
	cmd.Flags().IntVar(&week, "week", 0, "roster week (default current)")
	return cmd
}

func (a *app) syncKalshiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-kalshi",
		Short: "Snapshot NFL markets into the wagers data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			// market data is public, so no credentials are needed here
			kc := kalshi.NewClient(kalshi.BaseURLFor(a.cfg.Kalshi.UseDemo), "", nil, a.log)

			champ, err := kc.Championship(ctx)
			if err != nil {
				return err
			}
			snap := kalshi.Snapshot{
				Championship: champ,
				Props:        kc.NFLProps(ctx),
				Updated:      time.Now(),
			}
			header := "Kalshi NFL market data - auto-generated\nLast updated: " + utcStamp(snap.Updated)
			if err := datajs.WriteConst(a.cfg.WagersFile, "WAGERS_DATA", header, snap); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"file":    a.cfg.WagersFile,
				"markets": snap.MarketCount(),
			}).Info("wagers data saved")
			return nil
		},
	}
}

func (a *app) standingsCmd() *cobra.Command {
	var fromDB bool
	cmd := &cobra.Command{
		Use:   "standings <year>",
		Short: "Print a season's standings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year := args[0]
			pts, err := a.loadSeason(cmd.Context(), year, fromDB)
			if err != nil {
				return err
			}
			if len(pts) == 0 {
				return fmt.Errorf("no scores for season %s", year)
			}
			return a.printStandings(cmd.OutOrStdout(), year, pts)
		},
	}
	cmd.Flags().BoolVar(&fromDB, "db", false, "read scores from Postgres instead of the data file")
	return cmd
}

func (a *app) loadSeason(ctx context.Context, year string, fromDB bool) (league.WeeklyPoints, error) {
	if fromDB {
		s, err := a.openStore()
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.LoadWeeklyPoints(ctx, year)
	}
	f, err := datajs.Read(a.cfg.DataFile)
	if err != nil {
		return nil, err
	}
	return f.WeeklyPoints(year)
}

// seasonYear is the NFL season in progress: games in January and February
// belong to the previous year's season.
func seasonYear(now time.Time) int {
	if now.Month() <= time.February {
		return now.Year() - 1
	}
	return now.Year()
}

func utcStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}
