package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/warriorpoets/league-stats/internal/kalshi"
	"github.com/warriorpoets/league-stats/internal/store"
	"github.com/warriorpoets/league-stats/internal/wagers"
)

func (a *app) serveCmd() *cobra.Command {
	var secure bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the wagers API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			baseURL := kalshi.BaseURLFor(a.cfg.Kalshi.UseDemo)

			var sessions wagers.Sessions
			if a.cfg.Postgres.DSN != "" && a.cfg.Server.EncryptionKey != "" {
				s, err := a.openStore()
				if err != nil {
					return err
				}
				defer s.Close()
				if n, err := s.CleanupExpiredSessions(ctx); err == nil && n > 0 {
					a.log.WithField("deleted", n).Info("expired sessions removed")
				}
				sessions = &wagers.StoreSessions{Store: s, TTL: store.DefaultSessionTTL}
				a.log.Info("sessions stored in postgres")
			} else {
				sessions = wagers.NewMemorySessions(store.DefaultSessionTTL)
				a.log.Warn("no DATABASE_URL/ENCRYPTION_KEY, sessions kept in memory")
			}

			srv := wagers.NewServer(sessions, wagers.KalshiExchanges(baseURL, a.log), a.log)
			srv.DataFile = a.cfg.DataFile
			srv.AllowedOrigins = a.cfg.Server.AllowedOrigins
			srv.SecureCookies = secure
			scale, err := a.scale()
			if err != nil {
				return err
			}
			srv.Scale = scale

			if kc := a.cfg.Kalshi; kc.APIKeyID != "" && kc.PrivateKeyPath != "" {
				key, err := kalshi.LoadPrivateKey(kc.PrivateKeyPath)
				if err != nil {
					return err
				}
				srv.Default = kalshi.NewClient(baseURL, kc.APIKeyID, key, a.log)
				a.log.Info("default credentials loaded")
			}

			addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
			a.log.WithField("addr", addr).WithField("base_url", baseURL).Info("wagers API listening")
			start := time.Now()
			err = srv.ListenAndServe(ctx, addr)
			a.log.WithField("uptime", time.Since(start).Round(time.Second)).Info("server stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&secure, "secure-cookies", false, "mark session cookies Secure and SameSite=None")
	return cmd
}
