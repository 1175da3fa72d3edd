package main

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/soundcheck-live/soundcheck/auth"
	"github.com/soundcheck-live/soundcheck/catalog"
	"github.com/soundcheck-live/soundcheck/config"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/quota"
	"github.com/soundcheck-live/soundcheck/realtime"
	"github.com/soundcheck-live/soundcheck/server"
	"github.com/soundcheck-live/soundcheck/setlist"
	"github.com/soundcheck-live/soundcheck/showdetail"
	"github.com/soundcheck-live/soundcheck/subcmd"
	"github.com/soundcheck-live/soundcheck/syncer"
	"github.com/soundcheck-live/soundcheck/tasks"
	"github.com/soundcheck-live/soundcheck/ticketing"
	"github.com/soundcheck-live/soundcheck/trackcache"
)

func serve(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("serve", "run the soundcheck api server")
	var (
		addr = subcmd.String("addr", cfg.Server.Addr, "listen address")
	)
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	tick := ticketing.New(cfg.Ticketing.APIKey)
	cat := catalog.New(cfg.Catalog.ClientID, cfg.Catalog.ClientSecret)

	runner := tasks.NewRunner(cfg.Sync.TaskBuffer, cfg.Sync.TaskTimeout)
	sync := syncer.New(db, tick, cat, runner, syncer.Options{
		ArtistTTL: cfg.Sync.ArtistTTL,
		ShowTTL:   cfg.Sync.ShowTTL,
	})
	cache := trackcache.New(db, sync, runner)

	ledger, err := quota.Open(cfg.Voting.QuotaDir, cfg.Voting.AnonymousQuota, cfg.Voting.QuotaTTL)
	if err != nil {
		return err
	}
	defer ledger.Close()

	bus := realtime.NewBus()
	defer bus.Close()
	hub := realtime.NewHub()

	sessions := auth.NewSessions(cfg.Auth.JWTSecret, cfg.Auth.LoginURL)
	engine := setlist.New(ledger, bus, nil, cfg.Auth.LoginURL)
	agg := showdetail.New(sync, cache, engine, hub, db)
	srv := server.New(*addr, cfg.Server.ShutdownTimeout, agg, cache, hub, sessions)

	sup := suture.New("soundcheck", suture.Spec{
		EventHook: func(ev suture.Event) {
			logging.Warn().Fields(ev.Map()).Msg("supervisor event")
		},
	})
	sup.Add(runner)
	sup.Add(hub)
	sup.Add(realtime.NewBridge(bus, hub))
	sup.Add(srv)

	return sup.Serve(ctx)
}
