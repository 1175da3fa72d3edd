// this program keeps a sqlite3 database of artists, shows, and venues in
// sync with external ticketing and music-catalog services, and serves the
// live setlist-voting api on top of it.
//
// see db/schema.sql for info about the stored layout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/soundcheck-live/soundcheck/config"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/sigctx"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
		panic(err)
	}
}

var usage = strings.TrimSpace(`
usage: soundcheck $cmd
valid $cmd are 'serve', 'sync', 'taxonomy', 'progress', 'show'
for help: soundcheck $cmd -help
configuration comes from soundcheck.yaml (or $SOUNDCHECK_CONFIG) and SOUNDCHECK_* env vars
`)

func run() error {
	ctx := sigctx.New()

	cfg, err := config.Load(os.Getenv("SOUNDCHECK_CONFIG"))
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	db, err := db.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(os.Args) < 2 {
		return errors.New(usage)
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "serve":
		return serve(ctx, cfg, db, args)

	case "sync":
		return sync(ctx, cfg, db, args)

	case "taxonomy":
		return taxonomy(ctx, cfg, db, args)

	case "progress":
		return progress(ctx, cfg, db, args)

	case "show":
		return show(ctx, cfg, db, args)

	default:
		return fmt.Errorf("unknown cmd: '%s'\n%s", cmd, usage)
	}
}
