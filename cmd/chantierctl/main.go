package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/chantier-erp/chantier-erp/cmd/chantier/cli"
	"github.com/chantier-erp/chantier-erp/internal/app"
	"github.com/chantier-erp/chantier-erp/internal/platform/db"
	"github.com/chantier-erp/chantier-erp/jobs"
)

const usage = `usage: chantierctl <command>

commands:
  migrate up                 apply every pending migration
  migrate down [-steps n]    roll back n migrations (default 1)
  migrate version            print the current schema version
  jobs trigger [-years y,y] [-chantier id]
                             enqueue a recap warmup
  jobs stats                 print the default queue counters
`

var errUsage = errors.New("chantierctl: invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		app.NewLogger(cfg).Error("chantierctl", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, args []string, out io.Writer) error {
	if len(args) < 2 {
		return errUsage
	}
	switch args[0] {
	case "migrate":
		return runMigrate(cfg, args[1], args[2:], out)
	case "jobs":
		return runJobs(ctx, cfg, args[1], args[2:], out)
	}
	return errUsage
}

func runMigrate(cfg *app.Config, sub string, args []string, out io.Writer) error {
	switch sub {
	case "up":
		if err := db.MigrateUp(cfg.PGDSN); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
		return nil
	case "down":
		fs := flag.NewFlagSet("migrate down", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		steps := fs.Int("steps", 1, "migrations to roll back")
		if err := fs.Parse(args); err != nil || *steps <= 0 {
			return errUsage
		}
		if err := db.MigrateDown(cfg.PGDSN, *steps); err != nil {
			return err
		}
		fmt.Fprintf(out, "rolled back %d migration(s)\n", *steps)
		return nil
	case "version":
		version, dirty, err := db.MigrationVersion(cfg.PGDSN)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "version %d dirty=%t\n", version, dirty)
		return nil
	}
	return errUsage
}

func runJobs(ctx context.Context, cfg *app.Config, sub string, args []string, out io.Writer) error {
	var payload jobs.RecapWarmupPayload
	switch sub {
	case "trigger":
		parsed, err := parseTriggerFlags(args)
		if err != nil {
			return err
		}
		payload = parsed
	case "stats":
	default:
		return errUsage
	}

	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()

	if sub == "trigger" {
		info, err := jobsCLI.Trigger(ctx, jobs.TaskRecapWarmup, payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	}

	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return nil
}

func parseTriggerFlags(args []string) (jobs.RecapWarmupPayload, error) {
	fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	years := fs.String("years", "", "comma separated years, empty for every year")
	chantier := fs.Int64("chantier", 0, "chantier id, 0 for every chantier")
	if err := fs.Parse(args); err != nil || *chantier < 0 {
		return jobs.RecapWarmupPayload{}, errUsage
	}
	payload := jobs.RecapWarmupPayload{ChantierID: *chantier}
	for _, part := range strings.Split(*years, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		year, err := strconv.Atoi(part)
		if err != nil {
			return jobs.RecapWarmupPayload{}, fmt.Errorf("%w: year %q", errUsage, part)
		}
		payload.Years = append(payload.Years, year)
	}
	return payload, nil
}
