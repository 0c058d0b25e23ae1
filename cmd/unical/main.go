package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"unical/internal/backend"
	"unical/internal/config"
	"unical/internal/controller"
	"unical/internal/ics"
	appLog "unical/internal/log"
	"unical/internal/prefs"
	"unical/internal/tz"
	"unical/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	message    string
	export     string
}

func main() {
	appLog.Info("unical starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(".env"); err != nil {
		appLog.Error("failed to load .env", err)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"slot_timezone", conf.SlotTimezone,
		"backend_url", conf.BackendURL,
		"refresh", conf.RefreshCron,
		"redis", conf.Redis.URL != "",
		"once", flags.once,
		"message", flags.message,
		"export", flags.export,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store, closeStore, err := openStore(ctx, conf)
	if err != nil {
		appLog.Error("failed to open preference store", err)
		os.Exit(1)
	}
	defer closeStore()

	loc := tz.Load(conf.Timezone)
	ctl := controller.New(backend.NewClient(conf.BackendURL, conf.RequestTimeout()), store, controller.Options{
		Location:     loc,
		SlotLocation: tz.Load(conf.SlotTimezone),
		Slots:        conf.Slots,
		CalendarID:   conf.CalendarID,
		ReauthDelay:  conf.ReauthDelay(),
	})

	if flags.once || flags.message != "" || flags.export != "" {
		if err := runOnce(ctx, ctl, flags); err != nil {
			appLog.Error("one-shot run failed", err)
			os.Exit(1)
		}
		return
	}

	sched, err := startScheduler(conf, ctl, loc)
	if err != nil {
		appLog.Error("failed to start refresh scheduler", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	defer sched.Stop()

	go func() {
		if err := ctl.SelectWeek(ctx, ctl.Today()); err != nil {
			appLog.Error("initial week fetch failed", err)
		}
	}()

	if err := web.StartServer(ctx, conf, ctl); err != nil {
		appLog.Error("http server stopped", err)
		os.Exit(1)
	}
	appLog.Info("unical exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/unical/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch the current week, print today's message and exit")
	flag.StringVar(&cfg.message, "message", "", "Print the broadcast message for YYYY-MM-DD and exit")
	flag.StringVar(&cfg.export, "export", "", "Write the loaded week as a calendar file to this path and exit")

	flag.Parse()

	return cfg
}

// openStore returns the Redis-backed store when configured, otherwise an
// in-memory one.
func openStore(ctx context.Context, conf *config.Config) (prefs.Store, func(), error) {
	if conf.Redis.URL == "" {
		return prefs.NewMemoryStore(), func() {}, nil
	}
	client, err := prefs.DialRedis(ctx, conf.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	return prefs.NewRedisStore(client, conf.Redis.Prefix), func() { _ = client.Close() }, nil
}

// startScheduler forces a cache-bypassing refresh of the selected week on
// the configured cron schedule. An empty schedule disables it.
func startScheduler(conf *config.Config, ctl *controller.Controller, loc *time.Location) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if conf.RefreshCron == "" {
		return c, nil
	}
	_, err := c.AddFunc(conf.RefreshCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*conf.RequestTimeout())
		defer cancel()
		if err := ctl.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
			return
		}
		appLog.Info("scheduled refresh done")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("refresh scheduler started", "refresh", conf.RefreshCron)
	return c, nil
}

func runOnce(ctx context.Context, ctl *controller.Controller, flags flagConfig) error {
	date := ctl.Today()
	if flags.message != "" {
		d, err := tz.ParseDate(flags.message, ctl.Location())
		if err != nil {
			return fmt.Errorf("invalid -message date: %w", err)
		}
		date = d
	}

	if err := ctl.SelectWeek(ctx, date); err != nil {
		return err
	}

	if flags.export != "" {
		if err := exportWeek(ctl, date, flags.export); err != nil {
			return err
		}
	}

	if flags.once || flags.message != "" {
		text, err := ctl.Message(ctx, date)
		if err != nil {
			return err
		}
		fmt.Println(text)
	}
	return nil
}

// exportWeek writes the committed week as a calendar file and checks that
// reading it back yields the same event identities.
func exportWeek(ctl *controller.Controller, date time.Time, path string) error {
	events := ctl.Events()
	body := ics.Encode(events, time.Now())
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}

	r := controller.WeekRange(date, ctl.Location())
	got, err := ics.Identities(body, r.Start, r.End, ctl.Location())
	if err != nil {
		return fmt.Errorf("re-read export: %w", err)
	}
	want := make([]string, 0, len(events))
	for _, ev := range events {
		want = append(want, ev.ID)
	}
	if diff := ics.Compare(want, got); !diff.OK() {
		return fmt.Errorf("export round trip mismatch: %d missing, %d unexpected, %d duplicated",
			len(diff.Missing), len(diff.Unexpected), len(diff.Duplicates))
	}
	appLog.Info("calendar exported", "path", path, "events", len(events))
	return nil
}
