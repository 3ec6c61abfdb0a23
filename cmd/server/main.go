package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"taskviewer/internal/api"
	"taskviewer/internal/config"
	"taskviewer/internal/store"
	"taskviewer/pkg/activity"
	"taskviewer/pkg/notify"
	"taskviewer/pkg/task"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Driver, err)
	}
	defer st.Close()

	if err := st.EnsureTables(ctx); err != nil {
		log.Fatal(err)
	}
	created, err := st.BootstrapAdmin(ctx, cfg.Admin)
	if err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	if created {
		log.Printf("created admin %q", cfg.Admin.Username)
	}

	notifier, err := newNotifier(ctx, cfg.Notify)
	if err != nil {
		log.Fatalf("notifier: %v", err)
	}

	bus := activity.NewBus(st.Journal)
	svc := task.NewService(st.Tasks, st.Users, notifier, bus)
	svc.NotifyTimeout = time.Duration(cfg.Notify.Timeout)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(svc, st.Users, bus),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("taskviewer listening on %s (driver %s, notify %s)", cfg.Listen, cfg.Driver, cfg.Notify.Kind)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
}

// loadConfig layers flags over the config file and environment.
func loadConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("taskviewer", flag.ContinueOnError)
	path := fs.StringP("config", "c", "", "JSONC config file")
	listen := fs.String("listen", "", "listen address, e.g. :8080")
	driver := fs.String("driver", "", "database driver: postgres or sqlite")
	dbURL := fs.String("database-url", "", "PostgreSQL connection string")
	sqlitePath := fs.String("sqlite-path", "", "SQLite database file")
	notifyKind := fs.String("notify", "", "assignment notifier: none, spool or gmail")
	spoolDir := fs.String("spool-dir", "", "directory for spooled notifications")
	adminUser := fs.String("admin", "", "admin account created at startup if missing")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(config.LoadInput{Path: *path, Env: config.Environ()})
	if err != nil {
		return config.Config{}, err
	}
	if fs.Changed("listen") {
		cfg.Listen = *listen
	}
	if fs.Changed("database-url") {
		cfg.DatabaseURL = *dbURL
		cfg.Driver = config.DriverPostgres
	}
	if fs.Changed("sqlite-path") {
		cfg.SQLitePath = *sqlitePath
	}
	if fs.Changed("driver") {
		cfg.Driver = *driver
	}
	if fs.Changed("notify") {
		cfg.Notify.Kind = *notifyKind
	}
	if fs.Changed("spool-dir") {
		cfg.Notify.SpoolDir = *spoolDir
	}
	if fs.Changed("admin") {
		cfg.Admin.Username = *adminUser
	}
	return cfg, cfg.Validate()
}

func newNotifier(ctx context.Context, n config.Notify) (notify.Notifier, error) {
	switch n.Kind {
	case config.NotifySpool:
		return notify.NewSpool(n.SpoolDir, n.Sender)
	case config.NotifyGmail:
		return notify.NewGmail(ctx, n.CredentialsFile, n.Sender)
	}
	return notify.Discard{}, nil
}
