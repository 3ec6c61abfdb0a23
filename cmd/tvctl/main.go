// Command tvctl administers a taskviewer database directly, without the
// HTTP server. It acts with admin rights.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"

	"taskviewer/internal/config"
	"taskviewer/internal/store"
	"taskviewer/pkg/authority"
	"taskviewer/pkg/task"
)

var operator = authority.Principal{Username: "tvctl", Roles: []authority.Role{authority.Admin}}

func main() {
	global := flag.NewFlagSet("tvctl", flag.ContinueOnError)
	global.SetInterspersed(false)
	cfgPath := global.StringP("config", "c", "", "JSONC config file")
	if err := global.Parse(os.Args[1:]); err != nil {
		fatal("%v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(config.LoadInput{Path: *cfgPath, Env: config.Environ()})
	if err != nil {
		fatal("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("config: %v", err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg)
	if err != nil {
		fatal("open %s store: %v", cfg.Driver, err)
	}
	defer st.Close()

	svc := task.NewService(st.Tasks, st.Users, nil, st.Journal)

	switch args[0] {
	case "init":
		if err := st.EnsureTables(ctx); err != nil {
			fatal("%v", err)
		}
		fmt.Println(`{"status":"ok","message":"all tables initialized"}`)
	case "user":
		handleUser(ctx, st, args[1:])
	case "task":
		handleTask(ctx, svc, args[1:])
	case "activity":
		handleActivity(ctx, svc, args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func handleUser(ctx context.Context, st *store.Stores, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tvctl user <add|get>")
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("user add", flag.ExitOnError)
		username := fs.String("username", "", "login name")
		email := fs.String("email", "", "notification address")
		password := fs.String("password", "", "login password")
		role := fs.String("role", string(authority.User), "ADMIN or USER")
		fs.Parse(args[1:])
		r, err := authority.ParseRole(*role)
		if err != nil {
			fatal("%v", err)
		}
		u, err := st.Users.Register(ctx, *username, *email, *password, r)
		if err != nil {
			fatal("add user: %v", err)
		}
		printJSON(u)

	case "get":
		if len(args) < 2 {
			fatal("usage: tvctl user get <username>")
		}
		u, err := st.Users.ByUsername(ctx, args[1])
		if err != nil {
			fatal("get user: %v", err)
		}
		if u == nil {
			fatal("user %q not found", args[1])
		}
		printJSON(u)

	default:
		fatal("unknown user command %q", args[0])
	}
}

func handleTask(ctx context.Context, svc *task.Service, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tvctl task <list|get|close|track|assign|delete> [--format=short for list]")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("task list", flag.ExitOnError)
		format := fs.String("format", "json", "json or short")
		fields := map[string]*string{}
		for _, key := range []string{"username", "email", "priority", "status"} {
			fields[key] = fs.String(key, "", "filter by "+key)
		}
		fs.Parse(args[1:])
		criteria := map[string]string{}
		for key, v := range fields {
			if fs.Changed(key) {
				criteria[key] = *v
			}
		}
		tasks, err := svc.Search(ctx, operator, criteria)
		if err != nil {
			fatal("list tasks: %v", err)
		}
		if *format == "short" {
			printShortTasks(tasks)
		} else {
			printJSON(tasks)
		}

	case "get":
		t, err := svc.Get(ctx, operator, arg(args, 1, "task get <id>"))
		if err != nil {
			fatal("get task: %v", err)
		}
		printJSON(t)

	case "close":
		t, err := svc.Close(ctx, operator, arg(args, 1, "task close <id>"))
		if err != nil {
			fatal("close task: %v", err)
		}
		printJSON(t)

	case "track":
		id := arg(args, 1, "task track <id> <minutes>")
		minutes, err := strconv.Atoi(arg(args, 2, "task track <id> <minutes>"))
		if err != nil {
			fatal("minutes: %v", err)
		}
		t, err := svc.Track(ctx, operator, id, minutes)
		if err != nil {
			fatal("track task: %v", err)
		}
		printJSON(t)

	case "assign":
		t, err := svc.AssignTo(ctx, operator, arg(args, 1, "task assign <id> <username>"), arg(args, 2, "task assign <id> <username>"))
		if err != nil {
			fatal("assign task: %v", err)
		}
		printJSON(t)

	case "delete":
		id := arg(args, 1, "task delete <id>")
		if err := svc.Delete(ctx, operator, id); err != nil {
			fatal("delete task: %v", err)
		}
		fmt.Printf(`{"deleted":%q}`+"\n", id)

	default:
		fatal("unknown task command %q", args[0])
	}
}

func handleActivity(ctx context.Context, svc *task.Service, args []string) {
	fs := flag.NewFlagSet("activity", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum entries")
	fs.Parse(args)

	if id := fs.Arg(0); id != "" {
		events, err := svc.Activity(ctx, operator, id, *limit)
		if err != nil {
			fatal("activity: %v", err)
		}
		printJSON(events)
		return
	}
	events, err := svc.RecentActivity(ctx, operator, *limit)
	if err != nil {
		fatal("activity: %v", err)
	}
	printJSON(events)
}

func arg(args []string, i int, usage string) string {
	if len(args) <= i {
		fatal("usage: tvctl %s", usage)
	}
	return args[i]
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func truncStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func printShortTasks(tasks []task.Task) {
	for _, t := range tasks {
		fmt.Printf("%-8s  %-11s  p%d  %-12s  %s\n",
			truncStr(t.ID, 8), t.Status.Value, t.Status.Priority, truncStr(t.Username, 12), truncStr(t.Title, 60))
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tvctl: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tvctl [-c config.json] <command>

Commands:
  init       Initialize database tables
  user       User operations (add, get)
  task       Task operations (list, get, close, track, assign, delete)
  activity   Show the activity journal, for one task or across all`)
}
