package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"deliveryhub/internal/admin"
	"deliveryhub/internal/dispatch"
	"deliveryhub/internal/notification"
	"deliveryhub/internal/order"
	"deliveryhub/internal/payouts"
	"deliveryhub/internal/realtime"
	"deliveryhub/internal/tools"
	"deliveryhub/internal/tracking"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
)

type mode struct {
	name    string
	alias   string
	example string
	run     func(ctx context.Context, mylog logger.Logger, args []string) error
}

var modes = []mode{
	{"order-service", "os", "--port=3000 --max-concurrent=50", order.Execute},
	{"tracking-service", "ts", "--port=3002", tracking.Execute},
	{"admin-service", "as", "--port=3004", admin.Execute},
	{"realtime-gateway", "rg", "--port=3006", realtime.Execute},
	{"dispatch-worker", "dw", "--worker-name=dispatcher-1 --prefetch=10", dispatch.Execute},
	{"notification-subscriber", "ns", "--prefetch=20", notification.Execute},
	{"payout-scheduler", "ps", "--once", payouts.Execute},
	{"migrate", "", "--down", tools.Migrate},
	{"issue-token", "", "--user=u-1 --role=customer", func(ctx context.Context, mylog logger.Logger, args []string) error {
		return tools.IssueToken(ctx, mylog, args, os.Stdout)
	}},
}

func main() {
	mylog := logger.New("deliveryhub", os.Getenv("LOG_LEVEL"))

	name, args, err := splitMode(os.Args[1:])
	if err != nil {
		mylog.Action("deliveryhub_failed").Error("Failed to parse flags", err)
		help()
		os.Exit(2)
	}
	if name == "" || name == "help" {
		if name == "" {
			mylog.Action("deliveryhub_failed").Error("Failed to start deliveryhub", xerrors.ErrModeFlag)
		}
		help()
		os.Exit(2)
	}

	m, ok := lookup(name)
	if !ok {
		mylog.Action("deliveryhub_failed").Error("Failed to start deliveryhub", xerrors.ErrUnknownService, "mode", name)
		help()
		os.Exit(2)
	}

	l := mylog.With("mode", m.name)
	l.Action(actionName(m.name, "started")).Info("Successfully started")
	if err := m.run(context.Background(), l, args); err != nil {
		if errors.Is(err, xerrors.ErrHelp) {
			return
		}
		l.Action(actionName(m.name, "failed")).Error("Error in "+m.name, err)
		os.Exit(1)
	}
	l.Action(actionName(m.name, "completed")).Info("Successfully completed")
}

// splitMode pulls --mode out of args; everything else belongs to the mode.
func splitMode(args []string) (string, []string, error) {
	var name string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		key, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch {
		case !strings.HasPrefix(arg, "-"):
			rest = append(rest, arg)
		case key == "mode" && hasValue:
			name = value
		case key == "mode":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("%w: --mode needs a value", xerrors.ErrParseCmd)
			}
			name = args[i+1]
			i++
		case key == "help" || key == "h":
			if name == "" {
				name = "help"
			} else {
				rest = append(rest, arg)
			}
		default:
			rest = append(rest, arg)
		}
	}
	return name, rest, nil
}

func lookup(name string) (mode, bool) {
	for _, m := range modes {
		if m.name == name || (m.alias != "" && m.alias == name) {
			return m, true
		}
	}
	return mode{}, false
}

func actionName(mode, event string) string {
	return strings.ReplaceAll(mode, "-", "_") + "_" + event
}

func help() {
	fmt.Println("\nUsage:")
	fmt.Println("  deliveryhub --mode=<mode> [mode flags]")
	fmt.Println("\nModes:")
	for _, m := range modes {
		alias := ""
		if m.alias != "" {
			alias = " (" + m.alias + ")"
		}
		fmt.Printf("  %-24s %s\n", m.name+alias, m.example)
	}
	fmt.Println("\nRun a mode with --help to list its flags, for example:")
	fmt.Println("  deliveryhub --mode=order-service --help")
}
