package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"campusrunner/internal/apiclient"
	"campusrunner/internal/config"
	"campusrunner/internal/domain"
	"campusrunner/internal/logging"
	"campusrunner/internal/ordersync"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `usage: runner [flags] <command> [args]

commands:
  watch                              poll your orders and print them on every refresh;
                                     type "<order-id> <status>" to move one meanwhile
  available                          list pending orders nobody has accepted
  transition <order-id> <status>     move an order, e.g. transition 3f2a... shopping
`

func main() {
	cfg := config.FromEnv()
	flags := pflag.NewFlagSet("runner", pflag.ExitOnError)
	apiURL := flags.String("api", envOr("RUNNER_API_URL", "http://localhost:8080"), "API base URL")
	userID := flags.StringP("user", "u", os.Getenv("RUNNER_USER_ID"), "your user id")
	role := flags.String("role", string(domain.RoleFulfiller), "acting role")
	interval := flags.Duration("interval", cfg.OrderPollInterval, "poll interval for watch")
	from := flags.String("from", "", "status you last saw, for transition; defaults to the current one")
	logLevel := flags.String("log-level", "warn", "log level")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage, "\nflags:\n", flags.FlagUsages())
	}
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 || *userID == "" {
		flags.Usage()
		os.Exit(2)
	}
	actorRole, ok := domain.ParseRole(*role)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}
	actor := domain.User{ID: *userID, Role: actorRole}

	logger, err := logging.New("runner", *logLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(*apiURL)

	switch args[0] {
	case "watch":
		err = watch(ctx, client, actor, *interval, logger, os.Stdin)
	case "available":
		var orders []domain.Order
		orders, err = client.ListAvailable(ctx, actor)
		if err == nil {
			printOrders(orders)
		}
	case "transition":
		if len(args) != 3 {
			flags.Usage()
			os.Exit(2)
		}
		to, ok := domain.ParseOrderStatus(args[2])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown status %q\n", args[2])
			os.Exit(2)
		}
		var res *apiclient.TransitionResult
		res, err = client.Transition(ctx, actor, args[1], domain.OrderStatus(*from), to)
		if err == nil {
			fmt.Printf("%s is now %s\n", res.Order.Number, res.Order.Status)
			for _, w := range res.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
		}
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, client *apiclient.Client, actor domain.User, interval time.Duration, logger *zap.Logger, in io.Reader) error {
	view := ordersync.NewView()
	var printMu sync.Mutex
	loop := ordersync.NewLoop(client, actor, view,
		ordersync.WithInterval(interval),
		ordersync.WithLogger(logger),
		ordersync.OnSync(func([]domain.Order) {
			printMu.Lock()
			defer printMu.Unlock()
			printGrouped(view)
		}),
	)
	go readTransitions(ctx, in, client, actor, loop, logger)
	return loop.Run(ctx)
}

// readTransitions applies "<order-id> <status>" lines from in. Each accepted
// transition is shown right away and corrected by the next poll.
func readTransitions(ctx context.Context, in io.Reader, client *apiclient.Client, actor domain.User, loop *ordersync.Loop, logger *zap.Logger) {
	sc := bufio.NewScanner(in)
	for sc.Scan() && ctx.Err() == nil {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "expected: <order-id> <status>")
			continue
		}
		to, ok := domain.ParseOrderStatus(fields[1])
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown status %q\n", fields[1])
			continue
		}
		var from domain.OrderStatus
		if o, ok := loop.View().Get(fields[0]); ok {
			from = o.Status
		}
		res, err := client.Transition(ctx, actor, fields[0], from, to)
		if err != nil {
			logger.Warn("transition failed", zap.String("order_id", fields[0]), zap.Error(err))
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		loop.Apply(res.Order)
	}
}

var statusOrder = []domain.OrderStatus{
	domain.StatusPending,
	domain.StatusAccepted,
	domain.StatusShopping,
	domain.StatusDelivering,
	domain.StatusCompleted,
	domain.StatusCancelled,
}

func printGrouped(view *ordersync.View) {
	groups := view.ByStatus()
	fmt.Printf("\n== synced %s ==\n", view.SyncedAt().Local().Format(time.Kitchen))
	for _, st := range statusOrder {
		if len(groups[st]) == 0 {
			continue
		}
		fmt.Printf("%s (%d)\n", strings.ToUpper(string(st)), len(groups[st]))
		printOrders(groups[st])
	}
}

func printOrders(orders []domain.Order) {
	if len(orders) == 0 {
		fmt.Println("no orders")
		return
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tID\tSTATUS\tITEMS\tTOTAL\tDELIVER TO")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", o.Number, o.ID, o.Status, len(o.Items), cents(o.Totals.TotalCents), deliverTo(o.Delivery))
	}
	_ = w.Flush()
}

func deliverTo(d domain.DeliveryInfo) string {
	parts := make([]string, 0, 2)
	if d.Hall != "" {
		parts = append(parts, d.Hall)
	}
	if d.Room != "" {
		parts = append(parts, "room "+d.Room)
	}
	if len(parts) == 0 {
		return d.Address
	}
	return strings.Join(parts, ", ")
}

func cents(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
