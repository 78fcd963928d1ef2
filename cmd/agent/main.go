// Command agent is the offline-capable client for a SubTrack server. It
// keeps subscriptions in a local Redis-backed cache so adds succeed without
// connectivity, and replays the pending queue when asked to sync.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/yuu19/SubTrack/internal/pkg/env"
	"github.com/yuu19/SubTrack/internal/pkg/offline"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", env.GetEnv("AGENT_CACHE_HOST", "localhost"), env.GetEnv("AGENT_CACHE_PORT", "6379")),
		Password: env.GetEnv("AGENT_CACHE_PASSWORD", ""),
	})
	defer client.Close()

	cache := offline.NewCache(offline.NewRedisStore(client))
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(ctx, cache, os.Args[2:])
	case "list":
		err = runList(ctx, cache)
	case "sync":
		err = runSync(ctx, cache, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: agent <add|list|sync> [flags]")
}

func runAdd(ctx context.Context, cache *offline.Cache, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "service name")
	cycle := fs.String("cycle", "monthly", "billing cycle: monthly, quarterly or yearly")
	amount := fs.String("amount", "0", "amount per cycle")
	firstPayment := fs.String("first-payment", "", "first payment date (YYYY-MM-DD)")
	notifyDays := fs.Int("notify-days", 1, "days of notice before each charge")
	tags := fs.String("tags", "", "comma-separated tags")
	fs.Parse(args)

	if *name == "" || *firstPayment == "" {
		return fmt.Errorf("add: -name and -first-payment are required")
	}
	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("add: invalid amount %q", *amount)
	}

	payload := offline.SubscriptionPayload{
		ServiceName:      *name,
		Cycle:            *cycle,
		Amount:           amt,
		FirstPaymentDate: *firstPayment,
		NotifyDaysBefore: *notifyDays,
	}
	if *tags != "" {
		for _, tag := range strings.Split(*tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				payload.Tags = append(payload.Tags, tag)
			}
		}
	}

	records, err := cache.AddPending(ctx, payload)
	if err != nil {
		return err
	}
	printRecords(records)
	return nil
}

func runList(ctx context.Context, cache *offline.Cache) error {
	records, err := cache.Cached(ctx)
	if err != nil {
		return err
	}
	printRecords(records)
	return nil
}

func runSync(ctx context.Context, cache *offline.Cache, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	server := fs.String("server", env.GetEnv("AGENT_SERVER_URL", "http://localhost:4000"), "server base URL")
	fs.Parse(args)

	result, err := cache.Sync(ctx, strings.TrimRight(*server, "/")+"/subscriptions")
	if err != nil {
		return err
	}
	fmt.Printf("synced=%d failed=%d\n", result.Synced, result.Failed)
	printRecords(result.Subscriptions)
	return nil
}

func printRecords(records []offline.LocalRecord) {
	for _, record := range records {
		state := "confirmed"
		if record.Pending {
			state = "pending"
		}
		fmt.Printf("%-12s %-24s %-10s %8s  next %s in %dd  [%s]\n",
			record.ID, record.ServiceName, record.Cycle, record.Amount,
			record.NextBillingAt, record.DaysUntilNextBilling, state)
	}
}
