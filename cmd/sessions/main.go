package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"upsell/internal/shared/config"
	"upsell/internal/shared/constants"
	"upsell/pkg/cache"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const usage = `Usage: sessions <command> [args]

Commands:
  list          List stored selection sessions and their remaining TTL
  show <id>     Print the stored snapshot of one session
  purge         Delete every stored selection session
`

func main() {
	_ = godotenv.Load()
	timeout := flag.Duration("timeout", 10*time.Second, "overall command timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := cache.NewClient(ctx, cache.Config{
		Address:  cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("❌ Redis connection failed: %v", err)
	}
	defer client.Close()

	switch flag.Arg(0) {
	case "list":
		err = listSessions(ctx, client)
	case "show":
		if flag.NArg() < 2 {
			flag.Usage()
			os.Exit(2)
		}
		err = showSession(ctx, cache.NewService(client), flag.Arg(1))
	case "purge":
		err = cache.NewService(client).DeletePattern(ctx, constants.PATTERN_INVALIDATE_SESSIONS_ALL)
		if err == nil {
			fmt.Println("🧹 All selection sessions deleted")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("❌ %s failed: %v", flag.Arg(0), err)
	}
}

func listSessions(ctx context.Context, client *redis.Client) error {
	count := 0
	iter := client.Scan(ctx, 0, constants.PATTERN_INVALIDATE_SESSIONS_ALL, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := client.TTL(ctx, key).Result()
		if err != nil {
			return err
		}
		fmt.Printf("%-40s ttl=%s\n", strings.TrimPrefix(key, constants.CACHE_KEY_SELECTION_SESSION), ttl.Round(time.Second))
		count++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	fmt.Printf("\n%d session(s)\n", count)
	return nil
}

func showSession(ctx context.Context, snapshots cache.Service, id string) error {
	var raw json.RawMessage
	if err := snapshots.Get(ctx, constants.BuildSelectionSessionKey(id), &raw); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return fmt.Errorf("session %q not found", id)
		}
		return err
	}

	var pretty map[string]any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
