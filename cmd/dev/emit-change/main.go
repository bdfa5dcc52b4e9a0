// Command emit-change publishes one change event on the configured broker,
// which is handy for watching live grids and cache invalidation by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/garnizeh/folio/internal/config"
	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/internal/notify"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	table := flag.String("table", string(models.Projects), "Collection that changed")
	event := flag.String("event", string(notify.Update), "insert, update or delete")
	flag.Parse()

	if _, err := models.ParseCollection(*table); err != nil {
		fmt.Fprintf(os.Stderr, "Table error: %v\n", err)
		os.Exit(1)
	}
	ev := notify.ChangeEvent{Event: notify.EventType(*event), Table: *table}
	if !ev.Event.Valid() {
		fmt.Fprintf(os.Stderr, "Unknown event %q\n", *event)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	ev.Schema = cfg.Notify.Schema

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var pub interface {
		notify.Publisher
		Close() error
	}
	switch cfg.Notify.Driver {
	case "postgres":
		pub, err = notify.OpenPostgresPublisher(ctx, cfg.Notify.PostgresDSN, cfg.Notify.ChannelPrefix)
	case "redis":
		pub, err = notify.ConnectRedis(notify.RedisConfig{
			Addr:     cfg.Notify.RedisAddr,
			Password: cfg.Notify.RedisPassword,
			DB:       cfg.Notify.RedisDB,
			Prefix:   cfg.Notify.ChannelPrefix,
			Schema:   cfg.Notify.Schema,
		})
	default:
		err = fmt.Errorf("notify driver %q has no external broker", cfg.Notify.Driver)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Broker error: %v\n", err)
		os.Exit(1)
	}
	defer pub.Close()

	if err := pub.Publish(ctx, ev); err != nil {
		fmt.Fprintf(os.Stderr, "Publish error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Published %s on %s\n", ev.Event, notify.ChannelName(cfg.Notify.ChannelPrefix, ev.Table))
}
