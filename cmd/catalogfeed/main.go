// Command catalogfeed publishes asset upsert events from a JSON file to the
// asset event topic. It exists to seed or refresh a running search service
// without touching the catalog database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/pkg/config"
	"github.com/velora-exchange/assetsearch/pkg/kafka"
	"github.com/velora-exchange/assetsearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	assetsPath := flag.String("assets", "", "path to a JSON file containing an array of assets")
	flag.Parse()

	if *assetsPath == "" {
		fmt.Fprintln(os.Stderr, "-assets is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, "text")

	data, err := os.ReadFile(*assetsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read assets file: %v\n", err)
		os.Exit(1)
	}
	var assets []asset.Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse assets file: %v\n", err)
		os.Exit(1)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AssetEvents)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	events := make([]kafka.Event, 0, len(assets))
	for _, a := range assets {
		if err := asset.Validate(a); err != nil {
			fmt.Fprintf(os.Stderr, "skipping invalid asset: %v\n", err)
			continue
		}
		events = append(events, kafka.Event{
			Key: a.ID,
			Value: asset.Event{
				Type:      asset.EventUpsert,
				AssetID:   a.ID,
				Asset:     a,
				Timestamp: time.Now().UTC(),
			},
		})
	}

	if err := producer.PublishBatch(ctx, events); err != nil {
		fmt.Fprintf(os.Stderr, "failed to publish events: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("published %d asset events to %s\n", len(events), cfg.Kafka.Topics.AssetEvents)
}
