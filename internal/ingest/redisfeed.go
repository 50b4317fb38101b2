package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/go-redis/redis/v8"

	"routing-engine/internal/graph"
	"routing-engine/internal/types"
)

// DefaultChannel is the pub/sub channel pool-state producers publish
// snapshot batches to.
const DefaultChannel = "routing-engine:pool-snapshots"

// RedisFeed relays pool snapshot batches published on a Redis pub/sub
// channel into a graph.Graph, replacing the teacher's (dex-aggregator)
// internal/cache/redis_store.go use of go-redis as a request/response
// pool store: this repository's graph already holds pool state in
// memory under atomic.Pointer, so the one remaining job for Redis is
// carrying incremental updates from an external ingestion process
// into that in-memory graph, which is naturally a pub/sub relay
// rather than a get/set key-value store.
type RedisFeed struct {
	client  *redis.Client
	g       *graph.Graph
	channel string
}

// NewRedisFeed returns a feed that subscribes to channel (DefaultChannel
// if empty) on client and applies every received batch to g.
func NewRedisFeed(client *redis.Client, g *graph.Graph, channel string) *RedisFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisFeed{client: client, g: g, channel: channel}
}

// Run subscribes and blocks, applying snapshot batches to the graph
// until ctx is canceled or the subscription errs out.
func (f *RedisFeed) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("ingest: redis subscription channel closed")
			}
			if err := f.applyMessage(msg.Payload); err != nil {
				log.Printf("ingest: dropping malformed snapshot batch: %v", err)
				continue
			}
		}
	}
}

func (f *RedisFeed) applyMessage(payload string) error {
	var pools []*types.Pool
	if err := json.Unmarshal([]byte(payload), &pools); err != nil {
		return err
	}
	return f.g.ApplySnapshot(pools)
}
