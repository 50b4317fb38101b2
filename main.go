package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routing-engine/config"
	"routing-engine/internal/api"
	"routing-engine/internal/graph"
	"routing-engine/internal/ingest"
	"routing-engine/internal/metrics"
	"routing-engine/internal/quotecache"
	"routing-engine/internal/router"
	"routing-engine/internal/simulator"
)

func main() {
	if err := config.Init(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	log.Println("Starting routing engine...")

	g := graph.New()

	seedFeed := ingest.NewMockFeed(g)
	log.Println("Seeding mock pool graph...")
	if err := seedFeed.Seed(); err != nil {
		log.Fatalf("Failed to seed mock pools: %v", err)
	}

	if config.AppConfig.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Addr,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
		redisFeed := ingest.NewRedisFeed(client, g, config.AppConfig.Redis.Channel)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := redisFeed.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("redis feed stopped: %v", err)
			}
		}()
		log.Printf("Subscribed to pool snapshots on %s (%s)", config.AppConfig.Redis.Addr, config.AppConfig.Redis.Channel)
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	cache := quotecache.New(
		time.Duration(config.AppConfig.Cache.TTLSeconds)*time.Second,
		config.AppConfig.Cache.Capacity,
	)

	gasModel := simulator.GasModel{
		BaseGasPerHop:     config.AppConfig.Gas.BaseGasPerHop,
		GasPerTickCrossed: config.AppConfig.Gas.GasPerTickCrossed,
	}

	rt := router.New(g, cache, gasModel, router.Config{
		ChainID:                 1,
		MaxHopsLimit:            config.AppConfig.Routing.MaxHopsLimit,
		MaxSplitsLimit:          config.AppConfig.Routing.MaxSplitsLimit,
		PathEnumerationCap:      config.AppConfig.Routing.PathEnumerationCap,
		MinSplitFraction:        config.AppConfig.Routing.MinSplitFraction,
		MaxSlippageBps:          config.AppConfig.Routing.MaxSlippageBps,
		AmountBucketGranularity: config.AppConfig.Cache.AmountBucketGranularity,
		Metrics:                 m,
	})

	staleAfter := time.Duration(config.AppConfig.Graph.StalenessThresholdSeconds) * time.Second
	handler := api.NewHandler(rt, g, cache, staleAfter, m)

	r := mux.NewRouter()
	r.HandleFunc("/quote", handler.GetQuote).Methods("POST")
	r.HandleFunc("/health", handler.Health).Methods("GET")
	r.HandleFunc("/config", handler.GetConfig).Methods("GET")
	r.HandleFunc("/cache/stats", handler.GetCacheStats).Methods("GET")
	r.HandleFunc("/graph/stats", handler.GetGraphStats).Methods("GET")
	r.HandleFunc("/pools/{id}", handler.GetPool).Methods("GET")
	r.HandleFunc("/pools", handler.GetPoolsBetween).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")

	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, `<html>
<head><title>Routing Engine</title></head>
<body>
<h1>Routing Engine</h1>
<ul>
<li>Server Port: %s</li>
<li>Redis enabled: %t</li>
<li>Max Hops Limit: %d</li>
<li>Max Splits Limit: %d</li>
</ul>
<p>Available endpoints:</p>
<ul>
<li>POST /quote - best-route quote</li>
<li><a href="/health">GET /health</a> - liveness/readiness</li>
<li><a href="/config">GET /config</a> - active configuration</li>
<li><a href="/cache/stats">GET /cache/stats</a> - quote cache counters</li>
<li><a href="/graph/stats">GET /graph/stats</a> - pool graph size/freshness</li>
<li><a href="/metrics">GET /metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`, config.AppConfig.Server.Port, config.AppConfig.Redis.Enabled,
			config.AppConfig.Routing.MaxHopsLimit, config.AppConfig.Routing.MaxSplitsLimit)
	})

	addr := ":" + config.AppConfig.Server.Port
	log.Printf("HTTP server starting on http://localhost%s", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(config.AppConfig.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(config.AppConfig.Server.WriteTimeout) * time.Second,
	}

	log.Fatal(server.ListenAndServe())
}
