package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/archmap/internal/adapters/postgres"
	"github.com/samirrijal/archmap/internal/pkg/config"
)

// Manifest lists the GeoJSON sources to load.
type Manifest struct {
	Source  string        `json:"source"`
	Sources []SourceEntry `json:"sources"`
}

// SourceEntry is one GeoJSON FeatureCollection, local or remote.
type SourceEntry struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

func main() {
	cfg, err := config.Load("archmap-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("archmap seed: %d sources from %s", len(manifest.Sources), manifest.Source)

	// Optional CLI arg: comma-separated slugs to load
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	loader := &loader{
		buildings: postgres.NewBuildingRepo(db),
		routes:    postgres.NewRouteRepo(db),
		client:    &http.Client{Timeout: 60 * time.Second},
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent downloads

	for _, src := range manifest.Sources {
		if len(slugFilter) > 0 && !slugFilter[src.Slug] {
			continue
		}

		wg.Add(1)
		go func(s SourceEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := loader.load(ctx, s); err != nil {
				log.Printf("ERROR [%s]: %v", s.Slug, err)
			}
		}(src)
	}

	wg.Wait()
	log.Println("seed complete")
}

type loader struct {
	buildings *postgres.BuildingRepo
	routes    *postgres.RouteRepo
	client    *http.Client
}

func (l *loader) load(ctx context.Context, src SourceEntry) error {
	raw, err := l.fetch(src)
	if err != nil {
		return err
	}

	set, err := ParseFeatureCollection(raw)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	for _, w := range set.Skipped {
		log.Printf("[%s] skipped: %s", src.Slug, w)
	}

	if err := l.buildings.UpsertBatch(ctx, set.Buildings); err != nil {
		return fmt.Errorf("buildings: %w", err)
	}
	if err := l.routes.UpsertBatch(ctx, set.Routes); err != nil {
		return fmt.Errorf("routes: %w", err)
	}

	log.Printf("[%s] %d buildings, %d routes", src.Slug, len(set.Buildings), len(set.Routes))
	return nil
}

func (l *loader) fetch(src SourceEntry) ([]byte, error) {
	if src.Path != "" {
		return os.ReadFile(src.Path)
	}

	log.Printf("[%s] downloading %s", src.Slug, src.URL)
	resp, err := l.client.Get(src.URL)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src.URL)
	}
	return io.ReadAll(resp.Body)
}
