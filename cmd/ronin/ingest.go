package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wmarzella/ronin/internal/models"
)

var (
	ingestSource  string
	ingestKeyword string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <listings.json>",
	Short: "Ingest scraped listings and classify them",
	Long: `Reads a JSON array of scraped listings, saves each one and runs
classification as it lands. Listings already in the store are skipped.
Scraper output files carry external_id, title, company, location, url
and description per listing.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "seek", "Board the listings were scraped from")
	ingestCmd.Flags().StringVar(&ingestKeyword, "keyword", "", "Search keyword the scrape ran under")
}

// fileScraper replays a scraper's JSON output file. Board automation
// runs outside this process; its results enter through files like this
// one or the intake listener.
type fileScraper struct {
	path    string
	keyword string
}

func (f *fileScraper) Scrape(_ context.Context, source string) ([]*models.Listing, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}

	var listings []*models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("failed to parse listings file %s: %w", f.path, err)
	}

	now := time.Now().UTC()
	for _, listing := range listings {
		listing.Source = source
		if listing.Keyword == "" {
			listing.Keyword = f.keyword
		}
		if listing.FirstSeen.IsZero() {
			listing.FirstSeen = now
		}
	}
	return listings, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	scraper := &fileScraper{path: args[0], keyword: ingestKeyword}
	saved, err := application.ClassifierService.Ingest(ctx, scraper, ingestSource)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d new listings from %s\n", saved, args[0])
	return nil
}
