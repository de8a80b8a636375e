package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"paper-tracker/config"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher wraps the daily papers API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new HuggingFace fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// DailyPapers returns trending papers for the given date (zero value
// means today) aggregated over the period: "day", "week" (7 days) or
// "month" (30 days). Multi-day results are deduplicated and sorted by
// upvotes. Fetch failures for individual days are skipped.
func (f *Fetcher) DailyPapers(ctx context.Context, targetDate time.Time, period string) ([]TrendingPaper, error) {
	days := 1
	switch period {
	case "week":
		days = 7
	case "month":
		days = 30
	}

	if targetDate.IsZero() {
		targetDate = time.Now().UTC()
	}

	if days == 1 {
		return f.fetchDay(ctx, targetDate)
	}

	seen := make(map[string]bool)
	var merged []TrendingPaper
	for i := 0; i < days; i++ {
		day := targetDate.AddDate(0, 0, -i)
		papers, err := f.fetchDay(ctx, day)
		if err != nil {
			f.Logger.Warn("Daily papers fetch failed for day",
				zap.String("date", day.Format("2006-01-02")), zap.Error(err))
			continue
		}
		for _, p := range papers {
			if p.PaperID == "" || seen[p.PaperID] {
				continue
			}
			seen[p.PaperID] = true
			merged = append(merged, p)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Upvotes > merged[j].Upvotes
	})
	return merged, nil
}

// fetchDay fetches and parses a single day of the feed.
func (f *Fetcher) fetchDay(ctx context.Context, day time.Time) ([]TrendingPaper, error) {
	reqURL := fmt.Sprintf("%s?date=%s", f.Config.HuggingFaceBaseURL, day.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface request failed with status: %d", resp.StatusCode)
	}

	var items []feedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}

	papers := make([]TrendingPaper, 0, len(items))
	for _, item := range items {
		p := TrendingPaper{
			PaperID:     item.Paper.ID,
			Title:       item.Paper.Title,
			Summary:     item.Paper.Summary,
			Upvotes:     item.Paper.Upvotes,
			AISummary:   item.Paper.AISummary,
			AIKeywords:  item.Paper.AIKeywords,
			PublishedAt: item.Paper.PublishedAt,
			GithubRepo:  item.Paper.GithubRepo,
			GithubStars: item.Paper.GithubStars,
			NumComments: item.NumComments,
			Thumbnail:   item.Thumbnail,
			SubmittedBy: item.SubmittedBy.Fullname,
		}
		for _, a := range item.Paper.Authors {
			if a.Name != "" {
				p.Authors = append(p.Authors, a.Name)
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}
