// Package openalex looks up citation counts via the OpenAlex works API.
// It is much faster than the citation graph backend but may lag behind
// for recent papers, so callers treat it as a first pass only.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"paper-tracker/config"
	"paper-tracker/providers"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// Fetcher wraps the OpenAlex API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new OpenAlex fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

type worksResponse struct {
	CitedByCount int `json:"cited_by_count"`
}

// CitationCount resolves the paper via its arXiv DOI. Returns (nil, nil)
// when OpenAlex does not know the paper.
func (f *Fetcher) CitationCount(ctx context.Context, paperID string) (*int, error) {
	cleanID := providers.NormalizeID(paperID)
	doi := fmt.Sprintf("10.48550/arxiv.%s", cleanID)
	reqURL := fmt.Sprintf("%s/works/doi:%s?select=cited_by_count", f.Config.OpenAlexBaseURL, doi)

	log := f.Logger.With(zap.String("paper_id", cleanID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fmt.Sprintf("paper-tracker/1.0 (mailto:%s)", f.Config.OpenAlexMailto))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openalex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug("OpenAlex lookup missed", zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var wr worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, err
	}
	log.Debug("OpenAlex citation count", zap.Int("count", wr.CitedByCount))
	return &wr.CitedByCount, nil
}

var _ providers.FastCitationSource = (*Fetcher)(nil)
