package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-tracker/config"
	"paper-tracker/providers"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

const (
	maxRetries = 2
	retryDelay = time.Second
	// The Graph API caps page size at 100.
	batchSize = 100

	entryFields = "title,abstract,citationCount,externalIds,year,publicationDate,authors"
)

// Fetcher wraps the Semantic Scholar Graph API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new Semantic Scholar fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// semanticID converts an arXiv ID to the Graph API identifier form.
func semanticID(paperID string) string {
	return "ARXIV:" + providers.NormalizeID(paperID)
}

// CitationCount returns the citation count for a paper, 0 when the paper
// is unknown upstream. Retries once on rate limiting.
func (f *Fetcher) CitationCount(ctx context.Context, paperID string) (int, error) {
	log := f.Logger.With(zap.String("paper_id", paperID))

	params := url.Values{}
	params.Set("fields", "title,abstract,citationCount,year")
	reqURL := fmt.Sprintf("%s/paper/%s?%s", f.Config.SemanticBaseURL, semanticID(paperID), params.Encode())

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return 0, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			if attempt < maxRetries-1 {
				time.Sleep(retryDelay)
				continue
			}
			return 0, fmt.Errorf("semantic scholar request failed: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var pr paperResponse
			err := json.NewDecoder(resp.Body).Decode(&pr)
			resp.Body.Close()
			if err != nil {
				return 0, err
			}
			log.Debug("Semantic Scholar citation count", zap.Int("count", pr.CitationCount))
			return pr.CitationCount, nil
		case http.StatusTooManyRequests:
			resp.Body.Close()
			wait := retryDelay * time.Duration(attempt+1)
			log.Warn("Semantic Scholar rate limited, backing off", zap.Duration("wait", wait))
			time.Sleep(wait)
		default:
			status := resp.StatusCode
			resp.Body.Close()
			log.Debug("Semantic Scholar lookup failed", zap.Int("status", status))
			return 0, nil
		}
	}
	return 0, nil
}

// CitingPapers lists arXiv papers citing paperID. Results are paginated
// upstream; we stop once we have collected twice the requested limit so
// the caller-side sort has enough candidates, then sort and truncate.
func (f *Fetcher) CitingPapers(ctx context.Context, paperID string, limit int, sortBy string, yearFrom int) ([]providers.CitingPaper, error) {
	log := f.Logger.With(zap.String("paper_id", paperID), zap.String("sort", sortBy))

	var all []providers.CitingPaper
	offset := 0
	for {
		params := url.Values{}
		params.Set("fields", entryFields)
		params.Set("limit", fmt.Sprintf("%d", batchSize))
		params.Set("offset", fmt.Sprintf("%d", offset))
		reqURL := fmt.Sprintf("%s/paper/%s/citations?%s", f.Config.SemanticBaseURL, semanticID(paperID), params.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			log.Warn("Citing-papers page fetch failed", zap.Error(err))
			break
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			break
		}
		var cr citationsResponse
		err = json.NewDecoder(resp.Body).Decode(&cr)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if len(cr.Data) == 0 {
			break
		}

		for _, item := range cr.Data {
			if cp, ok := toCitingPaper(item.CitingPaper, yearFrom); ok {
				all = append(all, cp)
			}
		}

		offset += batchSize
		if len(cr.Data) < batchSize || len(all) >= limit*2 {
			break
		}
	}

	sortCitingPapers(all, sortBy)
	if len(all) > limit {
		all = all[:limit]
	}
	log.Info("Fetched citing papers", zap.Int("count", len(all)))
	return all, nil
}

// SearchByTopic runs a free-text paper search, keeping only results with
// an arXiv ID.
func (f *Fetcher) SearchByTopic(ctx context.Context, query string, limit int, sortBy string, yearFrom int) ([]providers.CitingPaper, error) {
	log := f.Logger.With(zap.String("query", query), zap.String("sort", sortBy))

	var all []providers.CitingPaper
	offset := 0
	for len(all) < limit {
		params := url.Values{}
		params.Set("query", query)
		params.Set("fields", entryFields)
		params.Set("limit", fmt.Sprintf("%d", batchSize))
		params.Set("offset", fmt.Sprintf("%d", offset))
		if yearFrom > 0 {
			params.Set("year", fmt.Sprintf("%d-", yearFrom))
		}
		reqURL := fmt.Sprintf("%s/paper/search?%s", f.Config.SemanticBaseURL, params.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			log.Warn("Topic search page fetch failed", zap.Error(err))
			break
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			time.Sleep(retryDelay)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			break
		}
		var sr searchResponse
		err = json.NewDecoder(resp.Body).Decode(&sr)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if len(sr.Data) == 0 {
			break
		}

		for _, entry := range sr.Data {
			if cp, ok := toCitingPaper(entry, 0); ok {
				all = append(all, cp)
				if len(all) >= limit {
					break
				}
			}
		}

		offset += batchSize
		if len(sr.Data) < batchSize {
			break
		}
	}

	// "relevance" keeps the upstream order.
	if sortBy != "relevance" {
		sortCitingPapers(all, sortBy)
	}
	if len(all) > limit {
		all = all[:limit]
	}
	log.Info("Topic search complete", zap.Int("count", len(all)))
	return all, nil
}

// toCitingPaper converts an API entry, dropping papers without an arXiv ID
// or older than yearFrom.
func toCitingPaper(entry paperEntry, yearFrom int) (providers.CitingPaper, bool) {
	arxivID := entry.ExternalIDs.ArXiv
	if arxivID == "" {
		return providers.CitingPaper{}, false
	}
	if yearFrom > 0 && entry.Year > 0 && entry.Year < yearFrom {
		return providers.CitingPaper{}, false
	}
	cp := providers.CitingPaper{
		PaperID:         providers.NormalizeID(arxivID),
		Title:           strings.TrimSpace(entry.Title),
		CitationCount:   entry.CitationCount,
		Year:            entry.Year,
		PublicationDate: entry.PublicationDate,
		Abstract:        entry.Abstract,
	}
	for _, a := range entry.Authors {
		if a.Name != "" {
			cp.Authors = append(cp.Authors, a.Name)
		}
	}
	return cp, true
}

// sortCitingPapers orders in place: citation count descending or
// publication date descending. Unknown dates sort last.
func sortCitingPapers(papers []providers.CitingPaper, sortBy string) {
	switch sortBy {
	case "publicationDate":
		sort.SliceStable(papers, func(i, j int) bool {
			di, dj := papers[i].PublicationDate, papers[j].PublicationDate
			if di == "" {
				di = "0000-00-00"
			}
			if dj == "" {
				dj = "0000-00-00"
			}
			return di > dj
		})
	default:
		sort.SliceStable(papers, func(i, j int) bool {
			return papers[i].CitationCount > papers[j].CitationCount
		})
	}
}

var _ providers.CitationSource = (*Fetcher)(nil)
