package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-tracker/config"
	"paper-tracker/providers"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher wraps the arXiv export API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new arXiv fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// PaperInfo fetches metadata for a single paper. Returns (nil, nil) when
// arXiv has no entry for the ID.
func (f *Fetcher) PaperInfo(ctx context.Context, paperID string) (*providers.PaperInfo, error) {
	cleanID := providers.NormalizeID(paperID)

	params := url.Values{}
	params.Set("id_list", cleanID)
	reqURL := fmt.Sprintf("%s?%s", f.Config.ArxivBaseURL, params.Encode())

	log := f.Logger.With(zap.String("paper_id", cleanID))
	log.Debug("Fetching arXiv metadata", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	info := parseFeed(body, cleanID)
	if info == nil {
		log.Debug("No arXiv entry found")
	}
	return info, nil
}

// parseFeed extracts the first valid entry from an Atom response.
// arXiv answers unknown IDs with a feed whose entry has no title, so an
// empty title means "not found".
func parseFeed(body []byte, cleanID string) *providers.PaperInfo {
	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil
	}
	if len(feed.Entries) == 0 {
		return nil
	}
	entry := feed.Entries[0]

	title := collapseWhitespace(entry.Title)
	if title == "" {
		return nil
	}

	info := &providers.PaperInfo{
		PaperID:  cleanID,
		Title:    title,
		Abstract: collapseWhitespace(entry.Summary),
	}

	if entry.Published != "" {
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			info.ArxivDate = &t
		}
	}

	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			info.Authors = append(info.Authors, name)
		}
	}

	info.PDFURL = fmt.Sprintf("https://arxiv.org/pdf/%s", cleanID)
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			info.PDFURL = link.Href
			break
		}
	}

	return info
}

// collapseWhitespace joins the multi-line Atom text fields into one line.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ providers.MetadataSource = (*Fetcher)(nil)
