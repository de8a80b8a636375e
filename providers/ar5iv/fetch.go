// Package ar5iv extracts a representative figure image URL from the
// ar5iv HTML rendering of a paper. Everything here is best-effort: the
// rendering does not exist for every paper.
package ar5iv

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"paper-tracker/config"
	"paper-tracker/providers"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetcher scrapes ar5iv pages.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new ar5iv fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// FirstFigureURL returns the URL of the first figure image on the page,
// or "" when the page or a figure cannot be found.
func (f *Fetcher) FirstFigureURL(ctx context.Context, paperID string) (string, error) {
	cleanID := providers.NormalizeID(paperID)
	pageURL := fmt.Sprintf("%s/html/%s", f.Config.Ar5ivBaseURL, cleanID)

	log := f.Logger.With(zap.String("paper_id", cleanID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ar5iv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug("ar5iv page not available", zap.Int("status", resp.StatusCode))
		return "", nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", err
	}

	// Prefer an <img> inside a <figure>; fall back to any image whose
	// path looks like extracted paper assets.
	if src := findImage(doc, true); src != "" {
		full := f.absoluteURL(cleanID, src)
		log.Debug("Found figure image", zap.String("url", full))
		return full, nil
	}
	if src := findImage(doc, false); src != "" {
		full := f.absoluteURL(cleanID, src)
		log.Debug("Found asset image", zap.String("url", full))
		return full, nil
	}

	log.Debug("No figure found on ar5iv page")
	return "", nil
}

// findImage walks the parse tree. With insideFigure it returns the first
// img under a figure element; otherwise the first img whose src points
// into assets/figures/images directories.
func findImage(n *html.Node, insideFigure bool) string {
	if n.Type == html.ElementNode {
		if insideFigure && n.Data == "figure" {
			if src := firstImgSrc(n); src != "" {
				return src
			}
		}
		if !insideFigure && n.Data == "img" {
			src := attr(n, "src")
			if strings.Contains(src, "assets") || strings.Contains(src, "figures") || strings.Contains(src, "images") {
				return src
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if src := findImage(c, insideFigure); src != "" {
			return src
		}
	}
	return ""
}

// firstImgSrc returns the src of the first img below n.
func firstImgSrc(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "img" {
		if src := attr(n, "src"); src != "" {
			return src
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if src := firstImgSrc(c); src != "" {
			return src
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// absoluteURL resolves relative image paths against the page location.
func (f *Fetcher) absoluteURL(paperID, src string) string {
	switch {
	case strings.HasPrefix(src, "http"):
		return src
	case strings.HasPrefix(src, "/"):
		return f.Config.Ar5ivBaseURL + src
	default:
		return fmt.Sprintf("%s/html/%s/%s", f.Config.Ar5ivBaseURL, paperID, src)
	}
}

var _ providers.FigureSource = (*Fetcher)(nil)
