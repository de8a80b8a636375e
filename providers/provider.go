// Package providers defines the interfaces the enrichment pipeline uses to
// talk to external paper sources, plus the shared result shapes they return.
package providers

import (
	"context"
	"strings"
	"time"
)

// PaperInfo is the metadata a source returns for a single paper.
type PaperInfo struct {
	PaperID   string
	Title     string
	Abstract  string
	Authors   []string
	ArxivDate *time.Time
	PDFURL    string
}

// CitingPaper is one entry of a citation-graph or topic-search result.
type CitingPaper struct {
	PaperID         string
	Title           string
	CitationCount   int
	Year            int
	PublicationDate string // "YYYY-MM-DD", empty if unknown
	Authors         []string
	Abstract        string
}

// MetadataSource resolves an arXiv ID to its metadata.
// Returns (nil, nil) when the paper does not exist upstream.
type MetadataSource interface {
	PaperInfo(ctx context.Context, paperID string) (*PaperInfo, error)
}

// CitationSource is the authoritative citation-graph backend.
type CitationSource interface {
	// CitationCount returns 0 when the paper is unknown upstream.
	CitationCount(ctx context.Context, paperID string) (int, error)

	// CitingPapers lists papers citing paperID, sorted by sortBy
	// ("citationCount" or "publicationDate"), optionally restricted to
	// yearFrom and later (0 disables the filter).
	CitingPapers(ctx context.Context, paperID string, limit int, sortBy string, yearFrom int) ([]CitingPaper, error)

	// SearchByTopic runs a free-text search, same shape and sort options
	// plus "relevance" (the upstream default).
	SearchByTopic(ctx context.Context, query string, limit int, sortBy string, yearFrom int) ([]CitingPaper, error)
}

// FastCitationSource is a cheap first-pass citation count lookup.
// Returns (nil, nil) when the paper is unknown; counts from this source
// may lag for recent papers.
type FastCitationSource interface {
	CitationCount(ctx context.Context, paperID string) (*int, error)
}

// FigureSource extracts a representative figure image URL for a paper.
// Returns ("", nil) when no figure is found.
type FigureSource interface {
	FirstFigureURL(ctx context.Context, paperID string) (string, error)
}

// NormalizeID strips a trailing version suffix from an arXiv ID, so
// "2306.02437v2" and "2306.02437" key the same record. Old-style IDs
// like "hep-th/9901001v1" are handled as well.
func NormalizeID(paperID string) string {
	id := strings.TrimSpace(paperID)
	idx := strings.LastIndex(id, "v")
	if idx <= 0 || idx == len(id)-1 {
		return id
	}
	for _, r := range id[idx+1:] {
		if r < '0' || r > '9' {
			return id
		}
	}
	return id[:idx]
}

// SanitizeID converts a normalized ID into a key safe for file names and
// object keys (old-style IDs contain a slash).
func SanitizeID(paperID string) string {
	return strings.ReplaceAll(NormalizeID(paperID), "/", "_")
}
