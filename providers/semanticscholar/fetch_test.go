package semanticscholar

import (
	"encoding/json"
	"testing"

	"paper-tracker/providers"
)

func entryFromJSON(t *testing.T, raw string) paperEntry {
	t.Helper()
	var entry paperEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	return entry
}

func TestToCitingPaper(t *testing.T) {
	entry := entryFromJSON(t, `{
		"title": "  Diffusion Policies ",
		"abstract": "An abstract.",
		"citationCount": 12,
		"year": 2023,
		"publicationDate": "2023-06-05",
		"authors": [{"name": "A. Researcher"}, {"name": ""}],
		"externalIds": {"ArXiv": "2306.02437v2"}
	}`)

	cp, ok := toCitingPaper(entry, 0)
	if !ok {
		t.Fatal("expected entry to convert")
	}
	if cp.PaperID != "2306.02437" {
		t.Fatalf("expected normalized ID, got %q", cp.PaperID)
	}
	if cp.Title != "Diffusion Policies" {
		t.Fatalf("expected trimmed title, got %q", cp.Title)
	}
	if cp.CitationCount != 12 || cp.Year != 2023 {
		t.Fatalf("unexpected counts: %+v", cp)
	}
	if len(cp.Authors) != 1 || cp.Authors[0] != "A. Researcher" {
		t.Fatalf("expected empty author names dropped, got %v", cp.Authors)
	}
}

func TestToCitingPaperDropsNonArxiv(t *testing.T) {
	entry := entryFromJSON(t, `{"title": "Journal Paper", "citationCount": 100, "externalIds": {}}`)
	if _, ok := toCitingPaper(entry, 0); ok {
		t.Fatal("expected entry without an arXiv ID to be dropped")
	}
}

func TestToCitingPaperYearFilter(t *testing.T) {
	entry := entryFromJSON(t, `{"title": "Old Paper", "year": 2018, "externalIds": {"ArXiv": "1801.00001"}}`)
	if _, ok := toCitingPaper(entry, 2020); ok {
		t.Fatal("expected paper older than yearFrom to be dropped")
	}
	if _, ok := toCitingPaper(entry, 2018); !ok {
		t.Fatal("expected paper from the boundary year to be kept")
	}

	// A missing year never disqualifies a paper.
	noYear := entryFromJSON(t, `{"title": "Undated", "externalIds": {"ArXiv": "2401.00001"}}`)
	if _, ok := toCitingPaper(noYear, 2020); !ok {
		t.Fatal("expected paper without a year to be kept")
	}
}

func TestSortCitingPapersByCitationCount(t *testing.T) {
	papers := []providers.CitingPaper{
		{PaperID: "a", CitationCount: 1},
		{PaperID: "b", CitationCount: 9},
		{PaperID: "c", CitationCount: 4},
	}
	sortCitingPapers(papers, "citationCount")
	if papers[0].PaperID != "b" || papers[1].PaperID != "c" || papers[2].PaperID != "a" {
		t.Fatalf("expected citation count descending, got %v", papers)
	}
}

func TestSortCitingPapersByPublicationDate(t *testing.T) {
	papers := []providers.CitingPaper{
		{PaperID: "a", PublicationDate: "2023-01-15"},
		{PaperID: "b", PublicationDate: ""},
		{PaperID: "c", PublicationDate: "2024-03-01"},
	}
	sortCitingPapers(papers, "publicationDate")
	if papers[0].PaperID != "c" || papers[1].PaperID != "a" {
		t.Fatalf("expected newest first, got %v", papers)
	}
	// Papers without a date sort last.
	if papers[2].PaperID != "b" {
		t.Fatalf("expected undated paper last, got %v", papers)
	}
}

func TestSemanticID(t *testing.T) {
	if got := semanticID("2306.02437v1"); got != "ARXIV:2306.02437" {
		t.Fatalf("semanticID = %q", got)
	}
}
