package models

import "time"

// PaperDocument is the per-paper JSON document holding everything too
// large or too variable for the relational row. The document is the
// source of truth for long-form content; the row caches small fields
// (title, figure URL) for fast listing. Row and document are created
// together and deleted together.
type PaperDocument struct {
	PaperID     string     `json:"paper_id"`
	Title       string     `json:"title,omitempty"`
	ArxivDate   *time.Time `json:"arxiv_date,omitempty"`
	SearchStage int        `json:"search_stage"`

	Authors    []string `json:"authors,omitempty"`
	AbstractEN string   `json:"abstract_en,omitempty"`
	PDFURL     string   `json:"pdf_url,omitempty"`
	FigureURL  string   `json:"figure_url,omitempty"`

	CitationCount int `json:"citation_count,omitempty"`

	// Stage 2 product: Korean summary of the abstract.
	AbstractKO string `json:"abstract_ko,omitempty"`

	// Stage 3 product: Korean deep analysis in markdown sections.
	DetailedAnalysisKO string `json:"detailed_analysis_ko,omitempty"`
}
