package models

import (
	"time"
)

// Enrichment stages. A paper only ever moves forward through these.
const (
	StageRegistered = 1 // metadata fetched, row + document created
	StageSimple     = 2 // abstract summarized in Korean
	StageDeep       = 3 // full paper analyzed in Korean
)

// Values of Paper.AnalysisStatus while an enrichment call is in flight.
// The field acts as a per-paper mutex: it is set before the slow external
// call starts and cleared on every exit path.
const (
	StatusSimpleAnalyzing = "simple_analyzing"
	StatusDeepAnalyzing   = "deep_analyzing"
)

// Paper is the relational summary row for a registered arXiv paper.
// Long-form content (abstract, translations, analysis) lives in the
// per-paper document; this row carries only the fields the list API
// filters and sorts on.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Normalized arXiv ID, version suffix stripped (e.g. "2306.02437").
	PaperID string `json:"paper_id" gorm:"uniqueIndex;not null"`

	Title     string     `json:"title"`
	ArxivDate *time.Time `json:"arxiv_date,omitempty"`

	SearchStage int `json:"search_stage" gorm:"index;default:1"`

	// Non-empty only while a stage 2/3 enrichment is running.
	AnalysisStatus *string `json:"analysis_status,omitempty" gorm:"index"`

	IsFavorite      bool `json:"is_favorite" gorm:"default:false"`
	IsNotInterested bool `json:"is_not_interested" gorm:"index;default:false"`

	CitationCount int `json:"citation_count" gorm:"default:0"`

	RegisteredBy string `json:"registered_by,omitempty" gorm:"index"`

	FigureURL string `json:"figure_url,omitempty"`

	// JSON-encoded list of matched keyword strings, empty when nothing
	// matched. Denormalized cache maintained by the keyword service.
	MatchedKeywords string `json:"matched_keywords,omitempty" gorm:"type:text"`
}

// TableName sets the explicit table name.
func (Paper) TableName() string {
	return "papers"
}
