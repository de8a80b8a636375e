package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-tracker/models"
	"paper-tracker/storage"
)

// KeywordService matches registered keywords against paper title and
// abstract and caches the result on the relational row.
type KeywordService struct {
	DB     *gorm.DB
	Docs   storage.DocStore
	Logger *zap.Logger
}

// NewKeywordService creates a new keyword service.
func NewKeywordService(db *gorm.DB, docs storage.DocStore, logger *zap.Logger) *KeywordService {
	return &KeywordService{DB: db, Docs: docs, Logger: logger}
}

// MatchKeywords returns the keywords that occur in text as whole words,
// case-insensitively, preserving the order of the keywords slice.
func MatchKeywords(text string, keywords []string) []string {
	if text == "" || len(keywords) == 0 {
		return nil
	}

	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range keywords {
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
		if err != nil {
			continue
		}
		if pattern.MatchString(lower) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// allKeywords returns all registered keywords in registration order.
func (s *KeywordService) allKeywords() ([]string, error) {
	var rows []models.UserKeyword
	if err := s.DB.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	keywords := make([]string, 0, len(rows))
	for _, r := range rows {
		keywords = append(keywords, r.Keyword)
	}
	return keywords, nil
}

// matchText builds the text a paper is matched against. The document is
// best-effort: without it only the title is searched.
func (s *KeywordService) matchText(ctx context.Context, paper *models.Paper) string {
	text := paper.Title
	doc, err := s.Docs.Load(ctx, paper.PaperID)
	if err != nil {
		s.Logger.Warn("Could not load document for keyword matching",
			zap.String("paper_id", paper.PaperID), zap.Error(err))
		return text
	}
	if doc != nil && doc.AbstractEN != "" {
		text = text + " " + doc.AbstractEN
	}
	return text
}

// UpdatePaperKeywords recomputes the matched keywords for one paper and
// stores them on the row. An empty match clears the cache.
func (s *KeywordService) UpdatePaperKeywords(ctx context.Context, paper *models.Paper) ([]string, error) {
	keywords, err := s.allKeywords()
	if err != nil {
		return nil, err
	}

	matched := MatchKeywords(s.matchText(ctx, paper), keywords)
	encoded := encodeMatched(matched)

	if err := s.DB.Model(paper).Update("matched_keywords", encoded).Error; err != nil {
		return nil, err
	}
	paper.MatchedKeywords = encoded
	return matched, nil
}

// BatchUpdateAllPapers recomputes matches for every paper and returns
// how many rows actually changed.
func (s *KeywordService) BatchUpdateAllPapers(ctx context.Context) (int, error) {
	keywords, err := s.allKeywords()
	if err != nil {
		return 0, err
	}

	var papers []models.Paper
	if err := s.DB.Find(&papers).Error; err != nil {
		return 0, err
	}

	updated := 0
	for i := range papers {
		paper := &papers[i]
		matched := MatchKeywords(s.matchText(ctx, paper), keywords)
		encoded := encodeMatched(matched)
		if encoded == paper.MatchedKeywords {
			continue
		}
		if err := s.DB.Model(paper).Update("matched_keywords", encoded).Error; err != nil {
			return updated, err
		}
		paper.MatchedKeywords = encoded
		updated++
	}
	return updated, nil
}

// DecodeMatched turns the cached JSON column back into a list. Corrupt
// or empty values decode to an empty list.
func DecodeMatched(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var matched []string
	if err := json.Unmarshal([]byte(raw), &matched); err != nil {
		return []string{}
	}
	return matched
}

func encodeMatched(matched []string) string {
	if len(matched) == 0 {
		return ""
	}
	data, err := json.Marshal(matched)
	if err != nil {
		return ""
	}
	return string(data)
}
