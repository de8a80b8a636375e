package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"paper-tracker/providers"
)

const maxExpandedKeywords = 5

// AISearchService answers natural-language research questions by
// expanding them into search keywords, querying the citation graph and
// re-ranking the hits by relevance.
type AISearchService struct {
	LLM       LLM
	Citations providers.CitationSource
	Logger    *zap.Logger
}

// NewAISearchService creates a new AI search service.
func NewAISearchService(llm LLM, citations providers.CitationSource, logger *zap.Logger) *AISearchService {
	return &AISearchService{LLM: llm, Citations: citations, Logger: logger}
}

// AISearchResult is the full response of one AI search.
type AISearchResult struct {
	Papers           []providers.CitingPaper `json:"papers"`
	ExpandedKeywords []string                `json:"expanded_keywords"`
	SearchIntent     string                  `json:"search_intent"`
	Query            string                  `json:"query"`
}

type queryExpansion struct {
	Keywords     []string `json:"keywords"`
	SearchIntent string   `json:"search_intent"`
}

// Search runs the expand/search/rank pipeline. Expansion and ranking
// degrade gracefully: a failed expansion searches the raw query, a
// failed ranking falls back to citation count order.
func (s *AISearchService) Search(ctx context.Context, query string, limit, yearFrom int) (*AISearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	s.Logger.Info("Starting AI search", zap.String("query", query))

	exp := s.expandQuery(ctx, query)
	s.Logger.Info("Expanded query",
		zap.Strings("keywords", exp.Keywords), zap.String("intent", exp.SearchIntent))

	perKeyword := limit
	if perKeyword < 30 {
		perKeyword = 30
	}
	papers := s.multiKeywordSearch(ctx, exp.Keywords, perKeyword, yearFrom)
	s.Logger.Info("Collected search hits", zap.Int("count", len(papers)))

	ranked := s.rankByRelevance(ctx, query, exp.SearchIntent, papers, limit)

	return &AISearchResult{
		Papers:           ranked,
		ExpandedKeywords: exp.Keywords,
		SearchIntent:     exp.SearchIntent,
		Query:            query,
	}, nil
}

// expandQuery asks the model for academic search keywords. On failure
// the raw query becomes the single keyword.
func (s *AISearchService) expandQuery(ctx context.Context, query string) queryExpansion {
	prompt := fmt.Sprintf(`당신은 로봇 공학 및 AI 분야의 논문 검색 전문가입니다.

사용자의 연구 질문:
"%s"

위 질문을 분석하여:
1. 사용자가 찾고자 하는 핵심 연구 주제를 파악하세요
2. 해당 주제에 관련된 영어 학술 검색 키워드 3-5개를 생성하세요
3. 키워드는 학술 검색 API에 적합한 형태여야 합니다
4. 일반적인 키워드와 구체적인 키워드를 섞어주세요

응답 형식 (JSON만, 다른 설명 없이):
{"keywords": ["keyword1", "keyword2", "keyword3"], "search_intent": "사용자가 찾고자 하는 것에 대한 1줄 요약"}`, query)

	var exp queryExpansion
	if raw := s.LLM.Complete(ctx, prompt); raw != "" {
		if data := extractJSON(raw); data != nil {
			if err := json.Unmarshal(data, &exp); err == nil && len(exp.Keywords) > 0 {
				if len(exp.Keywords) > maxExpandedKeywords {
					exp.Keywords = exp.Keywords[:maxExpandedKeywords]
				}
				return exp
			}
		}
	}

	s.Logger.Warn("Query expansion failed, using raw query")
	return queryExpansion{Keywords: []string{query}, SearchIntent: query}
}

// multiKeywordSearch queries the citation graph per keyword and merges
// the hits, deduplicated by paper ID. Per-keyword failures are skipped.
func (s *AISearchService) multiKeywordSearch(ctx context.Context, keywords []string, perKeyword, yearFrom int) []providers.CitingPaper {
	seen := make(map[string]bool)
	var merged []providers.CitingPaper

	for _, kw := range keywords {
		hits, err := s.Citations.SearchByTopic(ctx, kw, perKeyword, "citationCount", yearFrom)
		if err != nil {
			s.Logger.Warn("Topic search failed for keyword",
				zap.String("keyword", kw), zap.Error(err))
			continue
		}
		for _, h := range hits {
			if h.PaperID == "" || seen[h.PaperID] {
				continue
			}
			seen[h.PaperID] = true
			merged = append(merged, h)
		}
	}
	return merged
}

type rankedEntry struct {
	PaperID string `json:"paper_id"`
	Score   int    `json:"score"`
}

// rankByRelevance asks the model to score the top hits against the
// query. With few hits or a failed ranking it sorts by citation count.
func (s *AISearchService) rankByRelevance(ctx context.Context, query, intent string, papers []providers.CitingPaper, limit int) []providers.CitingPaper {
	if len(papers) <= limit {
		return papers
	}

	candidates := papers
	if len(candidates) > 30 {
		candidates = candidates[:30]
	}

	var list strings.Builder
	for i, p := range candidates {
		abstract := p.Abstract
		if len(abstract) > 300 {
			abstract = abstract[:300] + "..."
		}
		fmt.Fprintf(&list, "%d. ID: %s\n   제목: %s\n   초록: %s\n\n", i+1, p.PaperID, p.Title, abstract)
	}

	prompt := fmt.Sprintf(`사용자의 연구 질문:
"%s"

검색 의도: %s

다음 논문들을 사용자의 검색 의도와의 관련성으로 평가해주세요.
각 논문의 제목과 초록을 보고 1-10점 점수를 매기세요.

논문 목록:
%s

응답 형식 (JSON만, 다른 설명 없이):
{"ranked": [{"paper_id": "xxx", "score": 9}]}`, query, intent, list.String())

	if raw := s.LLM.Complete(ctx, prompt); raw != "" {
		if data := extractJSON(raw); data != nil {
			var parsed struct {
				Ranked []rankedEntry `json:"ranked"`
			}
			if err := json.Unmarshal(data, &parsed); err == nil && len(parsed.Ranked) > 0 {
				scores := make(map[string]int, len(parsed.Ranked))
				for _, r := range parsed.Ranked {
					scores[r.PaperID] = r.Score
				}
				sort.SliceStable(candidates, func(i, j int) bool {
					return scores[candidates[i].PaperID] > scores[candidates[j].PaperID]
				})
				if len(candidates) > limit {
					candidates = candidates[:limit]
				}
				return candidates
			}
		}
	}

	s.Logger.Warn("Relevance ranking failed, sorting by citation count")
	sort.SliceStable(papers, func(i, j int) bool {
		return papers[i].CitationCount > papers[j].CitationCount
	})
	if len(papers) > limit {
		papers = papers[:limit]
	}
	return papers
}

var (
	jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	jsonBraceRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON digs a JSON object out of a model response: the whole
// text, a fenced code block, or the outermost brace pair.
func extractJSON(text string) []byte {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed)
	}
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		if json.Valid([]byte(m[1])) {
			return []byte(m[1])
		}
	}
	if m := jsonBraceRe.FindString(text); m != "" {
		if json.Valid([]byte(m)) {
			return []byte(m)
		}
	}
	return nil
}
