package services

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"paper-tracker/models"
	"paper-tracker/storage"
)

func TestMatchKeywordsWholeWords(t *testing.T) {
	keywords := []string{"GAN", "robot", "diffusion model"}

	matched := MatchKeywords("A survey of GAN architectures for robots", keywords)
	if len(matched) != 1 || matched[0] != "GAN" {
		t.Fatalf("expected [GAN], got %v", matched)
	}

	// "organ" must not match "GAN", substrings don't count.
	if m := MatchKeywords("pipe organ music generation", keywords); len(m) != 0 {
		t.Fatalf("expected no match on substring, got %v", m)
	}

	// Case-insensitive, multi-word keywords match as phrases.
	matched = MatchKeywords("We train a Diffusion Model on robot data", keywords)
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %v", matched)
	}
}

func TestMatchKeywordsPreservesOrder(t *testing.T) {
	keywords := []string{"transformer", "attention", "BERT"}
	matched := MatchKeywords("BERT uses attention inside a transformer", keywords)
	if len(matched) != 3 {
		t.Fatalf("expected 3 matches, got %v", matched)
	}
	for i, want := range keywords {
		if matched[i] != want {
			t.Fatalf("expected keyword order preserved, got %v", matched)
		}
	}
}

func TestMatchKeywordsEmptyInputs(t *testing.T) {
	if m := MatchKeywords("", []string{"a"}); m != nil {
		t.Fatalf("expected nil for empty text, got %v", m)
	}
	if m := MatchKeywords("some text", nil); m != nil {
		t.Fatalf("expected nil for no keywords, got %v", m)
	}
}

func TestDecodeMatched(t *testing.T) {
	if m := DecodeMatched(""); len(m) != 0 {
		t.Fatalf("expected empty list, got %v", m)
	}
	if m := DecodeMatched("not json"); len(m) != 0 {
		t.Fatalf("expected empty list for corrupt value, got %v", m)
	}
	m := DecodeMatched(`["GAN","robot"]`)
	if len(m) != 2 || m[0] != "GAN" {
		t.Fatalf("unexpected decode result: %v", m)
	}
}

func newKeywordTestService(t *testing.T) *KeywordService {
	t.Helper()
	db := newTestDB(t)
	docs, err := storage.NewFileStore(filepath.Join(t.TempDir(), "papers"))
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	return NewKeywordService(db, docs, zap.NewNop())
}

func TestUpdatePaperKeywordsUsesTitleAndAbstract(t *testing.T) {
	svc := newKeywordTestService(t)
	ctx := context.Background()

	svc.DB.Create(&models.UserKeyword{Keyword: "imitation"})
	svc.DB.Create(&models.UserKeyword{Keyword: "diffusion"})

	paper := models.Paper{PaperID: "2306.02437", Title: "Diffusion Policies"}
	svc.DB.Create(&paper)
	svc.Docs.Save(ctx, &models.PaperDocument{
		PaperID:    "2306.02437",
		AbstractEN: "We study imitation learning.",
	})

	matched, err := svc.UpdatePaperKeywords(ctx, &paper)
	if err != nil {
		t.Fatalf("UpdatePaperKeywords returned error: %v", err)
	}
	// Registration order, not match position, decides the list order.
	if len(matched) != 2 || matched[0] != "imitation" || matched[1] != "diffusion" {
		t.Fatalf("unexpected matches: %v", matched)
	}

	var row models.Paper
	svc.DB.Where("paper_id = ?", "2306.02437").First(&row)
	if got := DecodeMatched(row.MatchedKeywords); len(got) != 2 {
		t.Fatalf("expected cached matches on the row, got %v", got)
	}
}

func TestUpdatePaperKeywordsClearsWhenNothingMatches(t *testing.T) {
	svc := newKeywordTestService(t)
	ctx := context.Background()

	svc.DB.Create(&models.UserKeyword{Keyword: "quantum"})

	paper := models.Paper{PaperID: "2306.02437", Title: "Diffusion Policies", MatchedKeywords: `["stale"]`}
	svc.DB.Create(&paper)

	matched, err := svc.UpdatePaperKeywords(ctx, &paper)
	if err != nil {
		t.Fatalf("UpdatePaperKeywords returned error: %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("expected no matches, got %v", matched)
	}

	var row models.Paper
	svc.DB.Where("paper_id = ?", "2306.02437").First(&row)
	if row.MatchedKeywords != "" {
		t.Fatalf("expected stale cache cleared, got %q", row.MatchedKeywords)
	}
}

func TestUpdatePaperKeywordsTitleOnlyWithoutDocument(t *testing.T) {
	svc := newKeywordTestService(t)
	ctx := context.Background()

	svc.DB.Create(&models.UserKeyword{Keyword: "diffusion"})

	paper := models.Paper{PaperID: "2306.02437", Title: "Diffusion Policies"}
	svc.DB.Create(&paper)

	matched, err := svc.UpdatePaperKeywords(ctx, &paper)
	if err != nil {
		t.Fatalf("UpdatePaperKeywords returned error: %v", err)
	}
	if len(matched) != 1 || matched[0] != "diffusion" {
		t.Fatalf("expected title-only match, got %v", matched)
	}
}

func TestBatchUpdateAllPapersCountsOnlyChanges(t *testing.T) {
	svc := newKeywordTestService(t)
	ctx := context.Background()

	svc.DB.Create(&models.UserKeyword{Keyword: "robot"})
	svc.DB.Create(&models.Paper{PaperID: "p1", Title: "Robot learning"})
	svc.DB.Create(&models.Paper{PaperID: "p2", Title: "Unrelated work"})

	updated, err := svc.BatchUpdateAllPapers(ctx)
	if err != nil {
		t.Fatalf("BatchUpdateAllPapers returned error: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 changed paper, got %d", updated)
	}

	// A second pass finds everything already up to date.
	updated, err = svc.BatchUpdateAllPapers(ctx)
	if err != nil {
		t.Fatalf("second batch update returned error: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected 0 changes on second pass, got %d", updated)
	}
}
