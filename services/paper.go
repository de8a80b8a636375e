package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-tracker/config"
	"paper-tracker/models"
	"paper-tracker/providers"
	"paper-tracker/storage"
)

var (
	// ErrPaperNotFound means the paper exists neither locally nor upstream.
	ErrPaperNotFound = errors.New("paper not found")

	// ErrAnalysisInProgress means another enrichment holds the paper's
	// analysis mutex.
	ErrAnalysisInProgress = errors.New("analysis already in progress")
)

// Soft-failure placeholders stored instead of Korean content when an
// enrichment stage cannot produce it. The stage still advances so the
// pipeline never wedges on a single bad paper.
const (
	placeholderNoAbstract     = "(초록을 가져올 수 없습니다.)"
	placeholderSummaryFailed  = "(요약 생성에 실패했습니다.)"
	placeholderAnalysisFailed = "(논문 분석에 실패했습니다.)"
)

// citingFetchFactor controls over-fetching when registering citing
// papers, so already-registered entries can be skipped without running
// short of new ones.
const citingFetchFactor = 3

// PaperService drives the three-stage enrichment pipeline and owns the
// pairing between relational rows and per-paper documents.
type PaperService struct {
	Config *config.Config
	DB     *gorm.DB
	Docs   storage.DocStore
	Logger *zap.Logger

	Metadata      providers.MetadataSource
	Citations     providers.CitationSource
	FastCitations providers.FastCitationSource // optional
	Figures       providers.FigureSource       // optional
	LLM           LLM

	Keywords *KeywordService
}

// BulkItem is one entry of a bulk registration request.
type BulkItem struct {
	PaperID       string `json:"paper_id"`
	CitationCount int    `json:"citation_count"`
}

// BulkResult reports the outcome of a bulk registration.
type BulkResult struct {
	Registered []models.Paper `json:"registered"`
	Skipped    []string       `json:"skipped"`
	Failed     []string       `json:"failed"`
}

// RegisterNewPaper runs stage 1 for one paper. Registration is
// idempotent: an already registered ID returns the existing row
// untouched. With skipCitation the citation lookup is left for the
// nightly sweep.
func (s *PaperService) RegisterNewPaper(ctx context.Context, paperID string, registeredBy string, skipCitation bool) (*models.Paper, error) {
	id := providers.NormalizeID(paperID)
	if id == "" {
		return nil, ErrPaperNotFound
	}
	log := s.Logger.With(zap.String("paper_id", id))

	var existing models.Paper
	err := s.DB.Where("paper_id = ?", id).First(&existing).Error
	if err == nil {
		log.Debug("Paper already registered")
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	info, err := s.Metadata.PaperInfo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	if info == nil {
		return nil, ErrPaperNotFound
	}

	citationCount := 0
	if !skipCitation {
		if count, err := s.Citations.CitationCount(ctx, id); err != nil {
			log.Warn("Citation count fetch failed, using 0", zap.Error(err))
		} else {
			citationCount = count
		}
	}

	figureURL := ""
	if s.Figures != nil {
		if url, err := s.Figures.FirstFigureURL(ctx, id); err != nil {
			log.Warn("Figure fetch failed", zap.Error(err))
		} else {
			figureURL = url
		}
	}

	return s.createPaper(ctx, &models.Paper{
		PaperID:       id,
		Title:         info.Title,
		ArxivDate:     info.ArxivDate,
		SearchStage:   models.StageRegistered,
		CitationCount: citationCount,
		RegisteredBy:  registeredBy,
		FigureURL:     figureURL,
	}, &models.PaperDocument{
		PaperID:       id,
		Title:         info.Title,
		ArxivDate:     info.ArxivDate,
		SearchStage:   models.StageRegistered,
		Authors:       info.Authors,
		AbstractEN:    info.Abstract,
		PDFURL:        info.PDFURL,
		FigureURL:     figureURL,
		CitationCount: citationCount,
	})
}

// createPaper persists the document first and then the row, so a row
// never exists without its document. A failed row create rolls the
// document back.
func (s *PaperService) createPaper(ctx context.Context, paper *models.Paper, doc *models.PaperDocument) (*models.Paper, error) {
	if err := s.Docs.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.DB.Create(paper).Error; err != nil {
		if delErr := s.Docs.Delete(ctx, paper.PaperID); delErr != nil {
			s.Logger.Warn("Orphan document left behind after failed row create",
				zap.String("paper_id", paper.PaperID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create paper row: %w", err)
	}

	if s.Keywords != nil {
		if _, err := s.Keywords.UpdatePaperKeywords(ctx, paper); err != nil {
			s.Logger.Warn("Keyword matching failed after registration",
				zap.String("paper_id", paper.PaperID), zap.Error(err))
		}
	}
	return paper, nil
}

// RegisterCitingPapers registers up to limit papers that cite paperID,
// skipping ones already in the database. Candidates are ordered by
// sortBy ("citationCount" or "publicationDate"). The citation graph is
// over-fetched so skips do not shrink the result. Per-paper failures
// are logged and do not abort the batch.
func (s *PaperService) RegisterCitingPapers(ctx context.Context, paperID string, limit int, sortBy, registeredBy string) ([]models.Paper, error) {
	id := providers.NormalizeID(paperID)
	if limit <= 0 {
		limit = 50
	}
	if sortBy != "publicationDate" {
		sortBy = "citationCount"
	}

	var existingIDs []string
	if err := s.DB.Model(&models.Paper{}).Pluck("paper_id", &existingIDs).Error; err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(existingIDs))
	for _, e := range existingIDs {
		existing[e] = true
	}

	citing, err := s.Citations.CitingPapers(ctx, id, limit*citingFetchFactor, sortBy, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch citing papers: %w", err)
	}
	s.Logger.Info("Fetched citing papers",
		zap.String("paper_id", id), zap.Int("count", len(citing)))

	registered := make([]models.Paper, 0, limit)
	for _, c := range citing {
		if len(registered) >= limit {
			break
		}
		citingID := providers.NormalizeID(c.PaperID)
		if citingID == "" || existing[citingID] {
			continue
		}

		info, err := s.Metadata.PaperInfo(ctx, citingID)
		if err != nil {
			s.Logger.Warn("Metadata fetch failed for citing paper, skipping",
				zap.String("paper_id", citingID), zap.Error(err))
			continue
		}

		paper := models.Paper{
			PaperID:       citingID,
			Title:         c.Title,
			SearchStage:   models.StageRegistered,
			CitationCount: c.CitationCount,
			RegisteredBy:  registeredBy,
		}
		doc := models.PaperDocument{
			PaperID:       citingID,
			Title:         c.Title,
			SearchStage:   models.StageRegistered,
			CitationCount: c.CitationCount,
		}
		if info != nil {
			if info.Title != "" {
				paper.Title = info.Title
				doc.Title = info.Title
			}
			paper.ArxivDate = info.ArxivDate
			doc.ArxivDate = info.ArxivDate
			doc.Authors = info.Authors
			doc.AbstractEN = info.Abstract
			doc.PDFURL = info.PDFURL
		}

		created, err := s.createPaper(ctx, &paper, &doc)
		if err != nil {
			s.Logger.Warn("Could not register citing paper, skipping",
				zap.String("paper_id", citingID), zap.Error(err))
			continue
		}
		registered = append(registered, *created)
		existing[citingID] = true
	}

	s.Logger.Info("Registered citing papers",
		zap.String("paper_id", id), zap.Int("registered", len(registered)))
	return registered, nil
}

// RegisterPapersBulk registers a list of IDs with known citation counts,
// skipping existing papers and collecting failures instead of aborting.
func (s *PaperService) RegisterPapersBulk(ctx context.Context, items []BulkItem, registeredBy string) (*BulkResult, error) {
	result := &BulkResult{
		Registered: []models.Paper{},
		Skipped:    []string{},
		Failed:     []string{},
	}

	for _, item := range items {
		id := providers.NormalizeID(item.PaperID)
		if id == "" {
			result.Failed = append(result.Failed, item.PaperID)
			continue
		}

		var count int64
		if err := s.DB.Model(&models.Paper{}).Where("paper_id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			result.Skipped = append(result.Skipped, id)
			continue
		}

		info, err := s.Metadata.PaperInfo(ctx, id)
		if err != nil || info == nil {
			if err != nil {
				s.Logger.Warn("Bulk registration failed for paper",
					zap.String("paper_id", id), zap.Error(err))
			}
			result.Failed = append(result.Failed, id)
			continue
		}

		paper, err := s.createPaper(ctx, &models.Paper{
			PaperID:       id,
			Title:         info.Title,
			ArxivDate:     info.ArxivDate,
			SearchStage:   models.StageRegistered,
			CitationCount: item.CitationCount,
			RegisteredBy:  registeredBy,
		}, &models.PaperDocument{
			PaperID:       id,
			Title:         info.Title,
			ArxivDate:     info.ArxivDate,
			SearchStage:   models.StageRegistered,
			Authors:       info.Authors,
			AbstractEN:    info.Abstract,
			PDFURL:        info.PDFURL,
			CitationCount: item.CitationCount,
		})
		if err != nil {
			s.Logger.Warn("Bulk registration failed for paper",
				zap.String("paper_id", id), zap.Error(err))
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Registered = append(result.Registered, *paper)
	}
	return result, nil
}

// BeginSimpleSearch acquires the paper's analysis mutex for stage 2.
func (s *PaperService) BeginSimpleSearch(paperID string) (*models.Paper, error) {
	return s.acquire(paperID, models.StatusSimpleAnalyzing)
}

// BeginDeepSearch acquires the paper's analysis mutex for stage 3.
func (s *PaperService) BeginDeepSearch(paperID string) (*models.Paper, error) {
	return s.acquire(paperID, models.StatusDeepAnalyzing)
}

// acquire sets analysis_status with a conditional update so two
// concurrent requests cannot both win.
func (s *PaperService) acquire(paperID, status string) (*models.Paper, error) {
	id := providers.NormalizeID(paperID)

	var paper models.Paper
	if err := s.DB.Where("paper_id = ?", id).First(&paper).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaperNotFound
		}
		return nil, err
	}

	res := s.DB.Model(&models.Paper{}).
		Where("paper_id = ? AND analysis_status IS NULL", id).
		Update("analysis_status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAnalysisInProgress
	}

	paper.AnalysisStatus = &status
	return &paper, nil
}

// clearStatus releases the analysis mutex. Runs on every exit path.
func (s *PaperService) clearStatus(paperID string) {
	if err := s.DB.Model(&models.Paper{}).
		Where("paper_id = ?", paperID).
		Update("analysis_status", nil).Error; err != nil {
		s.Logger.Error("Could not clear analysis status",
			zap.String("paper_id", paperID), zap.Error(err))
	}
}

// RunSimpleSearch performs stage 2: summarize the abstract in Korean.
// The caller must hold the mutex via BeginSimpleSearch. A missing
// abstract or failed summary stores a placeholder and still advances
// the stage.
func (s *PaperService) RunSimpleSearch(ctx context.Context, paperID string) error {
	id := providers.NormalizeID(paperID)
	defer s.clearStatus(id)
	log := s.Logger.With(zap.String("paper_id", id))

	doc, err := s.Docs.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return ErrPaperNotFound
	}

	// Backfill the abstract for papers registered without one.
	if doc.AbstractEN == "" {
		if info, err := s.Metadata.PaperInfo(ctx, id); err != nil {
			log.Warn("Abstract backfill failed", zap.Error(err))
		} else if info != nil {
			doc.AbstractEN = info.Abstract
			if doc.Title == "" {
				doc.Title = info.Title
			}
			if doc.PDFURL == "" {
				doc.PDFURL = info.PDFURL
			}
			if len(doc.Authors) == 0 {
				doc.Authors = info.Authors
			}
		}
	}

	switch {
	case doc.AbstractEN == "":
		doc.AbstractKO = placeholderNoAbstract
	default:
		if summary := s.LLM.SummarizeAbstract(ctx, doc.AbstractEN); summary != "" {
			doc.AbstractKO = summary
		} else {
			doc.AbstractKO = placeholderSummaryFailed
		}
	}

	s.backfillFigure(ctx, id, doc, log)

	if doc.SearchStage < models.StageSimple {
		doc.SearchStage = models.StageSimple
	}
	if err := s.Docs.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	return s.advanceStage(id, models.StageSimple)
}

// RunDeepSearch performs stage 3: the full Korean analysis. The caller
// must hold the mutex via BeginDeepSearch.
func (s *PaperService) RunDeepSearch(ctx context.Context, paperID string) error {
	id := providers.NormalizeID(paperID)
	defer s.clearStatus(id)

	doc, err := s.Docs.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return ErrPaperNotFound
	}

	pdfURL := doc.PDFURL
	if pdfURL == "" {
		pdfURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id)
	}

	analysis := s.LLM.AnalyzePaper(ctx, id, doc.Title, doc.AbstractEN, pdfURL)
	if analysis != "" {
		doc.DetailedAnalysisKO = analysis
	} else {
		doc.DetailedAnalysisKO = placeholderAnalysisFailed
	}

	if doc.SearchStage < models.StageDeep {
		doc.SearchStage = models.StageDeep
	}
	if err := s.Docs.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	return s.advanceStage(id, models.StageDeep)
}

// advanceStage moves search_stage forward, never back.
func (s *PaperService) advanceStage(paperID string, stage int) error {
	return s.DB.Model(&models.Paper{}).
		Where("paper_id = ? AND search_stage < ?", paperID, stage).
		Update("search_stage", stage).Error
}

// backfillFigure fetches a figure URL for papers that have none yet.
func (s *PaperService) backfillFigure(ctx context.Context, paperID string, doc *models.PaperDocument, log *zap.Logger) {
	if s.Figures == nil || doc.FigureURL != "" {
		return
	}
	url, err := s.Figures.FirstFigureURL(ctx, paperID)
	if err != nil {
		log.Warn("Figure backfill failed", zap.Error(err))
		return
	}
	if url == "" {
		return
	}
	doc.FigureURL = url
	if err := s.DB.Model(&models.Paper{}).
		Where("paper_id = ?", paperID).
		Update("figure_url", url).Error; err != nil {
		log.Warn("Could not store figure URL", zap.Error(err))
	}
}

// RefreshCitationCount updates a paper's citation count, trying the
// fast source first and falling back to the citation graph when the
// fast source has nothing useful.
func (s *PaperService) RefreshCitationCount(ctx context.Context, paperID string) (*models.Paper, error) {
	id := providers.NormalizeID(paperID)

	var paper models.Paper
	if err := s.DB.Where("paper_id = ?", id).First(&paper).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaperNotFound
		}
		return nil, err
	}

	count := -1
	if s.FastCitations != nil {
		if fast, err := s.FastCitations.CitationCount(ctx, id); err != nil {
			s.Logger.Debug("Fast citation lookup failed",
				zap.String("paper_id", id), zap.Error(err))
		} else if fast != nil && *fast > 0 {
			count = *fast
		}
	}
	if count < 0 {
		c, err := s.Citations.CitationCount(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch citation count: %w", err)
		}
		count = c
	}

	if err := s.DB.Model(&paper).Update("citation_count", count).Error; err != nil {
		return nil, err
	}
	paper.CitationCount = count
	return &paper, nil
}

// DeletePaper removes the row and its document. A missing document is
// tolerated so deletion can clean up after partial failures.
func (s *PaperService) DeletePaper(ctx context.Context, paperID string) error {
	id := providers.NormalizeID(paperID)

	res := s.DB.Where("paper_id = ?", id).Delete(&models.Paper{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaperNotFound
	}
	if err := s.Docs.Delete(ctx, id); err != nil {
		s.Logger.Warn("Could not delete document",
			zap.String("paper_id", id), zap.Error(err))
	}
	return nil
}

// GetPaperDetail returns the row merged with its document content.
func (s *PaperService) GetPaperDetail(ctx context.Context, paperID string) (*models.Paper, *models.PaperDocument, error) {
	id := providers.NormalizeID(paperID)

	var paper models.Paper
	if err := s.DB.Where("paper_id = ?", id).First(&paper).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPaperNotFound
		}
		return nil, nil, err
	}

	doc, err := s.Docs.Load(ctx, id)
	if err != nil {
		s.Logger.Warn("Could not load document for detail",
			zap.String("paper_id", id), zap.Error(err))
	}
	return &paper, doc, nil
}
