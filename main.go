package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paper-tracker/config"
	"paper-tracker/models"
	"paper-tracker/providers"
	"paper-tracker/providers/ar5iv"
	"paper-tracker/providers/arxiv"
	"paper-tracker/providers/huggingface"
	"paper-tracker/providers/openalex"
	"paper-tracker/providers/semanticscholar"
	"paper-tracker/services"
	"paper-tracker/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	papersRegisteredCounter prometheus.Counter
	enrichmentsRunCounter   *prometheus.CounterVec
)

func init() {
	papersRegisteredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "papers_registered_total",
			Help: "Total number of papers registered.",
		},
	)
	enrichmentsRunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichments_run_total",
			Help: "Total number of enrichment runs by stage.",
		},
		[]string{"stage"},
	)
	prometheus.MustRegister(papersRegisteredCounter, enrichmentsRunCounter)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Admin-Password")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// adminAuthMiddleware guards admin-only endpoints via X-Admin-Password.
// An unset ADMIN_PASSWORD disables the check.
func adminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AdminPassword == "" {
			c.Next()
			return
		}
		password := c.GetHeader("X-Admin-Password")
		if password != cfg.AdminPassword {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin authentication required"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Paper{}, &models.UserKeyword{}, &models.User{}, &models.AccessLog{}, &models.UserFavorite{})

	// Document store backend
	var docs storage.DocStore
	switch cfg.DocStoreBackend {
	case "s3":
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		docs = storage.NewS3Store(s3Client, cfg.DocS3Bucket)
		logging.Info("Using S3 document store", zap.String("bucket", cfg.DocS3Bucket))
	default:
		fileStore, err := storage.NewFileStore(cfg.PapersDir)
		if err != nil {
			logging.Fatal("File store creation failed", zap.Error(err))
		}
		docs = fileStore
		logging.Info("Using local document store", zap.String("dir", cfg.PapersDir))
	}

	// Providers
	arxivFetcher := arxiv.NewFetcher(cfg, logging)
	semanticFetcher := semanticscholar.NewFetcher(cfg, logging)
	openalexFetcher := openalex.NewFetcher(cfg, logging)
	ar5ivFetcher := ar5iv.NewFetcher(cfg, logging)
	hfFetcher := huggingface.NewFetcher(cfg, logging)

	// Services
	claude := services.NewClaudeCLI(cfg, logging)
	keywordService := services.NewKeywordService(db, docs, logging)
	paperService := &services.PaperService{
		Config:        cfg,
		DB:            db,
		Docs:          docs,
		Logger:        logging,
		Metadata:      arxivFetcher,
		Citations:     semanticFetcher,
		FastCitations: openalexFetcher,
		Figures:       ar5ivFetcher,
		LLM:           claude,
		Keywords:      keywordService,
	}
	aiSearchService := services.NewAISearchService(claude, semanticFetcher, logging)

	// Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Paper Tracker API"})
	})

	setupPaperRoutes(router, db, paperService, logging)
	setupFavoriteRoutes(router, db, logging)
	setupRegistrationRoutes(router, paperService, logging)
	setupSearchRoutes(router, paperService, logging)
	setupTrendingRoutes(router, hfFetcher, logging)
	setupKeywordRoutes(router, db, keywordService, logging)
	setupTopicSearchRoutes(router, db, semanticFetcher, aiSearchService, logging)
	setupAccessLogRoutes(router, db, cfg, logging)

	// Nightly citation refresh
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled citation refresh...")
		refreshAllCitations(db, paperService, logging)
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// refreshAllCitations walks every paper and refreshes its citation
// count, with a short pause between papers to stay under rate limits.
func refreshAllCitations(db *gorm.DB, paperService *services.PaperService, log *zap.Logger) {
	var paperIDs []string
	if err := db.Model(&models.Paper{}).Pluck("paper_id", &paperIDs).Error; err != nil {
		log.Error("Citation refresh could not list papers", zap.Error(err))
		return
	}
	updated := 0
	for _, id := range paperIDs {
		if _, err := paperService.RefreshCitationCount(context.Background(), id); err != nil {
			log.Warn("Citation refresh failed for paper", zap.String("paper_id", id), zap.Error(err))
		} else {
			updated++
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Info("Citation refresh completed", zap.Int("total", len(paperIDs)), zap.Int("updated", updated))
}

// paperDetailResponse merges the relational row with its document.
func paperDetailResponse(paper *models.Paper, doc *models.PaperDocument) gin.H {
	resp := gin.H{
		"id":                paper.ID,
		"paper_id":          paper.PaperID,
		"title":             paper.Title,
		"arxiv_date":        paper.ArxivDate,
		"search_stage":      paper.SearchStage,
		"analysis_status":   paper.AnalysisStatus,
		"is_favorite":       paper.IsFavorite,
		"is_not_interested": paper.IsNotInterested,
		"citation_count":    paper.CitationCount,
		"registered_by":     paper.RegisteredBy,
		"figure_url":        paper.FigureURL,
		"matched_keywords":  services.DecodeMatched(paper.MatchedKeywords),
		"created_at":        paper.CreatedAt,
		"updated_at":        paper.UpdatedAt,
	}
	if doc != nil {
		resp["authors"] = doc.Authors
		resp["abstract_en"] = doc.AbstractEN
		resp["abstract_ko"] = doc.AbstractKO
		resp["detailed_analysis_ko"] = doc.DetailedAnalysisKO
		resp["pdf_url"] = doc.PDFURL
		if doc.FigureURL != "" {
			resp["figure_url"] = doc.FigureURL
		}
	}
	return resp
}

func setupPaperRoutes(router *gin.Engine, db *gorm.DB, paperService *services.PaperService, log *zap.Logger) {
	rg := router.Group("/api/papers")

	rg.GET("", func(c *gin.Context) {
		query := db.Model(&models.Paper{})

		if stage := c.Query("stage"); stage != "" {
			query = query.Where("search_stage = ?", stage)
		}
		if favorite := c.Query("favorite"); favorite != "" {
			query = query.Where("is_favorite = ?", favorite == "true")
		}
		if notInterested := c.Query("not_interested"); notInterested != "" {
			query = query.Where("is_not_interested = ?", notInterested == "true")
		} else if c.DefaultQuery("hide_not_interested", "true") == "true" {
			query = query.Where("is_not_interested = ?", false)
		}
		if keyword := c.Query("keyword"); keyword != "" {
			query = query.Where("LOWER(title) LIKE LOWER(?)", "%"+keyword+"%")
		}
		if registeredBy := c.Query("registered_by"); registeredBy != "" {
			query = query.Where("registered_by = ?", registeredBy)
		}
		// The cache is a JSON list, so match the quoted element to keep
		// "GAN" from matching a cached "StyleGAN".
		if matched := c.Query("matched_keyword"); matched != "" {
			query = query.Where("LOWER(matched_keywords) LIKE LOWER(?)", `%"`+matched+`"%`)
		}
		if category := c.Query("category"); category != "" {
			var kws []string
			if err := db.Model(&models.UserKeyword{}).
				Where("category = ?", category).
				Pluck("keyword", &kws).Error; err != nil {
				log.Error("Category keyword lookup failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
			if len(kws) == 0 {
				c.JSON(http.StatusOK, gin.H{"papers": []models.Paper{}, "total": 0})
				return
			}
			cond := db.Where("LOWER(matched_keywords) LIKE LOWER(?)", `%"`+kws[0]+`"%`)
			for _, kw := range kws[1:] {
				cond = cond.Or("LOWER(matched_keywords) LIKE LOWER(?)", `%"`+kw+`"%`)
			}
			query = query.Where(cond)
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			log.Error("Paper count failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		sortBy := "created_at desc"
		switch c.Query("sort") {
		case "citation_count":
			sortBy = "citation_count desc"
		case "arxiv_date":
			sortBy = "arxiv_date desc"
		case "stage":
			sortBy = "search_stage desc, created_at desc"
		}

		skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if limit < 1 || limit > 500 {
			limit = 100
		}

		var papers []models.Paper
		if err := query.Order(sortBy).Offset(skip).Limit(limit).Find(&papers).Error; err != nil {
			log.Error("Paper list query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"papers": papers, "total": total})
	})

	rg.GET("/:paper_id", func(c *gin.Context) {
		paper, doc, err := paperService.GetPaperDetail(c.Request.Context(), c.Param("paper_id"))
		if err != nil {
			if errors.Is(err, services.ErrPaperNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			log.Error("Paper detail failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, paperDetailResponse(paper, doc))
	})

	toggle := func(column string) gin.HandlerFunc {
		return func(c *gin.Context) {
			id := providers.NormalizeID(c.Param("paper_id"))
			var paper models.Paper
			if err := db.Where("paper_id = ?", id).First(&paper).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}

			var current bool
			if column == "is_favorite" {
				current = paper.IsFavorite
			} else {
				current = paper.IsNotInterested
			}
			if err := db.Model(&paper).Update(column, !current).Error; err != nil {
				log.Error("Toggle failed", zap.String("column", column), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
			db.Where("paper_id = ?", id).First(&paper)
			c.JSON(http.StatusOK, paper)
		}
	}
	rg.PATCH("/:paper_id/favorite", toggle("is_favorite"))
	rg.PATCH("/:paper_id/not-interested", toggle("is_not_interested"))

	rg.PATCH("/:paper_id/update-citation", func(c *gin.Context) {
		paper, err := paperService.RefreshCitationCount(c.Request.Context(), c.Param("paper_id"))
		if err != nil {
			if errors.Is(err, services.ErrPaperNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			log.Error("Citation refresh failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "citation update failed"})
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.DELETE("/:paper_id", func(c *gin.Context) {
		if err := paperService.DeletePaper(c.Request.Context(), c.Param("paper_id")); err != nil {
			if errors.Is(err, services.ErrPaperNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			log.Error("Paper deletion failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "deletion failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "paper deleted"})
	})
}

// setupFavoriteRoutes serves per-user favorites, separate from the
// global is_favorite flag on the paper row.
func setupFavoriteRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/api/favorites")

	rg.GET("/:username", func(c *gin.Context) {
		var favorites []models.UserFavorite
		if err := db.Where("username = ?", c.Param("username")).
			Order("created_at desc").Find(&favorites).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		ids := make([]string, 0, len(favorites))
		for _, f := range favorites {
			ids = append(ids, f.PaperID)
		}
		var papers []models.Paper
		if len(ids) > 0 {
			if err := db.Where("paper_id IN ?", ids).Find(&papers).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"papers": papers, "total": len(papers)})
	})

	rg.POST("", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			PaperID  string `json:"paper_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and paper_id are required"})
			return
		}
		id := providers.NormalizeID(req.PaperID)

		var paper models.Paper
		if err := db.Where("paper_id = ?", id).First(&paper).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var count int64
		db.Model(&models.UserFavorite{}).
			Where("username = ? AND paper_id = ?", req.Username, id).
			Count(&count)
		if count > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "already a favorite"})
			return
		}

		favorite := models.UserFavorite{Username: req.Username, PaperID: id}
		if err := db.Create(&favorite).Error; err != nil {
			log.Error("Favorite creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, favorite)
	})

	rg.DELETE("/:username/:paper_id", func(c *gin.Context) {
		id := providers.NormalizeID(c.Param("paper_id"))
		res := db.Where("username = ? AND paper_id = ?", c.Param("username"), id).
			Delete(&models.UserFavorite{})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "favorite not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "favorite removed"})
	})
}

func setupRegistrationRoutes(router *gin.Engine, paperService *services.PaperService, log *zap.Logger) {
	rg := router.Group("/api/register")

	rg.POST("/new", func(c *gin.Context) {
		var req struct {
			PaperID      string `json:"paper_id" binding:"required"`
			RegisteredBy string `json:"registered_by"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paper_id is required"})
			return
		}

		// Citation count is skipped here to stay under external rate
		// limits; the nightly sweep fills it in.
		paper, err := paperService.RegisterNewPaper(c.Request.Context(), req.PaperID, req.RegisteredBy, true)
		if err != nil {
			if errors.Is(err, services.ErrPaperNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found on arXiv"})
				return
			}
			log.Error("Paper registration failed", zap.String("paper_id", req.PaperID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "registration failed"})
			return
		}
		papersRegisteredCounter.Inc()
		c.JSON(http.StatusOK, paper)
	})

	rg.POST("/citations", func(c *gin.Context) {
		var req struct {
			PaperID      string `json:"paper_id" binding:"required"`
			Limit        int    `json:"limit"`
			Sort         string `json:"sort"`
			RegisteredBy string `json:"registered_by"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paper_id is required"})
			return
		}

		papers, err := paperService.RegisterCitingPapers(c.Request.Context(), req.PaperID, req.Limit, req.Sort, req.RegisteredBy)
		if err != nil {
			log.Error("Citing paper registration failed", zap.String("paper_id", req.PaperID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "registration failed"})
			return
		}
		papersRegisteredCounter.Add(float64(len(papers)))
		c.JSON(http.StatusOK, papers)
	})

	rg.POST("/bulk", func(c *gin.Context) {
		var req struct {
			Papers       []services.BulkItem `json:"papers" binding:"required"`
			RegisteredBy string              `json:"registered_by"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "papers list is required"})
			return
		}

		result, err := paperService.RegisterPapersBulk(c.Request.Context(), req.Papers, req.RegisteredBy)
		if err != nil {
			log.Error("Bulk registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk registration failed"})
			return
		}
		papersRegisteredCounter.Add(float64(len(result.Registered)))
		c.JSON(http.StatusOK, result)
	})
}

func setupSearchRoutes(router *gin.Engine, paperService *services.PaperService, log *zap.Logger) {
	rg := router.Group("/api/search")

	trigger := func(stage string, begin func(string) (*models.Paper, error), run func(context.Context, string) error) gin.HandlerFunc {
		return func(c *gin.Context) {
			paperID := c.Param("paper_id")

			paper, err := begin(paperID)
			if err != nil {
				switch {
				case errors.Is(err, services.ErrPaperNotFound):
					c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				case errors.Is(err, services.ErrAnalysisInProgress):
					c.JSON(http.StatusConflict, gin.H{"error": "analysis already in progress"})
				default:
					log.Error("Could not start analysis", zap.String("paper_id", paperID), zap.Error(err))
					c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				}
				return
			}

			go func() {
				if err := run(context.Background(), paper.PaperID); err != nil {
					log.Error("Async analysis failed",
						zap.String("stage", stage), zap.String("paper_id", paper.PaperID), zap.Error(err))
				} else {
					enrichmentsRunCounter.WithLabelValues(stage).Inc()
				}
			}()

			c.JSON(http.StatusAccepted, gin.H{
				"message":  "analysis started",
				"paper_id": paper.PaperID,
				"stage":    stage,
			})
		}
	}

	rg.POST("/simple/:paper_id", trigger("simple", paperService.BeginSimpleSearch, paperService.RunSimpleSearch))
	rg.POST("/deep/:paper_id", trigger("deep", paperService.BeginDeepSearch, paperService.RunDeepSearch))
}

func setupTrendingRoutes(router *gin.Engine, hf *huggingface.Fetcher, log *zap.Logger) {
	rg := router.Group("/api/trending")

	rg.GET("/daily", func(c *gin.Context) {
		var targetDate time.Time
		if raw := c.Query("date"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
				return
			}
			targetDate = parsed
		}
		period := c.DefaultQuery("period", "day")

		papers, err := hf.DailyPapers(c.Request.Context(), targetDate, period)
		if err != nil {
			log.Error("Trending papers fetch failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "trending papers unavailable"})
			return
		}

		resultDate := targetDate
		if resultDate.IsZero() {
			resultDate = time.Now().UTC()
		}
		c.JSON(http.StatusOK, gin.H{
			"papers": papers,
			"date":   resultDate.Format("2006-01-02"),
			"total":  len(papers),
			"period": period,
		})
	})
}

func setupKeywordRoutes(router *gin.Engine, db *gorm.DB, keywordService *services.KeywordService, log *zap.Logger) {
	rg := router.Group("/api/keywords")

	rematch := func() {
		go func() {
			if count, err := keywordService.BatchUpdateAllPapers(context.Background()); err != nil {
				log.Error("Keyword rematch failed", zap.Error(err))
			} else {
				log.Info("Keyword rematch completed", zap.Int("updated", count))
			}
		}()
	}

	categories := func() []string {
		var cats []string
		db.Model(&models.UserKeyword{}).
			Distinct("category").
			Where("category IS NOT NULL").
			Order("category").
			Pluck("category", &cats)
		return cats
	}

	rg.GET("/categories", func(c *gin.Context) {
		c.JSON(http.StatusOK, categories())
	})

	rg.GET("", func(c *gin.Context) {
		var keywords []models.UserKeyword
		if err := db.Order("category, keyword").Find(&keywords).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"keywords":   keywords,
			"total":      len(keywords),
			"categories": categories(),
		})
	})

	type keywordInput struct {
		Keyword  string  `json:"keyword" binding:"required"`
		Category *string `json:"category"`
		Color    string  `json:"color"`
	}

	// duplicateExists checks the (keyword, category) pair
	// case-insensitively, excluding excludeID.
	duplicateExists := func(input keywordInput, excludeID uint) (bool, error) {
		query := db.Model(&models.UserKeyword{}).
			Where("LOWER(keyword) = LOWER(?)", strings.TrimSpace(input.Keyword))
		if input.Category != nil && strings.TrimSpace(*input.Category) != "" {
			query = query.Where("category = ?", strings.TrimSpace(*input.Category))
		} else {
			query = query.Where("category IS NULL")
		}
		if excludeID > 0 {
			query = query.Where("id <> ?", excludeID)
		}
		var count int64
		err := query.Count(&count).Error
		return count > 0, err
	}

	normalizeCategory := func(category *string) *string {
		if category == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*category)
		if trimmed == "" {
			return nil
		}
		return &trimmed
	}

	rg.POST("", func(c *gin.Context) {
		var input keywordInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
			return
		}

		dup, err := duplicateExists(input, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if dup {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keyword already exists in this category"})
			return
		}

		keyword := models.UserKeyword{
			Keyword:  strings.TrimSpace(input.Keyword),
			Category: normalizeCategory(input.Category),
		}
		if input.Color != "" {
			keyword.Color = input.Color
		}
		if err := db.Create(&keyword).Error; err != nil {
			log.Error("Keyword creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create keyword"})
			return
		}
		rematch()
		c.JSON(http.StatusOK, keyword)
	})

	rg.PATCH("/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid keyword id"})
			return
		}
		var keyword models.UserKeyword
		if err := db.First(&keyword, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "keyword not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var input keywordInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
			return
		}

		dup, err := duplicateExists(input, keyword.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if dup {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keyword already exists in this category"})
			return
		}

		keyword.Keyword = strings.TrimSpace(input.Keyword)
		keyword.Category = normalizeCategory(input.Category)
		if input.Color != "" {
			keyword.Color = input.Color
		}
		if err := db.Save(&keyword).Error; err != nil {
			log.Error("Keyword update failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update keyword"})
			return
		}
		rematch()
		c.JSON(http.StatusOK, keyword)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid keyword id"})
			return
		}
		res := db.Delete(&models.UserKeyword{}, id)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "keyword not found"})
			return
		}
		rematch()
		c.JSON(http.StatusOK, gin.H{"message": "keyword deleted"})
	})

	rg.POST("/batch-update", func(c *gin.Context) {
		count, err := keywordService.BatchUpdateAllPapers(c.Request.Context())
		if err != nil {
			log.Error("Keyword batch update failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "batch update failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "papers updated", "count": count})
	})
}

// searchResultPaper is one entry of a topic/citation/AI search response,
// annotated with local registration state.
type searchResultPaper struct {
	PaperID           string   `json:"paper_id"`
	Title             string   `json:"title"`
	Authors           []string `json:"authors,omitempty"`
	Year              int      `json:"year,omitempty"`
	CitationCount     int      `json:"citation_count"`
	Abstract          string   `json:"abstract,omitempty"`
	AlreadyRegistered bool     `json:"already_registered"`
}

// annotateSearchResults marks hits already in the database and drops
// ones flagged not-interested.
func annotateSearchResults(db *gorm.DB, hits []providers.CitingPaper, log *zap.Logger) []searchResultPaper {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, providers.NormalizeID(h.PaperID))
	}

	existing := make(map[string]bool)
	notInterested := make(map[string]bool)
	if len(ids) > 0 {
		var rows []models.Paper
		if err := db.Select("paper_id, is_not_interested").Where("paper_id IN ?", ids).Find(&rows).Error; err != nil {
			log.Warn("Could not check registration state of search hits", zap.Error(err))
		}
		for _, r := range rows {
			existing[r.PaperID] = true
			if r.IsNotInterested {
				notInterested[r.PaperID] = true
			}
		}
	}

	results := make([]searchResultPaper, 0, len(hits))
	for _, h := range hits {
		id := providers.NormalizeID(h.PaperID)
		if notInterested[id] {
			continue
		}
		results = append(results, searchResultPaper{
			PaperID:           id,
			Title:             h.Title,
			Authors:           h.Authors,
			Year:              h.Year,
			CitationCount:     h.CitationCount,
			Abstract:          h.Abstract,
			AlreadyRegistered: existing[id],
		})
	}
	return results
}

func setupTopicSearchRoutes(router *gin.Engine, db *gorm.DB, citations providers.CitationSource, aiSearch *services.AISearchService, log *zap.Logger) {
	rg := router.Group("/api/topic-search")

	parseLimit := func(c *gin.Context, def int) int {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
		if limit < 1 || limit > 100 {
			limit = def
		}
		return limit
	}

	rg.GET("", func(c *gin.Context) {
		query := c.Query("query")
		if len(query) < 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query must be at least 2 characters"})
			return
		}
		limit := parseLimit(c, 50)
		sortBy := c.DefaultQuery("sort", "publicationDate")
		yearFrom, _ := strconv.Atoi(c.Query("year_from"))

		hits, err := citations.SearchByTopic(c.Request.Context(), query, limit, sortBy, yearFrom)
		if err != nil {
			log.Error("Topic search failed", zap.String("query", query), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "topic search failed"})
			return
		}

		results := annotateSearchResults(db, hits, log)
		c.JSON(http.StatusOK, gin.H{"papers": results, "total": len(results), "query": query})
	})

	rg.GET("/citations-preview", func(c *gin.Context) {
		paperID := c.Query("paper_id")
		if paperID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paper_id is required"})
			return
		}
		limit := parseLimit(c, 50)
		sortBy := c.DefaultQuery("sort", "citationCount")
		yearFrom, _ := strconv.Atoi(c.Query("year_from"))

		hits, err := citations.CitingPapers(c.Request.Context(), providers.NormalizeID(paperID), limit, sortBy, yearFrom)
		if err != nil {
			log.Error("Citations preview failed", zap.String("paper_id", paperID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "citations preview failed"})
			return
		}

		results := annotateSearchResults(db, hits, log)
		c.JSON(http.StatusOK, gin.H{
			"papers": results,
			"total":  len(results),
			"query":  "Citations of " + providers.NormalizeID(paperID),
		})
	})

	rg.POST("/ai-search", func(c *gin.Context) {
		var req struct {
			Query    string `json:"query" binding:"required"`
			Limit    int    `json:"limit"`
			YearFrom int    `json:"year_from"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}

		result, err := aiSearch.Search(c.Request.Context(), req.Query, req.Limit, req.YearFrom)
		if err != nil {
			log.Error("AI search failed", zap.String("query", req.Query), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "AI search failed"})
			return
		}

		results := annotateSearchResults(db, result.Papers, log)
		c.JSON(http.StatusOK, gin.H{
			"papers":            results,
			"total":             len(results),
			"query":             result.Query,
			"expanded_keywords": result.ExpandedKeywords,
			"search_intent":     result.SearchIntent,
		})
	})
}

func setupAccessLogRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/api/access-logs")
	admin := adminAuthMiddleware(cfg)

	rg.POST("/verify-admin", func(c *gin.Context) {
		var req struct {
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Password != cfg.AdminPassword {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rg.POST("/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
			return
		}

		// First login auto-registers the user.
		var user models.User
		err := db.Where("username = ?", req.Username).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{Username: req.Username, IsActive: true}
			if err := db.Create(&user).Error; err != nil {
				log.Error("User auto-registration failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		entry := models.AccessLog{
			Username:  req.Username,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if err := db.Create(&entry).Error; err != nil {
			log.Error("Access log write failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"login_time": entry.LoginTime,
			"username":   entry.Username,
		})
	})

	rg.GET("/logs", admin, func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		query := db.Model(&models.AccessLog{})
		if username := c.Query("username"); username != "" {
			query = query.Where("username = ?", username)
		}
		var logs []models.AccessLog
		if err := query.Order("login_time desc").Limit(limit).Find(&logs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, logs)
	})

	rg.GET("/users", func(c *gin.Context) {
		var usernames []string
		if err := db.Model(&models.User{}).
			Where("is_active = ?", true).
			Order("username").
			Pluck("username", &usernames).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, usernames)
	})

	rg.GET("/users/all", admin, func(c *gin.Context) {
		var users []models.User
		if err := db.Order("created_at desc").Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, users)
	})

	rg.POST("/users", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
			return
		}

		var existing models.User
		err := db.Where("username = ?", req.Username).First(&existing).Error
		if err == nil {
			if !existing.IsActive {
				if err := db.Model(&existing).Update("is_active", true).Error; err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
					return
				}
				existing.IsActive = true
				c.JSON(http.StatusOK, existing)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "user already exists"})
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		user := models.User{Username: req.Username, IsActive: true}
		if err := db.Create(&user).Error; err != nil {
			log.Error("User creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, user)
	})

	rg.DELETE("/users/:username", admin, func(c *gin.Context) {
		username := c.Param("username")
		res := db.Model(&models.User{}).Where("username = ?", username).Update("is_active", false)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": username + " deactivated"})
	})
}
