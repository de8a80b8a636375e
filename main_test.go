package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-tracker/config"
	"paper-tracker/models"
	"paper-tracker/services"
)

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Paper{}, &models.UserKeyword{}, &models.User{}, &models.AccessLog{}, &models.UserFavorite{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newPaperListRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc := &services.PaperService{DB: db, Logger: zap.NewNop()}
	setupPaperRoutes(router, db, svc, zap.NewNop())
	return router
}

type paperListResponse struct {
	Papers []models.Paper `json:"papers"`
	Total  int64          `json:"total"`
}

func listPapers(t *testing.T, router *gin.Engine, query string) paperListResponse {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/papers"+query, nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp paperListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestPaperListMatchedKeywordExactElement(t *testing.T) {
	db := newHandlerTestDB(t)
	router := newPaperListRouter(t, db)

	db.Create(&models.Paper{PaperID: "p1", Title: "A", MatchedKeywords: `["StyleGAN"]`})
	db.Create(&models.Paper{PaperID: "p2", Title: "B", MatchedKeywords: `["GAN","robot"]`})

	resp := listPapers(t, router, "?matched_keyword=GAN")
	// "GAN" must not hit the cached "StyleGAN".
	if resp.Total != 1 || resp.Papers[0].PaperID != "p2" {
		t.Fatalf("expected only the exact match, got %+v", resp)
	}

	resp = listPapers(t, router, "?matched_keyword=gan")
	if resp.Total != 1 || resp.Papers[0].PaperID != "p2" {
		t.Fatalf("expected case-insensitive match, got %+v", resp)
	}
}

func TestPaperListCategoryFilter(t *testing.T) {
	db := newHandlerTestDB(t)
	router := newPaperListRouter(t, db)

	vision := "vision"
	nlp := "nlp"
	db.Create(&models.UserKeyword{Keyword: "GAN", Category: &vision})
	db.Create(&models.UserKeyword{Keyword: "diffusion", Category: &vision})
	db.Create(&models.UserKeyword{Keyword: "transformer", Category: &nlp})

	db.Create(&models.Paper{PaperID: "p1", Title: "A", MatchedKeywords: `["GAN"]`})
	db.Create(&models.Paper{PaperID: "p2", Title: "B", MatchedKeywords: `["transformer"]`})
	db.Create(&models.Paper{PaperID: "p3", Title: "C"})

	resp := listPapers(t, router, "?category=vision")
	if resp.Total != 1 || resp.Papers[0].PaperID != "p1" {
		t.Fatalf("expected the vision paper only, got %+v", resp)
	}

	resp = listPapers(t, router, "?category=nlp")
	if resp.Total != 1 || resp.Papers[0].PaperID != "p2" {
		t.Fatalf("expected the nlp paper only, got %+v", resp)
	}

	// A category without keywords matches nothing.
	resp = listPapers(t, router, "?category=robotics")
	if resp.Total != 0 || len(resp.Papers) != 0 {
		t.Fatalf("expected empty result for unknown category, got %+v", resp)
	}
}

func TestPaperListSortByStage(t *testing.T) {
	db := newHandlerTestDB(t)
	router := newPaperListRouter(t, db)

	db.Create(&models.Paper{PaperID: "p1", SearchStage: models.StageRegistered})
	db.Create(&models.Paper{PaperID: "p2", SearchStage: models.StageDeep})
	db.Create(&models.Paper{PaperID: "p3", SearchStage: models.StageSimple})

	resp := listPapers(t, router, "?sort=stage")
	if resp.Total != 3 {
		t.Fatalf("expected 3 papers, got %d", resp.Total)
	}
	if resp.Papers[0].PaperID != "p2" || resp.Papers[1].PaperID != "p3" || resp.Papers[2].PaperID != "p1" {
		t.Fatalf("expected stage descending order, got %+v", resp.Papers)
	}
}

func TestAdminAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(cfg *config.Config, header string) int {
		router := gin.New()
		router.GET("/guarded", adminAuthMiddleware(cfg), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if header != "" {
			req.Header.Set("X-Admin-Password", header)
		}
		router.ServeHTTP(w, req)
		return w.Code
	}

	// Unset password disables the check entirely.
	if code := serve(&config.Config{}, ""); code != http.StatusOK {
		t.Fatalf("expected open access without configured password, got %d", code)
	}

	cfg := &config.Config{AdminPassword: "secret"}
	if code := serve(cfg, ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", code)
	}
	if code := serve(cfg, "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong password, got %d", code)
	}
	if code := serve(cfg, "secret"); code != http.StatusOK {
		t.Fatalf("expected 200 with correct password, got %d", code)
	}
}
