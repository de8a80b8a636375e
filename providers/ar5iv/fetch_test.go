package ar5iv

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"paper-tracker/config"

	"go.uber.org/zap"
)

func parse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	return doc
}

func TestFindImagePrefersFigure(t *testing.T) {
	doc := parse(t, `<html><body>
		<img src="/assets/logo.png">
		<figure><img src="x1.png"></figure>
		<figure><img src="x2.png"></figure>
	</body></html>`)

	if src := findImage(doc, true); src != "x1.png" {
		t.Fatalf("expected first figure image, got %q", src)
	}
}

func TestFindImageFallsBackToAssetPaths(t *testing.T) {
	doc := parse(t, `<html><body>
		<img src="/static/banner.png">
		<img src="extracted/images/fig1.png">
	</body></html>`)

	if src := findImage(doc, true); src != "" {
		t.Fatalf("expected no figure image, got %q", src)
	}
	if src := findImage(doc, false); src != "extracted/images/fig1.png" {
		t.Fatalf("expected asset-path image, got %q", src)
	}
}

func TestFindImageNothingUsable(t *testing.T) {
	doc := parse(t, `<html><body><p>text only</p><img src="/static/banner.png"></body></html>`)
	if src := findImage(doc, true); src != "" {
		t.Fatalf("expected no match, got %q", src)
	}
	if src := findImage(doc, false); src != "" {
		t.Fatalf("expected no match, got %q", src)
	}
}

func TestAbsoluteURL(t *testing.T) {
	f := NewFetcher(&config.Config{Ar5ivBaseURL: "https://ar5iv.labs.arxiv.org"}, zap.NewNop())

	cases := []struct {
		src  string
		want string
	}{
		{"https://cdn.example.com/fig.png", "https://cdn.example.com/fig.png"},
		{"/html/2306.02437/assets/fig.png", "https://ar5iv.labs.arxiv.org/html/2306.02437/assets/fig.png"},
		{"assets/fig.png", "https://ar5iv.labs.arxiv.org/html/2306.02437/assets/fig.png"},
	}
	for _, tc := range cases {
		if got := f.absoluteURL("2306.02437", tc.src); got != tc.want {
			t.Errorf("absoluteURL(%q) = %q, want %q", tc.src, got, tc.want)
		}
	}
}
