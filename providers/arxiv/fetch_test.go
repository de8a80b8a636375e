package arxiv

import "testing"

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2306.02437v2</id>
    <title>Diffusion Policies
  for Robot Learning</title>
    <summary>  We study diffusion models
  for imitation learning.
</summary>
    <published>2023-06-05T17:59:59Z</published>
    <author><name>A. Researcher</name></author>
    <author><name>B. Scientist</name></author>
    <link href="http://arxiv.org/abs/2306.02437v2" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2306.02437v2" rel="related" type="application/pdf"/>
  </entry>
</feed>`

const notFoundFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id</id>
    <title></title>
    <summary>Error</summary>
  </entry>
</feed>`

func TestParseFeed(t *testing.T) {
	info := parseFeed([]byte(sampleFeed), "2306.02437")
	if info == nil {
		t.Fatal("expected entry to parse")
	}
	if info.PaperID != "2306.02437" {
		t.Fatalf("unexpected paper ID %q", info.PaperID)
	}
	if info.Title != "Diffusion Policies for Robot Learning" {
		t.Fatalf("expected collapsed title, got %q", info.Title)
	}
	if info.Abstract != "We study diffusion models for imitation learning." {
		t.Fatalf("expected collapsed abstract, got %q", info.Abstract)
	}
	if len(info.Authors) != 2 || info.Authors[0] != "A. Researcher" {
		t.Fatalf("unexpected authors %v", info.Authors)
	}
	if info.ArxivDate == nil || info.ArxivDate.Year() != 2023 {
		t.Fatalf("expected published date parsed, got %v", info.ArxivDate)
	}
	if info.PDFURL != "http://arxiv.org/pdf/2306.02437v2" {
		t.Fatalf("expected PDF link from feed, got %q", info.PDFURL)
	}
}

func TestParseFeedNotFound(t *testing.T) {
	// arXiv answers unknown IDs with an entry that has no title.
	if info := parseFeed([]byte(notFoundFeed), "9999.99999"); info != nil {
		t.Fatalf("expected nil for unknown ID, got %+v", info)
	}
}

func TestParseFeedEmpty(t *testing.T) {
	if info := parseFeed([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`), "x"); info != nil {
		t.Fatalf("expected nil for empty feed, got %+v", info)
	}
	if info := parseFeed([]byte("not xml"), "x"); info != nil {
		t.Fatalf("expected nil for invalid XML, got %+v", info)
	}
}

func TestParseFeedDefaultPDFURL(t *testing.T) {
	feed := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>No Links Here</title>
    <summary>Abstract.</summary>
  </entry>
</feed>`
	info := parseFeed([]byte(feed), "2306.02437")
	if info == nil {
		t.Fatal("expected entry to parse")
	}
	if info.PDFURL != "https://arxiv.org/pdf/2306.02437" {
		t.Fatalf("expected constructed PDF URL, got %q", info.PDFURL)
	}
}
