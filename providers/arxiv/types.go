// Package arxiv fetches paper metadata from the arXiv export API.
package arxiv

import "encoding/xml"

// Feed is the Atom feed the arXiv API answers with.
type Feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []Entry  `xml:"entry"`
}

// Entry is a single paper in the feed.
type Entry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	Published string   `xml:"published"`
	Authors   []Author `xml:"author"`
	Links     []Link   `xml:"link"`
}

// Author is a paper author element.
type Author struct {
	Name string `xml:"name"`
}

// Link is an alternate/related link element; the PDF link carries
// title="pdf".
type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
