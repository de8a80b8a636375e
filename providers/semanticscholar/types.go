// Package semanticscholar wraps the Semantic Scholar Graph API: citation
// counts, citing-paper lists and free-text paper search.
package semanticscholar

// paperResponse is the /paper/{id} answer, restricted to the requested fields.
type paperResponse struct {
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	CitationCount int    `json:"citationCount"`
	Year          int    `json:"year"`
}

// citationsResponse is the /paper/{id}/citations answer.
type citationsResponse struct {
	Data []struct {
		CitingPaper paperEntry `json:"citingPaper"`
	} `json:"data"`
}

// searchResponse is the /paper/search answer.
type searchResponse struct {
	Total int          `json:"total"`
	Data  []paperEntry `json:"data"`
}

// paperEntry is the common paper shape inside citation and search results.
type paperEntry struct {
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	CitationCount   int    `json:"citationCount"`
	Year            int    `json:"year"`
	PublicationDate string `json:"publicationDate"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		ArXiv string `json:"ArXiv"`
	} `json:"externalIds"`
}
