// Package huggingface fetches the HuggingFace daily papers feed.
package huggingface

// feedItem is one entry of the daily papers API response.
type feedItem struct {
	Paper struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Summary     string `json:"summary"`
		Upvotes     int    `json:"upvotes"`
		AISummary   string `json:"ai_summary"`
		AIKeywords  []string `json:"ai_keywords"`
		PublishedAt string `json:"publishedAt"`
		GithubRepo  string `json:"githubRepo"`
		GithubStars int    `json:"githubStars"`
		Authors     []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"paper"`
	NumComments int    `json:"numComments"`
	Thumbnail   string `json:"thumbnail"`
	SubmittedBy struct {
		Name      string `json:"name"`
		Fullname  string `json:"fullname"`
		AvatarURL string `json:"avatarUrl"`
	} `json:"submittedBy"`
}

// TrendingPaper is the cleaned-up shape served to the frontend.
type TrendingPaper struct {
	PaperID     string   `json:"paper_id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Upvotes     int      `json:"upvotes"`
	AISummary   string   `json:"ai_summary,omitempty"`
	AIKeywords  []string `json:"ai_keywords,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	GithubRepo  string   `json:"github_repo,omitempty"`
	GithubStars int      `json:"github_stars,omitempty"`
	NumComments int      `json:"num_comments"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	SubmittedBy string   `json:"submitted_by,omitempty"`
}
