package proposals

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/hive-explorer/internal/hive"
)

const (
	searchFallbackTag = "hive"
	proposalIDLength  = 8
	postURLBase       = "https://hive.blog"
)

// SearchResult is a post prepared for display in proposal listings.
type SearchResult struct {
	Post           hive.PostRecord `json:"post"`
	ProposalID     string          `json:"proposal_id"`
	FormattedTitle string          `json:"formatted_title"`
	Snippet        string          `json:"snippet"`
	URL            string          `json:"url"`
}

// SearchTag selects the chain tag queried for a category.
func SearchTag(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "" || normalized == CategoryAll {
		return searchFallbackTag
	}
	return normalized
}

// MatchesSearch reports whether term occurs in the title, body or author, ignoring case.
func MatchesSearch(post hive.PostRecord, term string) bool {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(post.Title), needle) ||
		strings.Contains(strings.ToLower(post.Body), needle) ||
		strings.Contains(strings.ToLower(post.Author), needle)
}

// Search filters posts by term and decorates the survivors for display.
func Search(posts []hive.PostRecord, term string) []SearchResult {
	results := make([]SearchResult, 0, len(posts))
	for index, post := range posts {
		if !MatchesSearch(post, term) {
			continue
		}
		results = append(results, SearchResult{
			Post:           post,
			ProposalID:     ProposalID(post, index),
			FormattedTitle: FormatTitle(post.Title),
			Snippet:        BuildSnippet(SanitizeSpamLike(post.Body), term, defaultSnippetSize),
			URL:            PostURL(post),
		})
	}
	return results
}

// FilterByCategory keeps posts filed under category or tagged with it. The "all" category
// and a category nothing matches both return posts unchanged.
func FilterByCategory(posts []hive.PostRecord, category string) []hive.PostRecord {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "" || normalized == CategoryAll {
		return posts
	}
	filtered := make([]hive.PostRecord, 0, len(posts))
	for _, post := range posts {
		if strings.EqualFold(post.Category, normalized) || hasTag(post, normalized) {
			filtered = append(filtered, post)
		}
	}
	if len(filtered) == 0 {
		return posts
	}
	return filtered
}

func hasTag(post hive.PostRecord, tag string) bool {
	for _, candidate := range post.Tags() {
		if strings.EqualFold(candidate, tag) {
			return true
		}
	}
	return false
}

// ProposalID derives a short display identifier from the permlink.
func ProposalID(post hive.PostRecord, index int) string {
	if post.Permlink == "" {
		return fmt.Sprintf("post-%d", index)
	}
	runes := []rune(post.Permlink)
	if len(runes) > proposalIDLength {
		runes = runes[:proposalIDLength]
	}
	return string(runes)
}

// PostURL links to the post on the public front end.
func PostURL(post hive.PostRecord) string {
	return fmt.Sprintf("%s/@%s/%s", postURLBase, post.Author, post.Permlink)
}
