package hive

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	// DefaultTitle replaces a missing or empty post title.
	DefaultTitle = "Untitled Proposal"
	// DefaultAuthor replaces a missing or empty post author.
	DefaultAuthor = "Unknown"
)

// ActiveVote is a single vote cast on a post.
type ActiveVote struct {
	Voter   string `json:"voter"`
	Percent int64  `json:"percent"`
}

// PostRecord is the normalized read model of a blockchain post.
type PostRecord struct {
	Author           string          `json:"author"`
	Permlink         string          `json:"permlink"`
	Category         string          `json:"category"`
	Title            string          `json:"title"`
	Body             string          `json:"body"`
	Created          time.Time       `json:"created"`
	CreatedDefaulted bool            `json:"created_defaulted"`
	NetVotes         int64           `json:"net_votes"`
	ActiveVotes      []ActiveVote    `json:"active_votes"`
	JSONMetadata     string          `json:"json_metadata"`
	PendingPayout    decimal.Decimal `json:"pending_payout"`
	Children         int64           `json:"children"`
}

// Key identifies the post within a list.
func (p PostRecord) Key() string {
	return p.Author + "/" + p.Permlink
}

// Tags returns the lowercase tags declared in the post metadata.
// Unparseable metadata yields no tags.
func (p PostRecord) Tags() []string {
	metadata := strings.TrimSpace(p.JSONMetadata)
	if metadata == "" || !gjson.Valid(metadata) {
		return nil
	}
	field := gjson.Get(metadata, "tags")
	var tags []string
	switch {
	case field.IsArray():
		for _, element := range field.Array() {
			if element.Type != gjson.String {
				continue
			}
			if tag := strings.ToLower(strings.TrimSpace(element.Str)); tag != "" {
				tags = append(tags, tag)
			}
		}
	case field.Type == gjson.String:
		for _, tag := range strings.Fields(field.Str) {
			tags = append(tags, strings.ToLower(tag))
		}
	}
	return tags
}

// HasVoted reports whether voter already appears in the active votes.
func (p PostRecord) HasVoted(voter string) bool {
	for _, vote := range p.ActiveVotes {
		if vote.Voter == voter {
			return true
		}
	}
	return false
}

// FilterByTags keeps records whose tags intersect allowed. When nothing matches the
// unfiltered records are returned instead. The result never exceeds limit when limit > 0.
func FilterByTags(records []PostRecord, allowed []string, limit int) []PostRecord {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, tag := range allowed {
		allowSet[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	filtered := make([]PostRecord, 0, len(records))
	for _, record := range records {
		for _, tag := range record.Tags() {
			if _, ok := allowSet[tag]; ok {
				filtered = append(filtered, record)
				break
			}
		}
	}
	if len(filtered) == 0 {
		filtered = records
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
