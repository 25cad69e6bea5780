package proposals

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	maxTags            = 5
	maxPermlinkSlug    = 50
	defaultSnippetSize = 150
	spamLinkThreshold  = 2
	spamTruncateLength = 500
	ellipsis           = "..."
	untitledProposal   = "Untitled Proposal"
)

var (
	tagInvalidCharacters  = regexp.MustCompile(`[^a-z0-9-]`)
	slugInvalidCharacters = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns        = regexp.MustCompile(`\s+`)
	markupTags            = regexp.MustCompile(`<[^>]+>`)
	legislativePrefix     = regexp.MustCompile(`(?i)^(bill|act|proposal|motion|resolution|amendment)`)
)

// SanitizeTags turns free-text tag input into at most five chain-safe tags that lead with a
// recognized category. An empty separator splits on whitespace.
func SanitizeTags(raw string, separator string) []string {
	var parts []string
	if separator == "" || strings.TrimSpace(separator) == "" {
		parts = strings.Fields(raw)
	} else {
		parts = strings.Split(raw, separator)
	}

	tags := make([]string, 0, maxTags)
	seen := make(map[string]struct{}, maxTags)
	for _, part := range parts {
		tag := tagInvalidCharacters.ReplaceAllString(strings.ToLower(strings.TrimSpace(part)), "")
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}

	if len(tags) == 0 || !IsCategory(tags[0]) {
		withDefault := []string{DefaultCategoryTag}
		for _, tag := range tags {
			if tag != DefaultCategoryTag {
				withDefault = append(withDefault, tag)
			}
		}
		tags = withDefault
	}
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

// DerivePermlink builds a per-author unique slug from the submission time and title.
func DerivePermlink(title string, submittedAt time.Time) string {
	slug := slugInvalidCharacters.ReplaceAllString(strings.ToLower(title), "")
	slug = whitespaceRuns.ReplaceAllString(strings.TrimSpace(slug), "-")
	if len(slug) > maxPermlinkSlug {
		slug = slug[:maxPermlinkSlug]
	}
	slug = strings.Trim(slug, "-")

	stamp := fmt.Sprintf("%d", submittedAt.UnixMilli())
	if slug == "" {
		return stamp
	}
	return stamp + "-" + slug
}

// StripMarkup removes anything that looks like an HTML tag.
func StripMarkup(body string) string {
	return markupTags.ReplaceAllString(body, "")
}

// BuildSnippet returns a bounded excerpt of body. When term occurs in the text the excerpt is
// centred on its first case-insensitive occurrence. Truncated sides carry an ellipsis.
func BuildSnippet(body string, term string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = defaultSnippetSize
	}
	text := []rune(StripMarkup(body))
	if len(text) == 0 {
		return ""
	}

	start := 0
	if index := indexFold(text, []rune(strings.TrimSpace(term))); index >= 0 {
		start = index - maxLen/3
		if start < 0 {
			start = 0
		}
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
	}

	snippet := string(text[start:end])
	if start > 0 {
		snippet = ellipsis + snippet
	}
	if end < len(text) {
		snippet += ellipsis
	}
	return snippet
}

// indexFold returns the rune index of the first case-insensitive occurrence of needle.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for start := 0; start+len(needle) <= len(haystack); start++ {
		matched := true
		for offset, r := range needle {
			if unicode.ToLower(haystack[start+offset]) != unicode.ToLower(r) {
				matched = false
				break
			}
		}
		if matched {
			return start
		}
	}
	return -1
}

// SanitizeSpamLike truncates link-flooded text to its first 500 characters.
func SanitizeSpamLike(text string) string {
	if strings.Count(text, "http") <= spamLinkThreshold {
		return text
	}
	runes := []rune(text)
	if len(runes) <= spamTruncateLength {
		return text
	}
	return string(runes[:spamTruncateLength])
}

// FormatTitle prefixes titles with "Proposal:" unless they already read as legislation.
func FormatTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return untitledProposal
	}
	if legislativePrefix.MatchString(trimmed) {
		return trimmed
	}
	return "Proposal: " + trimmed
}
