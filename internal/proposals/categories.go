package proposals

import "strings"

// DefaultCategoryTag is prepended when a tag list does not lead with a recognized category.
const DefaultCategoryTag = "governance"

// CategoryAll selects every category in a search.
const CategoryAll = "all"

// Categories lists the legislative categories recognized by the explorer.
var Categories = []string{
	"governance",
	"legislation",
	"policy",
	"finance",
	"education",
	"healthcare",
	"infrastructure",
	"defense",
	"environment",
	"justice",
}

// IsCategory reports whether tag names a recognized category.
func IsCategory(tag string) bool {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	for _, category := range Categories {
		if category == normalized {
			return true
		}
	}
	return false
}
