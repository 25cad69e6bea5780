package proposals

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// AppIdentifier is written into the metadata of every published post.
	AppIdentifier     = "hive-explorer/1.0.0"
	maxTitleLength    = 255
	descriptionLength = 150
	metadataFormat    = "markdown"
)

var (
	// ErrInvalidDraft indicates that a proposal draft is missing required content.
	ErrInvalidDraft = errors.New("proposals: invalid draft")

	descriptionPolicy = bluemonday.StrictPolicy()
)

// Draft is a proposal ready to be published as a root post.
type Draft struct {
	Author   string   `json:"author"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
	Permlink string   `json:"permlink"`
}

type draftMetadata struct {
	Tags        []string `json:"tags"`
	App         string   `json:"app"`
	Format      string   `json:"format"`
	Description string   `json:"description"`
	Image       []string `json:"image"`
}

// NewDraft validates user input and derives tags and permlink for publication.
func NewDraft(author, title, body, rawTags string, submittedAt time.Time) (Draft, error) {
	author = strings.TrimSpace(author)
	title = strings.TrimSpace(title)
	if author == "" {
		return Draft{}, fmt.Errorf("%w: author is required", ErrInvalidDraft)
	}
	if title == "" {
		return Draft{}, fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return Draft{}, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidDraft, maxTitleLength)
	}
	if strings.TrimSpace(body) == "" {
		return Draft{}, fmt.Errorf("%w: body is required", ErrInvalidDraft)
	}
	if strings.TrimSpace(rawTags) == "" {
		return Draft{}, fmt.Errorf("%w: tags are required", ErrInvalidDraft)
	}

	return Draft{
		Author:   author,
		Title:    title,
		Body:     body,
		Tags:     SanitizeTags(rawTags, " "),
		Permlink: DerivePermlink(title, submittedAt),
	}, nil
}

// ParentPermlink is the main category the post is filed under.
func (d Draft) ParentPermlink() string {
	if len(d.Tags) == 0 {
		return DefaultCategoryTag
	}
	return d.Tags[0]
}

// Description is a plain-text preview of the body for metadata consumers.
func (d Draft) Description() string {
	plain := html.UnescapeString(descriptionPolicy.Sanitize(d.Body))
	runes := []rune(plain)
	if len(runes) > descriptionLength {
		runes = runes[:descriptionLength]
	}
	return string(runes) + ellipsis
}

// JSONMetadata encodes the post metadata stored alongside the comment operation.
func (d Draft) JSONMetadata() (string, error) {
	tags := d.Tags
	if len(tags) == 0 {
		tags = []string{DefaultCategoryTag}
	}
	encoded, err := json.Marshal(draftMetadata{
		Tags:        tags,
		App:         AppIdentifier,
		Format:      metadataFormat,
		Description: d.Description(),
		Image:       []string{},
	})
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
