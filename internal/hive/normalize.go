package hive

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var createdLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// NormalizePosts maps any JSON document onto post records. Arrays keep their order,
// objects contribute their values in document order and every other shape yields nothing.
// Elements that are not objects are dropped.
func NormalizePosts(raw []byte, now time.Time) []PostRecord {
	if !gjson.ValidBytes(raw) {
		return []PostRecord{}
	}
	document := gjson.ParseBytes(raw)

	var elements []gjson.Result
	switch {
	case document.IsArray():
		elements = document.Array()
	case document.IsObject():
		document.ForEach(func(_, value gjson.Result) bool {
			elements = append(elements, value)
			return true
		})
	}

	records := make([]PostRecord, 0, len(elements))
	for _, element := range elements {
		record, ok := normalizePost(element, now)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records
}

func normalizePost(element gjson.Result, now time.Time) (PostRecord, bool) {
	if !element.IsObject() {
		return PostRecord{}, false
	}

	record := PostRecord{
		Author:        stringField(element.Get("author"), DefaultAuthor),
		Permlink:      stringField(element.Get("permlink"), ""),
		Category:      stringField(element.Get("category"), ""),
		Title:         stringField(element.Get("title"), DefaultTitle),
		Body:          rawStringField(element.Get("body")),
		NetVotes:      intField(element.Get("net_votes")),
		ActiveVotes:   activeVotes(element.Get("active_votes")),
		JSONMetadata:  metadataField(element.Get("json_metadata")),
		PendingPayout: assetField(element.Get("pending_payout_value")),
		Children:      intField(element.Get("children")),
	}

	created, ok := timeField(element.Get("created"))
	if !ok {
		created = now.UTC()
		record.CreatedDefaulted = true
	}
	record.Created = created

	return record, true
}

func stringField(value gjson.Result, fallback string) string {
	if value.Type != gjson.String {
		return fallback
	}
	trimmed := strings.TrimSpace(value.Str)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func rawStringField(value gjson.Result) string {
	if value.Type != gjson.String {
		return ""
	}
	return value.Str
}

func intField(value gjson.Result) int64 {
	switch value.Type {
	case gjson.Number:
		return value.Int()
	case gjson.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(value.Str), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func timeField(value gjson.Result) (time.Time, bool) {
	if value.Type != gjson.String {
		return time.Time{}, false
	}
	text := strings.TrimSpace(value.Str)
	for _, layout := range createdLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func metadataField(value gjson.Result) string {
	switch {
	case value.Type == gjson.String:
		return value.Str
	case value.IsObject(), value.IsArray():
		return value.Raw
	default:
		return ""
	}
}

// assetField parses chain asset strings such as "1.234 HBD".
func assetField(value gjson.Result) decimal.Decimal {
	var text string
	switch value.Type {
	case gjson.String:
		fields := strings.Fields(value.Str)
		if len(fields) == 0 {
			return decimal.Zero
		}
		text = fields[0]
	case gjson.Number:
		text = value.Raw
	default:
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func activeVotes(value gjson.Result) []ActiveVote {
	if !value.IsArray() {
		return []ActiveVote{}
	}
	votes := make([]ActiveVote, 0, len(value.Array()))
	for _, element := range value.Array() {
		if !element.IsObject() {
			continue
		}
		voter := stringField(element.Get("voter"), "")
		if voter == "" {
			continue
		}
		votes = append(votes, ActiveVote{
			Voter:   voter,
			Percent: intField(element.Get("percent")),
		})
	}
	return votes
}
