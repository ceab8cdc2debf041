package querycache

import (
	"encoding/json"
	"sort"
	"strconv"
)

// ListID marks the tag a list query provides for its whole collection.
const ListID = "LIST"

// Tag labels cached results by resource kind and, optionally, record id.
type Tag struct {
	Type string
	ID   string
}

// TypeTag returns a tag covering every entry of kind.
func TypeTag(kind string) Tag { return Tag{Type: kind} }

// ListTag returns the collection tag of kind.
func ListTag(kind string) Tag { return Tag{Type: kind, ID: ListID} }

// IDTag returns the tag of a single record.
func IDTag(kind string, id int64) Tag {
	return Tag{Type: kind, ID: strconv.FormatInt(id, 10)}
}

func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// Matches reports whether invalidating t evicts an entry that provided p.
// A tag without ID covers every tag of its type.
func (t Tag) Matches(p Tag) bool {
	if t.Type != p.Type {
		return false
	}
	return t.ID == "" || t.ID == p.ID
}

// Key builds the cache key for endpoint called with args. Arguments are
// encoded as JSON, whose map keys are sorted, so equal arguments give equal
// keys.
func Key(endpoint string, args any) string {
	if args == nil {
		return endpoint
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return endpoint + "(" + err.Error() + ")"
	}
	return endpoint + "(" + string(raw) + ")"
}

func sortedTags(tags []Tag) []Tag {
	out := append([]Tag(nil), tags...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
