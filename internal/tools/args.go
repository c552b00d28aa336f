package tools

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/jfmyers9/listenlog/pkg/lastfm"
	"github.com/jfmyers9/listenlog/pkg/spotify"
)

// IDList accepts either a JSON array of ids or a single string of ids
// separated by commas and/or whitespace. Orchestrators send both.
type IDList struct {
	raw     string
	list    []string
	fromRaw bool
}

// NewIDList returns a list holding ids.
func NewIDList(ids ...string) IDList {
	return IDList{list: ids}
}

// ParseIDList returns a list holding an unsplit string.
func ParseIDList(raw string) IDList {
	return IDList{raw: raw, fromRaw: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *IDList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*l = IDList{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = ParseIDList(s)
		return nil
	case b[0] == '[':
		var ids []string
		if err := json.Unmarshal(b, &ids); err != nil {
			return fmt.Errorf("id list must contain only strings: %w", err)
		}
		*l = NewIDList(ids...)
		return nil
	default:
		return fmt.Errorf("id list must be a string or an array of strings")
	}
}

// FromString reports whether the list arrived as a single string.
func (l IDList) FromString() bool {
	return l.fromRaw
}

// Normalize returns the ids in order with separators and blanks
// removed.
func (l IDList) Normalize() []string {
	parts := l.list
	if l.fromRaw {
		parts = []string{l.raw}
	}

	var ids []string
	for _, p := range parts {
		ids = append(ids, strings.FieldsFunc(p, isSeparator)...)
	}
	return ids
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

// ArgumentError reports a tool argument that failed validation. It is
// returned to the caller as a tool error rather than swallowed.
type ArgumentError struct {
	Tool string
	Arg  string
	Msg  string
}

func (e *ArgumentError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("%s: %s", e.Tool, e.Msg)
	}
	return fmt.Sprintf("%s: invalid %s: %s", e.Tool, e.Arg, e.Msg)
}

var (
	periods = []string{
		string(lastfm.PeriodOverall),
		string(lastfm.Period7Day),
		string(lastfm.Period1Month),
		string(lastfm.Period3Month),
		string(lastfm.Period6Month),
		string(lastfm.Period12Month),
	}
	timeRanges = []string{
		string(spotify.ShortTerm),
		string(spotify.MediumTerm),
		string(spotify.LongTerm),
	}
	searchTypes = []string{
		string(spotify.SearchTrack),
		string(spotify.SearchArtist),
		string(spotify.SearchAlbum),
		string(spotify.SearchPlaylist),
	}
)

func parsePeriod(tool, s string) (lastfm.Period, error) {
	if s == "" {
		return lastfm.PeriodOverall, nil
	}
	p := lastfm.Period(s)
	if !p.Valid() {
		return "", enumError(tool, "period", s, periods)
	}
	return p, nil
}

func parseTimeRange(tool, s string) (spotify.TimeRange, error) {
	if s == "" {
		return spotify.MediumTerm, nil
	}
	r := spotify.TimeRange(s)
	if !r.Valid() {
		return "", enumError(tool, "time_range", s, timeRanges)
	}
	return r, nil
}

func parseSearchTypes(tool string, l IDList) ([]spotify.SearchType, error) {
	var types []spotify.SearchType
	for _, s := range l.Normalize() {
		t := spotify.SearchType(strings.ToLower(s))
		if !t.Valid() {
			return nil, enumError(tool, "types", s, searchTypes)
		}
		types = append(types, t)
	}
	return types, nil
}

func enumError(tool, arg, got string, allowed []string) error {
	return &ArgumentError{
		Tool: tool,
		Arg:  arg,
		Msg:  fmt.Sprintf("%q is not one of %s", got, strings.Join(allowed, ", ")),
	}
}

func decodeArgs(tool string, raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ArgumentError{Tool: tool, Msg: fmt.Sprintf("malformed arguments: %v", err)}
	}
	return nil
}
