package tools

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func TestIDList_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       []string
		fromString bool
	}{
		{name: "comma and space separated string", input: `"id1,id2 id3"`, want: []string{"id1", "id2", "id3"}, fromString: true},
		{name: "messy separators", input: `" id1 ,, id2\n\tid3, "`, want: []string{"id1", "id2", "id3"}, fromString: true},
		{name: "array", input: `["id1", "id2"]`, want: []string{"id1", "id2"}},
		{name: "array with blanks", input: `["id1", " ", ""]`, want: []string{"id1"}},
		{name: "empty string", input: `""`, want: nil, fromString: true},
		{name: "null", input: `null`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l IDList
			if err := json.Unmarshal([]byte(tt.input), &l); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := l.Normalize(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
			if l.FromString() != tt.fromString {
				t.Errorf("FromString() = %v, want %v", l.FromString(), tt.fromString)
			}
		})
	}
}

func TestIDList_RejectsOtherTypes(t *testing.T) {
	for _, input := range []string{`42`, `{"a": 1}`, `[1, 2]`} {
		var l IDList
		if err := json.Unmarshal([]byte(input), &l); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if p, err := parsePeriod("t", ""); err != nil || p != "overall" {
		t.Errorf("expected overall default, got %q %v", p, err)
	}
	if p, err := parsePeriod("t", "7day"); err != nil || p != "7day" {
		t.Errorf("expected 7day, got %q %v", p, err)
	}
	if tr, err := parseTimeRange("t", ""); err != nil || tr != "medium_term" {
		t.Errorf("expected medium_term default, got %q %v", tr, err)
	}

	_, err := parseTimeRange("get_spotify_top_tracks", "forever")
	var argErr *ArgumentError
	if !errors.As(err, &argErr) || argErr.Arg != "time_range" {
		t.Fatalf("expected time_range argument error, got %v", err)
	}
	want := `get_spotify_top_tracks: invalid time_range: "forever" is not one of short_term, medium_term, long_term`
	if err.Error() != want {
		t.Errorf("unexpected message %q", err.Error())
	}

	if _, err := parsePeriod("t", "1week"); err == nil {
		t.Error("expected error for unknown period")
	}
	if types, err := parseSearchTypes("t", ParseIDList("Track,artist")); err != nil || len(types) != 2 {
		t.Errorf("unexpected types %v %v", types, err)
	}
	if _, err := parseSearchTypes("t", NewIDList("episode")); err == nil {
		t.Error("expected error for unsupported search type")
	}
}
