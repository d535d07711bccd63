package emotion

import (
	"slices"
	"testing"
)

var testMap = map[string]int{
	"neutral": 0,
	"sadness": 1,
	"joy":     3,
}

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []int
	}{
		{
			name: "two tags in order",
			text: "Hi there [joy] and [sadness] again",
			want: []int{3, 1},
		},
		{
			name: "no tags",
			text: "plain text without markers",
			want: nil,
		},
		{
			name: "unknown tag ignored",
			text: "look [confused] at this [joy]",
			want: []int{3},
		},
		{
			name: "case insensitive",
			text: "[JOY] and [Sadness]",
			want: []int{3, 1},
		},
		{
			name: "duplicates preserved",
			text: "[joy] then [joy] again",
			want: []int{3, 3},
		},
		{
			name: "unterminated bracket",
			text: "truncated [joy",
			want: nil,
		},
		{
			name: "nested brackets treated literally",
			text: "odd [[joy]] text",
			want: []int{3},
		},
		{
			name: "adjacent tags",
			text: "[sadness][neutral][joy]",
			want: []int{1, 0, 3},
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Extract(tt.text, testMap)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractEmptyMap(t *testing.T) {
	t.Parallel()

	if got := Extract("[joy] text", nil); got != nil {
		t.Errorf("Extract with empty map = %v, want nil", got)
	}
}

func TestExtractOnlyMappedValues(t *testing.T) {
	t.Parallel()

	text := "[joy] mixed [nope] with [sadness] and [neutral] tags [garbage]"
	for _, id := range Extract(text, testMap) {
		found := false
		for _, v := range testMap {
			if v == id {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Extract returned ID %d not present in emotion map", id)
		}
	}
}

func TestStrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "tags removed and spaces collapsed",
			text: "Hi there [joy] and [sadness] again",
			want: "Hi there and again",
		},
		{
			name: "no tags unchanged",
			text: "plain text",
			want: "plain text",
		},
		{
			name: "unknown tag kept",
			text: "see [confused] here",
			want: "see [confused] here",
		},
		{
			name: "leading tag trimmed",
			text: "[joy] hello",
			want: "hello",
		},
		{
			name: "unterminated bracket kept",
			text: "oops [joy",
			want: "oops [joy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Strip(tt.text, testMap); got != tt.want {
				t.Errorf("Strip(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
