package sliceutil

import (
	"slices"
	"strconv"
	"testing"
)

type span struct {
	Kind  string
	Start int
	Text  string
}

func byPosition(s span) [2]any { return [2]any{s.Kind, s.Start} }

func TestDeduplicate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		items []span
		want  []string
	}{
		{
			name:  "distinct",
			items: []span{{"date", 0, "today"}, {"date", 9, "friday"}, {"name", 0, "Ana"}},
			want:  []string{"today", "friday", "Ana"},
		},
		{
			name:  "first occurrence wins",
			items: []span{{"date", 9, "friday"}, {"date", 0, "today"}, {"date", 9, "Friday"}},
			want:  []string{"friday", "today"},
		},
		{
			name:  "all the same",
			items: []span{{"date", 1, "a"}, {"date", 1, "b"}, {"date", 1, "c"}},
			want:  []string{"a"},
		},
		{
			name:  "empty",
			items: []span{},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Deduplicate(tt.items, byPosition)
			texts := make([]string, 0, len(got))
			for _, s := range got {
				texts = append(texts, s.Text)
			}
			if !slices.Equal(texts, tt.want) {
				t.Errorf("Deduplicate() = %v, want %v", texts, tt.want)
			}
		})
	}
}

func TestDeduplicate_Nil(t *testing.T) {
	t.Parallel()
	if got := Deduplicate[span](nil, byPosition); got != nil {
		t.Errorf("Deduplicate(nil) = %v, want nil", got)
	}
}

func BenchmarkDeduplicate(b *testing.B) {
	items := make([]span, 1000)
	for i := range items {
		items[i] = span{Kind: "date", Start: i % 100, Text: strconv.Itoa(i)}
	}
	for b.Loop() {
		_ = Deduplicate(items, byPosition)
	}
}
