package nlu

import "testing"

func TestResult_Top(t *testing.T) {
	t.Parallel()

	var nilResult *Result
	if got := nilResult.Top(); got.Name != "" {
		t.Errorf("nil Result Top() = %+v, want zero", got)
	}

	r := &Result{Intents: []IntentScore{{Name: Help, Score: 0.9}, {Name: None, Score: 0.1}}}
	if got := r.Top(); got.Name != Help || got.Score != 0.9 {
		t.Errorf("Top() = %+v", got)
	}
}

func TestResult_Entity(t *testing.T) {
	t.Parallel()

	r := &Result{Entities: []Entity{{Type: "other", Value: "x"}, {Type: EntityCheckIn, Value: "next Friday"}}}
	e, ok := r.Entity(EntityCheckIn)
	if !ok || e.Value != "next Friday" {
		t.Errorf("Entity() = %+v, %v", e, ok)
	}
	if _, ok := r.Entity("missing"); ok {
		t.Error("Entity(missing) should not be found")
	}
}

func TestParseIntent(t *testing.T) {
	t.Parallel()

	tests := map[string]Intent{
		"Help":              Help,
		"checkavailability": CheckAvailability,
		"ThingsToDo":        ThingsToDo,
		"None":              None,
		"Utilities.Cancel":  None,
		"":                  None,
	}
	for in, want := range tests {
		if got := parseIntent(in); got != want {
			t.Errorf("parseIntent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocatePhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		phrase    string
		wantValue string
		wantStart int
		wantEnd   int
	}{
		{"exact", "arrive next Friday please", "next Friday", "next Friday", 7, 18},
		{"case-insensitive keeps original text", "arrive NEXT friday", "next Friday", "NEXT friday", 7, 18},
		{"rune offsets", "café on 12 March", "12 March", "12 March", 8, 16},
		{"absent", "hello", "tomorrow", "tomorrow", -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := locatePhrase(tt.text, EntityCheckIn, tt.phrase)
			if e.Value != tt.wantValue || e.Start != tt.wantStart || e.End != tt.wantEnd {
				t.Errorf("locatePhrase() = %+v, want value=%q span=[%d,%d)", e, tt.wantValue, tt.wantStart, tt.wantEnd)
			}
			if e.Type != EntityCheckIn {
				t.Errorf("Type = %q", e.Type)
			}
		})
	}
}

func TestProvider_IsOpenAICompatible(t *testing.T) {
	t.Parallel()

	if !ProviderGroq.IsOpenAICompatible() || !ProviderCerebras.IsOpenAICompatible() {
		t.Error("groq and cerebras should be OpenAI-compatible")
	}
	if ProviderGemini.IsOpenAICompatible() || ProviderLUIS.IsOpenAICompatible() {
		t.Error("gemini and luis should not be OpenAI-compatible")
	}
}
