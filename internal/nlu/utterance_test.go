package nlu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUtterances(t *testing.T) *UtteranceClassifier {
	t.Helper()
	c, err := NewUtteranceClassifier(nil)
	require.NoError(t, err)
	return c
}

func TestUtteranceClassifier_TopIntent(t *testing.T) {
	t.Parallel()
	c := newTestUtterances(t)

	tests := []struct {
		text string
		want Intent
	}{
		{"Hello!", Greeting},
		{"HELP", Help},
		{"any attractions?", ThingsToDo},
		{"book a room", CheckAvailability},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			res, err := c.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			top := res.Top()
			assert.Equal(t, tt.want, top.Name)
			assert.GreaterOrEqual(t, top.Score, 0.5)
			assert.LessOrEqual(t, top.Score, 1.0)
			assert.Equal(t, ProviderLocal, res.Provider)
		})
	}
}

func TestUtteranceClassifier_NoMatch(t *testing.T) {
	t.Parallel()
	c := newTestUtterances(t)

	for _, text := range []string{"", "   ", "xyzzy plugh"} {
		res, err := c.Classify(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, None, res.Top().Name, "text %q", text)
	}
}

func TestUtteranceClassifier_PartialOverlapStaysBelowThreshold(t *testing.T) {
	t.Parallel()
	c := newTestUtterances(t)

	tests := []string{
		"how much does it cost",
		"good grief",
		"what time is checkout",
		"where is the nearest petrol station",
		"can i bring my dog",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			t.Parallel()
			res, err := c.Classify(context.Background(), text)
			require.NoError(t, err)
			top := res.Top()
			if top.Name != None {
				assert.Less(t, top.Score, 0.5, "intent %s", top.Name)
			}
		})
	}
}

func TestUtteranceClassifier_StopwordOnlyText(t *testing.T) {
	t.Parallel()
	c := newTestUtterances(t)

	res, err := c.Classify(context.Background(), "what can you do")
	require.NoError(t, err)
	assert.Equal(t, Help, res.Top().Name)
}

func TestContentTokens(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"much", "cost"}, contentTokens(Tokenize("How much does it cost, how much?")))
	assert.Equal(t, []string{"what", "can", "you", "do"}, contentTokens(Tokenize("what can you do")))
	assert.Empty(t, contentTokens(nil))
}

func TestUtteranceClassifier_ExtractsCheckIn(t *testing.T) {
	t.Parallel()
	c := newTestUtterances(t)

	res, err := c.Classify(context.Background(), "do you have a room next Friday")
	require.NoError(t, err)
	e, ok := res.Entity(EntityCheckIn)
	require.True(t, ok)
	assert.Equal(t, "next Friday", e.Value)
}

func TestUtteranceClassifier_CanceledContext(t *testing.T) {
	t.Parallel()
	c := newTestUtterances(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Classify(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewUtteranceClassifier_Empty(t *testing.T) {
	t.Parallel()
	_, err := NewUtteranceClassifier(map[Intent][]string{})
	assert.Error(t, err)
}

func TestTokenize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"kia", "ora", "muffin"}, Tokenize("Kia ora, MUFFIN!"))
	assert.Empty(t, Tokenize(" ... "))
}

func TestExtractCheckIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text      string
		wantOK    bool
		want      string
		wantStart int
	}{
		{"Is there a room next Friday?", true, "next Friday", 16},
		{"arriving 12 March", true, "12 March", 9},
		{"arriving 3rd of April", true, "3rd of April", 9},
		{"from March 12 please", true, "March 12", 5},
		{"on 2026-11-03", true, "2026-11-03", 3},
		{"tomorrow please", true, "tomorrow", 0},
		{"the day after tomorrow", true, "the day after tomorrow", 0},
		{"hello", false, "", -1},
	}

	for _, tt := range tests {
		phrase, start, end, ok := ExtractCheckIn(tt.text)
		if ok != tt.wantOK || phrase != tt.want || start != tt.wantStart {
			t.Errorf("ExtractCheckIn(%q) = %q, %d, %v; want %q, %d, %v", tt.text, phrase, start, ok, tt.want, tt.wantStart, tt.wantOK)
		}
		if ok && end-start != len([]rune(phrase)) {
			t.Errorf("ExtractCheckIn(%q) span length mismatch", tt.text)
		}
	}
}
