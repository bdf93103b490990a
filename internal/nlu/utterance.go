package nlu

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iwilltry42/bm25-go/bm25"
	"golang.org/x/text/cases"
)

// DefaultUtterances are the example messages per intent for the local
// classifier.
var DefaultUtterances = map[Intent][]string{
	Greeting: {
		"hello",
		"hi there",
		"hey",
		"kia ora",
		"good morning",
		"good evening",
		"hello muffin",
		"hi, my name is",
	},
	Help: {
		"help",
		"what can you do",
		"what can you help me with",
		"how do you work",
		"show me the options",
		"i need help",
		"what are my choices",
	},
	ThingsToDo: {
		"things to do",
		"what is there to do in new plymouth",
		"any attractions nearby",
		"what should we see around town",
		"activities near the motel",
		"where can we go for a walk",
		"tourist sights",
		"recommend something fun",
	},
	CheckAvailability: {
		"check availability",
		"do you have a room",
		"i want to book a room",
		"are there vacancies next friday",
		"can i stay on 12 march",
		"book for tomorrow night",
		"is a room free this weekend",
		"we would like to arrive on monday",
		"reserve a unit",
	},
}

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// UtteranceClassifier ranks intents by BM25 similarity to example utterances.
// It needs no network and is the last link of every chain.
type UtteranceClassifier struct {
	index  *bm25.BM25Okapi
	labels []Intent                       // labels[i] is the intent of document i
	vocab  map[Intent]map[string]struct{} // tokens seen in each intent's examples
}

// stopwords carry no evidence for an intent on their own. They are still
// indexed, so "what can you do" matches, but they do not count towards
// coverage.
var stopwords = map[string]struct{}{
	"a": {}, "am": {}, "an": {}, "and": {}, "any": {}, "are": {}, "at": {}, "be": {},
	"can": {}, "could": {}, "did": {}, "do": {}, "does": {}, "for": {}, "how": {},
	"i": {}, "in": {}, "is": {}, "it": {}, "its": {}, "me": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "our": {}, "please": {}, "some": {}, "that": {}, "the": {},
	"there": {}, "this": {}, "to": {}, "us": {}, "we": {}, "what": {}, "will": {},
	"with": {}, "would": {}, "you": {}, "your": {},
}

// NewUtteranceClassifier indexes the utterances. A nil map uses DefaultUtterances.
func NewUtteranceClassifier(utterances map[Intent][]string) (*UtteranceClassifier, error) {
	if utterances == nil {
		utterances = DefaultUtterances
	}

	var (
		corpus []string
		labels []Intent
		vocab  = make(map[Intent]map[string]struct{})
	)
	// Deterministic document order.
	for _, intent := range Intents {
		for _, u := range utterances[intent] {
			corpus = append(corpus, u)
			labels = append(labels, intent)
			if vocab[intent] == nil {
				vocab[intent] = make(map[string]struct{})
			}
			for _, tok := range Tokenize(u) {
				vocab[intent][tok] = struct{}{}
			}
		}
	}
	if len(corpus) == 0 {
		return nil, errors.New("no utterances to index")
	}

	index, err := bm25.NewBM25Okapi(corpus, Tokenize, bm25K1, bm25B, nil)
	if err != nil {
		return nil, fmt.Errorf("build BM25 index: %w", err)
	}
	return &UtteranceClassifier{index: index, labels: labels, vocab: vocab}, nil
}

// Classify scores text against every utterance. An intent's share is its best
// document score divided by the sum of the positive best scores across
// intents. The share is then weighted by the square of the intent's
// coverage: the fraction of the text's content words (stopwords aside) that
// appear in that intent's examples. A single shared word in an otherwise
// unrelated sentence therefore stays below any sensible threshold. Text
// matching nothing yields None with score 0.
func (c *UtteranceClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Provider: ProviderLocal, Model: "bm25"}
	if phrase, start, end, ok := ExtractCheckIn(text); ok {
		res.Entities = append(res.Entities, Entity{Type: EntityCheckIn, Value: phrase, Start: start, End: end})
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		res.Intents = []IntentScore{{Name: None}}
		return res, nil
	}

	scores, err := c.index.GetScores(tokens)
	if err != nil {
		return nil, fmt.Errorf("BM25 scoring failed: %w", err)
	}

	best := make(map[Intent]float64, len(Intents))
	for i, s := range scores {
		if s > best[c.labels[i]] {
			best[c.labels[i]] = s
		}
	}

	var total float64
	for _, s := range best {
		total += s
	}
	if total <= 0 {
		res.Intents = []IntentScore{{Name: None}}
		return res, nil
	}

	content := contentTokens(tokens)
	for _, intent := range Intents {
		s := best[intent]
		if s <= 0 {
			continue
		}
		cov := c.coverage(intent, content)
		if score := s / total * cov * cov; score > 0 {
			res.Intents = append(res.Intents, IntentScore{Name: intent, Score: score})
		}
	}
	if len(res.Intents) == 0 {
		res.Intents = []IntentScore{{Name: None}}
		return res, nil
	}
	slices.SortStableFunc(res.Intents, func(a, b IntentScore) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return res, nil
}

// coverage is the fraction of content found in intent's examples.
func (c *UtteranceClassifier) coverage(intent Intent, content []string) float64 {
	if len(content) == 0 {
		return 0
	}
	vocab := c.vocab[intent]
	hits := 0
	for _, tok := range content {
		if _, ok := vocab[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(content))
}

// contentTokens returns the distinct non-stopword tokens, or all distinct
// tokens when every one is a stopword.
func contentTokens(tokens []string) []string {
	var content, all []string
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		all = append(all, tok)
		if _, stop := stopwords[tok]; !stop {
			content = append(content, tok)
		}
	}
	if len(content) == 0 {
		return all
	}
	return content
}

func (c *UtteranceClassifier) IsEnabled() bool {
	return c != nil && c.index != nil
}

func (c *UtteranceClassifier) Provider() Provider {
	return ProviderLocal
}

func (c *UtteranceClassifier) Close() error {
	return nil
}

var folder = cases.Fold()

// Tokenize case-folds text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(folder.String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

const (
	weekdayPattern = `(?:mon|tues|wednes|thurs|fri|satur|sun)day`
	monthPattern   = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	dayPattern     = `\d{1,2}(?:st|nd|rd|th)?`
)

var checkInPattern = regexp.MustCompile(`(?i)\b(?:` +
	`the day after tomorrow|today|tonight|tomorrow` +
	`|(?:next|this) ` + weekdayPattern +
	`|(?:next|this) week(?:end)?` +
	`|` + weekdayPattern +
	`|\d{4}-\d{2}-\d{2}` +
	`|` + dayPattern + ` (?:of )?` + monthPattern +
	`|` + monthPattern + ` ` + dayPattern +
	`)\b`)

// ExtractCheckIn finds the first date phrase in text and returns it with its
// rune span.
func ExtractCheckIn(text string) (phrase string, start, end int, ok bool) {
	loc := checkInPattern.FindStringIndex(text)
	if loc == nil {
		return "", -1, -1, false
	}
	phrase = text[loc[0]:loc[1]]
	start = utf8.RuneCountInString(text[:loc[0]])
	return phrase, start, start + utf8.RuneCountInString(phrase), true
}
