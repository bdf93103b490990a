package nlu

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/kewalaka/muffinbot/internal/sliceutil"
)

// luisDateTypes are LUIS prebuilt entity types accepted as a check-in date
// when the model has no Date.CheckIn entity of its own.
var luisDateTypes = []string{"builtin.datetimeV2.date", "builtin.datetimeV2.daterange", "builtin.datetime.date"}

// luisClassifier queries a LUIS v2 prediction endpoint.
type luisClassifier struct {
	endpoint *url.URL
	client   *http.Client
}

type luisResponse struct {
	Query            string       `json:"query"`
	TopScoringIntent *luisIntent  `json:"topScoringIntent"`
	Intents          []luisIntent `json:"intents"`
	Entities         []luisEntity `json:"entities"`
}

type luisIntent struct {
	Intent string  `json:"intent"`
	Score  float64 `json:"score"`
}

type luisEntity struct {
	Entity     string `json:"entity"`
	Type       string `json:"type"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"` // Inclusive
}

// newLUISClassifier parses modelURL, the app endpoint including the
// subscription key. Returns nil when modelURL is empty.
func newLUISClassifier(modelURL string, client *http.Client) (*luisClassifier, error) {
	if modelURL == "" {
		return nil, nil //nolint:nilnil // provider disabled without an endpoint
	}
	u, err := url.Parse(modelURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("invalid LUIS model URL: %q", modelURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &luisClassifier{endpoint: u, client: client}, nil
}

func (c *luisClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("q", text)
	q.Set("verbose", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build LUIS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LUIS request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, WrapError(fmt.Errorf("LUIS returned %s: %s", resp.Status, strings.TrimSpace(string(body))), ProviderLUIS, resp.StatusCode)
	}

	var lr luisResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode LUIS response: %w", err)
	}
	return lr.toResult(text)
}

func (lr *luisResponse) toResult(text string) (*Result, error) {
	intents := lr.Intents
	if len(intents) == 0 && lr.TopScoringIntent != nil {
		intents = []luisIntent{*lr.TopScoringIntent}
	}
	if len(intents) == 0 {
		return nil, errors.New("LUIS response has no intents")
	}

	res := &Result{Provider: ProviderLUIS}
	for _, in := range intents {
		res.Intents = append(res.Intents, IntentScore{Name: parseIntent(in.Intent), Score: clampScore(in.Score)})
	}
	slices.SortStableFunc(res.Intents, func(a, b IntentScore) int {
		return cmp.Compare(b.Score, a.Score)
	})

	runes := []rune(text)
	var dateFallback *Entity
	for _, le := range lr.Entities {
		e := Entity{Type: le.Type, Value: le.Entity, Start: -1, End: -1}
		if le.StartIndex >= 0 && le.EndIndex >= le.StartIndex && le.EndIndex < len(runes) {
			e.Start, e.End = le.StartIndex, le.EndIndex+1
			e.Value = string(runes[e.Start:e.End])
		}
		if slices.Contains(luisDateTypes, le.Type) && dateFallback == nil {
			d := e
			d.Type = EntityCheckIn
			dateFallback = &d
		}
		res.Entities = append(res.Entities, e)
	}
	// Composite and prebuilt models can report the same span twice.
	res.Entities = sliceutil.Deduplicate(res.Entities, func(e Entity) Entity { return e })
	if _, ok := res.Entity(EntityCheckIn); !ok && dateFallback != nil {
		res.Entities = append(res.Entities, *dateFallback)
	}

	return res, nil
}

func (c *luisClassifier) IsEnabled() bool {
	return c != nil && c.endpoint != nil
}

func (c *luisClassifier) Provider() Provider {
	return ProviderLUIS
}

func (c *luisClassifier) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
