// Command classify runs utterances through the configured intent classifier
// chain, or with -chat holds a whole conversation with Muffin in the
// terminal using in-memory sessions.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kewalaka/muffinbot/internal/config"
	"github.com/kewalaka/muffinbot/internal/dialog"
	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/nlu"
	"github.com/kewalaka/muffinbot/internal/session"
)

// CLI flags
var (
	textFlag  = flag.String("text", "", "Utterance to classify (default: read lines from stdin)")
	localFlag = flag.Bool("local", false, "Use only the local utterance classifier")
	chatFlag  = flag.Bool("chat", false, "Chat with the bot instead of printing classifications")
)

// chatKey is the conversation key of the terminal session.
const chatKey = "terminal"

func main() {
	flag.Parse()

	cfg, err := config.LoadForMode(config.ToolMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithWriter(cfg.LogLevel, os.Stderr)

	ctx := context.Background()
	classifier, err := newClassifier(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to create classifier")
		os.Exit(1)
	}
	defer func() { _ = classifier.Close() }()

	if *chatFlag {
		if err := chat(ctx, cfg, classifier, log, os.Stdin, os.Stdout); err != nil {
			log.WithError(err).Error("Chat failed")
			os.Exit(1)
		}
		return
	}

	var input io.Reader = os.Stdin
	if *textFlag != "" {
		input = strings.NewReader(*textFlag)
	}
	if err := classifyLines(ctx, classifier, cfg.NLUConfidenceThreshold, input, os.Stdout); err != nil {
		log.WithError(err).Error("Classification failed")
		os.Exit(1)
	}
}

func newClassifier(ctx context.Context, cfg *config.Config) (nlu.Classifier, error) {
	if *localFlag {
		return nlu.NewUtteranceClassifier(nil)
	}
	return nlu.NewClassifier(ctx, nlu.SettingsFromConfig(cfg))
}

// classifyLines prints one row per non-blank input line.
func classifyLines(ctx context.Context, c nlu.Classifier, threshold float64, r io.Reader, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TEXT\tINTENT\tSCORE\tROUTED\tPROVIDER\tENTITIES")

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, config.ClassifierRequest)
		result, err := c.Classify(cctx, text)
		cancel()
		if err != nil {
			_, _ = fmt.Fprintf(tw, "%s\terror: %v\t\t\t\t\n", text, err)
			continue
		}

		top := result.Top()
		routed := "default"
		if top.Name != "" && top.Name != nlu.None && top.Score >= threshold {
			routed = string(top.Name)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			text, top.Name, top.Score, routed, result.Provider, formatEntities(result.Entities))
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return tw.Flush()
}

func formatEntities(entities []nlu.Entity) string {
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, fmt.Sprintf("%s=%q", e.Type, e.Value))
	}
	return strings.Join(parts, ",")
}

// chat runs a terminal conversation through the dialog engine.
func chat(ctx context.Context, cfg *config.Config, c nlu.Classifier, log *logger.Logger, r io.Reader, w io.Writer) error {
	engine, err := dialog.NewEngine(dialog.EngineConfig{
		Store: session.NewMemoryStore(),
		Dispatcher: dialog.NewDispatcher(c,
			dialog.NewDefaultRegistry(dialog.NewCheckInResolver(cfg.Location())),
			dialog.WithThreshold(cfg.NLUConfidenceThreshold)),
		Logger:        log,
		MaxInputRunes: cfg.Bot.MaxInputRunes,
	})
	if err != nil {
		return err
	}

	msgs, err := engine.ConversationStarted(ctx, chatKey)
	printMessages(w, msgs)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	for {
		_, _ = fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(w)
			return scanner.Err()
		}
		msgs, err := engine.HandleText(ctx, chatKey, scanner.Text())
		printMessages(w, msgs)
		if err != nil {
			log.WithError(err).Warn("Turn failed")
		}
	}
}

func printMessages(w io.Writer, msgs []dialog.Message) {
	for _, m := range msgs {
		if !m.IsCard() {
			_, _ = fmt.Fprintf(w, "Muffin: %s\n", m.Text)
			continue
		}
		card := m.Card
		_, _ = fmt.Fprintf(w, "Muffin: [%s] %s\n", card.Title, card.Subtitle)
		for _, u := range card.MediaURLs {
			_, _ = fmt.Fprintf(w, "  media: %s\n", u)
		}
		for _, b := range card.Buttons {
			_, _ = fmt.Fprintf(w, "  (%s) %s\n", b.Label, b.URL)
		}
	}
}
