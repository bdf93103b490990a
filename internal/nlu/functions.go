package nlu

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Function names exposed to the LLM providers.
const (
	fnGreeting          = "greeting"
	fnHelp              = "help"
	fnThingsToDo        = "things_to_do"
	fnCheckAvailability = "check_availability"
	fnNone              = "none"

	paramConfidence = "confidence"
	paramCheckIn    = "check_in"
)

// functionIntent maps function names to intents.
var functionIntent = map[string]Intent{
	fnGreeting:          Greeting,
	fnHelp:              Help,
	fnThingsToDo:        ThingsToDo,
	fnCheckAvailability: CheckAvailability,
	fnNone:              None,
}

// defaultConfidence is used when a model calls a function without a score.
const defaultConfidence = 0.8

func confidenceSchema() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeNumber,
		Description: "How sure you are that this function matches, from 0 to 1.",
	}
}

// BuildIntentFunctions returns one function declaration per intent.
// Descriptions say WHAT each function covers; the system prompt says WHEN.
func BuildIntentFunctions() []*genai.FunctionDeclaration {
	simple := func(name, description string) *genai.FunctionDeclaration {
		return &genai.FunctionDeclaration{
			Name:        name,
			Description: description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{paramConfidence: confidenceSchema()},
				Required:   []string{paramConfidence},
			},
		}
	}

	return []*genai.FunctionDeclaration{
		simple(fnGreeting, "The guest says hello or introduces themselves."),
		simple(fnHelp, "The guest asks what the bot can do or asks for help."),
		simple(fnThingsToDo, "The guest asks about activities, sights or things to do around New Plymouth."),
		{
			Name:        fnCheckAvailability,
			Description: "The guest wants to book, check room availability, or says when they want to arrive.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					paramConfidence: confidenceSchema(),
					paramCheckIn: {
						Type:        genai.TypeString,
						Description: "The arrival date exactly as the guest wrote it, e.g. \"next Friday\" or \"12 March\". Omit when no date is given.",
					},
				},
				Required: []string{paramConfidence},
			},
		},
		simple(fnNone, "Anything else, including messages unrelated to the motel."),
	}
}

// resultFromCall builds a Result from a function call made by a model.
func resultFromCall(text, name string, args map[string]any) (*Result, error) {
	intent, ok := functionIntent[name]
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", name)
	}

	score := defaultConfidence
	if raw, exists := args[paramConfidence]; exists {
		v, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("parameter %q for function %q is not a number (got %T)", paramConfidence, name, raw)
		}
		score = clampScore(v)
	}

	res := &Result{Intents: []IntentScore{{Name: intent, Score: score}}}

	if raw, exists := args[paramCheckIn]; exists && intent == CheckAvailability {
		phrase, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q for function %q is not a string (got %T)", paramCheckIn, name, raw)
		}
		if phrase = strings.TrimSpace(phrase); phrase != "" {
			res.Entities = append(res.Entities, locatePhrase(text, EntityCheckIn, phrase))
		}
	}

	return res, nil
}
