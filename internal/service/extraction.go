package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/weftware/weft/internal/telemetry"
)

// ChatClient defines the interface for JSON-mode text generation
type ChatClient interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

const decisionSystemPrompt = `You are an expert at identifying decisions from meeting transcripts and notes.

A decision is a choice that was made about how to proceed with something.
Look for patterns like:
- "We decided to..."
- "Let's go with..."
- "The choice is..."
- "We're going to..."
- "We'll use..."
- "The plan is..."

For each decision found, extract:
- what: A clear, concise statement of what was decided (the choice made)
- why: The reasoning or justification given for the decision (if mentioned)
- confidence: A score from 0.0 to 1.0 indicating how confident you are this is a real decision

Be conservative - only extract clear decisions, not vague intentions or possibilities.
If no clear decisions are found, return an empty list.`

const decisionUserPrompt = `Analyze the following text and extract any decisions made.

TEXT:
%s

Respond with a JSON object containing a "decisions" array. Each decision should have:
- "what": string (the decision made)
- "why": string (the reasoning, or empty string if not stated)
- "confidence": number between 0.0 and 1.0

Example response:
{"decisions": [{"what": "Use PostgreSQL", "why": "JSON support", "confidence": 0.9}]}

If no decisions are found, respond with: {"decisions": []}`

const assumptionSystemPrompt = `You are an expert at identifying assumptions from meeting transcripts and notes.

Assumptions include:
- Explicit constraints mentioned ("We're assuming the API is stable")
- Implicit beliefs underlying decisions ("Using React implies a modern browser")
- Dependencies on external factors ("This works if the server is online")
- Unstated prerequisites for plans to work

For each assumption found, extract:
- statement: A clear statement of what is being assumed
- explicit: true if the assumption was stated directly, false if it was implied

Be thorough - look for both stated and unstated assumptions.
If no assumptions are found, return an empty list.`

const assumptionUserPrompt = `Analyze the following text and extract any assumptions being made.

TEXT:
%s

Respond with a JSON object containing an "assumptions" array. Each assumption should have:
- "statement": string (what is being assumed)
- "explicit": boolean (true if stated directly, false if implied)

Example response:
{"assumptions": [{"statement": "The API will remain stable", "explicit": true}]}

If no assumptions are found, respond with: {"assumptions": []}`

const summarySystemPrompt = `You condense working notes and meeting transcripts.
Write one or two plain sentences capturing what the text is about.
No preamble, no markdown.`

const summaryUserPrompt = `Summarize the following text.

TEXT:
%s

Respond with a JSON object: {"summary": "..."}`

// ExtractionConfig controls decision filtering.
type ExtractionConfig struct {
	MinConfidence float64
}

// DefaultExtractionConfig returns the default extraction configuration.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		MinConfidence: 0.7,
	}
}

// ExtractedDecision is one decision as the model reported it.
type ExtractedDecision struct {
	What       string  `json:"what"`
	Why        string  `json:"why"`
	Confidence float64 `json:"confidence"`
}

// ExtractedAssumption is one assumption as the model reported it.
type ExtractedAssumption struct {
	Statement string `json:"statement"`
	Explicit  bool   `json:"explicit"`
}

// DecisionExtraction carries the filtered decisions and the model that
// produced them. Model is "unknown" when the output could not be parsed.
type DecisionExtraction struct {
	Decisions []ExtractedDecision
	Model     string
}

// AssumptionExtraction carries the filtered assumptions and the model that
// produced them.
type AssumptionExtraction struct {
	Assumptions []ExtractedAssumption
	Model       string
}

// Extractor pulls decisions and assumptions out of raw fragment text using
// a JSON-mode chat model.
type Extractor struct {
	chat ChatClient
	cfg  ExtractionConfig
}

// NewExtractor creates a new Extractor instance
func NewExtractor(chat ChatClient) *Extractor {
	return NewExtractorWithConfig(chat, DefaultExtractionConfig())
}

// NewExtractorWithConfig creates a new Extractor with explicit configuration.
func NewExtractorWithConfig(chat ChatClient, cfg ExtractionConfig) *Extractor {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.7
	}
	return &Extractor{
		chat: chat,
		cfg:  cfg,
	}
}

// ExtractDecisions asks the model for decisions in the content and keeps
// those whose confidence clears the threshold. That is the only filter: a
// decision with an empty statement but high confidence survives.
//
// Malformed model output is not an error; it degrades to an empty result
// tagged model "unknown". Provider errors propagate.
func (e *Extractor) ExtractDecisions(ctx context.Context, content string) (*DecisionExtraction, error) {
	ctx, span := telemetry.StartSpan(ctx, "Extractor.ExtractDecisions", telemetry.SpanAttributes{
		Operation: "extract_decisions",
	})
	defer span.End()

	raw, err := e.chat.GenerateJSON(ctx, decisionSystemPrompt, fmt.Sprintf(decisionUserPrompt, content))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Decisions []ExtractedDecision `json:"decisions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Printf("extraction: unparseable decision output: %v", err)
		return &DecisionExtraction{Decisions: []ExtractedDecision{}, Model: "unknown"}, nil
	}

	kept := make([]ExtractedDecision, 0, len(parsed.Decisions))
	for _, d := range parsed.Decisions {
		if d.Confidence < e.cfg.MinConfidence {
			continue
		}
		d.Confidence = clampUnit(d.Confidence)
		kept = append(kept, d)
	}

	return &DecisionExtraction{Decisions: kept, Model: e.chat.Model()}, nil
}

// ExtractAssumptions asks the model for assumptions in the content and
// keeps those with a non-blank statement. That is the only filter; both
// explicit and implied assumptions survive. When the model omits the
// explicit flag the assumption counts as stated directly.
//
// Malformed output degrades the same way ExtractDecisions does.
func (e *Extractor) ExtractAssumptions(ctx context.Context, content string) (*AssumptionExtraction, error) {
	ctx, span := telemetry.StartSpan(ctx, "Extractor.ExtractAssumptions", telemetry.SpanAttributes{
		Operation: "extract_assumptions",
	})
	defer span.End()

	raw, err := e.chat.GenerateJSON(ctx, assumptionSystemPrompt, fmt.Sprintf(assumptionUserPrompt, content))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Assumptions []struct {
			Statement string `json:"statement"`
			Explicit  *bool  `json:"explicit"`
		} `json:"assumptions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Printf("extraction: unparseable assumption output: %v", err)
		return &AssumptionExtraction{Assumptions: []ExtractedAssumption{}, Model: "unknown"}, nil
	}

	kept := make([]ExtractedAssumption, 0, len(parsed.Assumptions))
	for _, a := range parsed.Assumptions {
		if strings.TrimSpace(a.Statement) == "" {
			continue
		}
		explicit := true
		if a.Explicit != nil {
			explicit = *a.Explicit
		}
		kept = append(kept, ExtractedAssumption{Statement: a.Statement, Explicit: explicit})
	}

	return &AssumptionExtraction{Assumptions: kept, Model: e.chat.Model()}, nil
}

// Summarize asks the model for a one-or-two sentence summary of the
// content. Malformed output yields an empty summary, not an error.
func (e *Extractor) Summarize(ctx context.Context, content string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Extractor.Summarize", telemetry.SpanAttributes{
		Operation: "summarize",
	})
	defer span.End()

	raw, err := e.chat.GenerateJSON(ctx, summarySystemPrompt, fmt.Sprintf(summaryUserPrompt, content))
	if err != nil {
		return "", err
	}

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Printf("extraction: unparseable summary output: %v", err)
		return "", nil
	}

	return strings.TrimSpace(parsed.Summary), nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
