package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// GeminiClassifier analyzes tickets with Google's Gemini API. The
// auto-resolve decision is gated here, in exactly one place: the flag is
// cleared when confidence falls below the configured threshold or when the
// model produced no response text to send back to the customer.
type GeminiClassifier struct {
	client    *genai.Client
	model     string
	timeout   time.Duration
	threshold float64
}

// NewGeminiClassifier builds the classifier from config.
func NewGeminiClassifier(ctx context.Context, cfg config.ClassifierConfig) (*GeminiClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("classifier API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClassifier{
		client:    client,
		model:     cfg.Model,
		timeout:   cfg.Timeout(),
		threshold: cfg.AutoResolveThreshold,
	}, nil
}

// analysisWire mirrors the JSON shape requested from the model.
type analysisWire struct {
	CanAutoResolve bool     `json:"can_auto_resolve"`
	Confidence     float64  `json:"confidence"`
	Priority       string   `json:"priority"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	Complexity     string   `json:"complexity"`
	Expertise      []string `json:"expertise"`
	Response       string   `json:"response"`
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"can_auto_resolve": {Type: genai.TypeBoolean},
		"confidence":       {Type: genai.TypeNumber},
		"priority":         {Type: genai.TypeString, Enum: []string{"low", "medium", "high", "urgent"}},
		"category":         {Type: genai.TypeString},
		"tags":             {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"complexity":       {Type: genai.TypeString, Enum: []string{"low", "medium", "high"}},
		"expertise":        {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"response":         {Type: genai.TypeString},
	},
	Required: []string{"can_auto_resolve", "confidence", "priority", "category"},
}

// Analyze sends the ticket payload to Gemini and parses the structured
// analysis. The call is bounded by the configured timeout; a timeout is an
// error like any other and callers fall back per the degradation contract.
func (g *GeminiClassifier) Analyze(ctx context.Context, req Request) (*domain.AIAnalysis, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(req)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini classify: %w", err)
	}

	var wire analysisWire
	if err := json.Unmarshal([]byte(resp.Text()), &wire); err != nil {
		return nil, fmt.Errorf("parse classifier response: %w", err)
	}

	analysis := &domain.AIAnalysis{
		CanAutoResolve: wire.CanAutoResolve,
		Confidence:     clamp01(wire.Confidence),
		Routing: domain.RoutingAnalysis{
			Priority:   domain.TicketPriority(wire.Priority),
			Category:   wire.Category,
			Tags:       wire.Tags,
			Complexity: wire.Complexity,
			Expertise:  wire.Expertise,
		},
		Response: strings.TrimSpace(wire.Response),
	}
	if analysis.Confidence < g.threshold || analysis.Response == "" {
		analysis.CanAutoResolve = false
	}
	return analysis, nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You are the triage engine of a customer support desk. ")
	sb.WriteString("Analyze the ticket below. Decide whether it can be fully answered ")
	sb.WriteString("without a human agent (can_auto_resolve) and, if so, draft that answer ")
	sb.WriteString("in `response`. Always fill the routing fields.\n\n")

	payload := map[string]any{
		"title":         req.Title,
		"description":   req.Description,
		"source":        req.Source,
		"priority":      req.Priority,
		"tags":          req.Tags,
		"custom_fields": req.CustomFields,
	}
	if len(req.CustomerHistory) > 0 {
		history := make([]map[string]any, 0, len(req.CustomerHistory))
		for _, past := range req.CustomerHistory {
			history = append(history, map[string]any{
				"title":      past.Title,
				"status":     past.Status,
				"created_at": past.CreatedAt.Format(time.RFC3339),
			})
		}
		payload["customer_history"] = history
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		// Marshal of string/map payloads cannot realistically fail; keep the
		// prompt usable regardless.
		encoded = []byte(fmt.Sprintf("%v", payload))
	}
	sb.Write(encoded)
	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
