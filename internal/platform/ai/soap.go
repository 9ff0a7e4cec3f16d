// Package ai provides an optional assistant that drafts SOAP notes from a
// consultation summary. It calls an external generative API over HTTP; the
// result is a draft only and the doctor remains responsible for the final
// note. When no API key is configured the generator reports itself disabled
// and the rest of the system works unaffected.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 30 * time.Second
)

// SOAPNote is a structured clinical note draft.
type SOAPNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// ConsultationSummary is the input for note generation.
type ConsultationSummary struct {
	ChiefComplaint string `json:"chief_complaint"`
	Vitals         string `json:"vitals,omitempty"`
	Diagnosis      string `json:"diagnosis,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Generator drafts SOAP notes via a generative language API.
type Generator struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// Option configures a Generator.
type Option func(*Generator)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.client = c }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(g *Generator) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithModel overrides the model name.
func WithModel(m string) Option {
	return func(g *Generator) { g.model = m }
}

// NewGenerator creates a Generator. An empty apiKey produces a disabled
// generator; callers should check Enabled before offering the feature.
func NewGenerator(apiKey string, opts ...Option) *Generator {
	g := &Generator{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether an API key is configured.
func (g *Generator) Enabled() bool {
	return g.apiKey != ""
}

// generateContent request/response shapes, matching the Gemini REST API.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// soapSchema constrains the model output to the four SOAP fields.
var soapSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"subjective": {"type": "STRING"},
		"objective":  {"type": "STRING"},
		"assessment": {"type": "STRING"},
		"plan":       {"type": "STRING"}
	},
	"required": ["subjective", "objective", "assessment", "plan"]
}`)

// Generate drafts a SOAP note from the consultation summary.
func (g *Generator) Generate(ctx context.Context, summary ConsultationSummary) (*SOAPNote, error) {
	if !g.Enabled() {
		return nil, fmt.Errorf("ai: note generation is not configured")
	}

	prompt := buildPrompt(summary)

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   soapSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ai: model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ai: decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("ai: model returned no candidates")
	}

	var note SOAPNote
	if err := json.Unmarshal([]byte(out.Candidates[0].Content.Parts[0].Text), &note); err != nil {
		return nil, fmt.Errorf("ai: parse note: %w", err)
	}
	return &note, nil
}

func buildPrompt(s ConsultationSummary) string {
	var b strings.Builder
	b.WriteString("Draft a clinical SOAP note for an outpatient visit. ")
	b.WriteString("Respond with JSON containing subjective, objective, assessment and plan fields.\n")
	fmt.Fprintf(&b, "Chief complaint: %s\n", s.ChiefComplaint)
	if s.Vitals != "" {
		fmt.Fprintf(&b, "Vital signs: %s\n", s.Vitals)
	}
	if s.Diagnosis != "" {
		fmt.Fprintf(&b, "Working diagnosis: %s\n", s.Diagnosis)
	}
	if s.Notes != "" {
		fmt.Fprintf(&b, "Doctor notes: %s\n", s.Notes)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

// Handler exposes the note generator over HTTP.
type Handler struct {
	gen *Generator
}

func NewHandler(gen *Generator) *Handler {
	return &Handler{gen: gen}
}

// RegisterRoutes registers the AI endpoints on the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/soap", h.GenerateSOAP)
}

// GenerateSOAP handles POST /ai/soap.
func (h *Handler) GenerateSOAP(c echo.Context) error {
	if !h.gen.Enabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "note generation is not configured")
	}

	var summary ConsultationSummary
	if err := c.Bind(&summary); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(summary.ChiefComplaint) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chief_complaint is required")
	}

	note, err := h.gen.Generate(c.Request().Context(), summary)
	if err != nil {
		log.Error().Err(err).Msg("soap note generation failed")
		return echo.NewHTTPError(http.StatusBadGateway, "note generation failed")
	}

	return c.JSON(http.StatusOK, note)
}
