// Package research asks an LLM to re-rate uncertain match candidates. Its
// output is fed back through the matching scorer like any other evidence.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
	"github.com/sells-group/product-match/internal/resilience"
	"github.com/sells-group/product-match/pkg/anthropic"
)

// Config controls the research enhancer.
type Config struct {
	Model         string
	MaxTokens     int64
	RatePerSecond float64
	Burst         int
	// MaxCandidates caps how many uncertain candidates are sent per call.
	MaxCandidates int
}

// DefaultConfig returns the standard research settings.
func DefaultConfig() Config {
	return Config{
		Model:         "claude-haiku-4-5-20251001",
		MaxTokens:     1024,
		RatePerSecond: 2,
		Burst:         2,
		MaxCandidates: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = d.RatePerSecond
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	return c
}

const systemPrompt = `You verify HVAC equipment cross-references. Given a competitor product and
candidate catalog products, rate how likely each candidate is the equivalent
product. Consider brand platform families, model series, capacity and
efficiency. Reply with only a JSON array:
[{"target_sku": "...", "confidence": 0.0-1.0, "reasoning": "..."}]
Use only target_sku values from the candidate list.`

// Enhancer implements matching.ResearchEnhancer over an Anthropic client.
type Enhancer struct {
	client  anthropic.Client
	cfg     Config
	limiter *rate.Limiter
}

var _ matching.ResearchEnhancer = (*Enhancer)(nil)

// NewEnhancer creates a research enhancer.
func NewEnhancer(client anthropic.Client, cfg Config) *Enhancer {
	cfg = cfg.withDefaults()
	return &Enhancer{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}
}

// reply is one entry of the model's JSON answer.
type reply struct {
	TargetSKU  string  `json:"target_sku"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// EnhanceWithResearch implements matching.ResearchEnhancer.
func (e *Enhancer) EnhanceWithResearch(ctx context.Context, p model.CompetitorProduct, uncertain []model.MatchCandidate) ([]model.MatchCandidate, error) {
	if len(uncertain) == 0 {
		return nil, nil
	}
	if len(uncertain) > e.cfg.MaxCandidates {
		uncertain = uncertain[:e.cfg.MaxCandidates]
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "research: rate limit wait")
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    anthropic.CachedSystem(systemPrompt, "1h"),
		Messages:  []anthropic.Message{{Role: "user", Content: buildPrompt(p, uncertain)}},
	})
	if err != nil {
		if anthropic.Retryable(err) {
			return nil, resilience.Transient(err)
		}
		return nil, eris.Wrap(err, "research: create message")
	}
	resp.Usage.LogCost(e.cfg.Model, "research")

	replies, err := parseReplies(resp.Text())
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(uncertain))
	for _, c := range uncertain {
		allowed[c.TargetSKU] = true
	}

	out := make([]model.MatchCandidate, 0, len(replies))
	for _, r := range replies {
		if !allowed[r.TargetSKU] {
			zap.L().Debug("research: ignoring unrequested target", zap.String("target_sku", r.TargetSKU))
			continue
		}
		c := model.MatchCandidate{
			TargetSKU:  r.TargetSKU,
			Confidence: model.Clamp01(r.Confidence),
			Method:     model.MethodAIEnhanced,
			Strategy:   matching.CollaboratorResearch,
			Scores:     model.ScoreBreakdown{Overall: model.Clamp01(r.Confidence)},
		}
		if r.Reasoning != "" {
			c.Reasoning = []string{"research: " + r.Reasoning}
		}
		out = append(out, c)
	}
	return out, nil
}

// parseReplies extracts the JSON array from the model's text, tolerating
// surrounding prose or code fences.
func parseReplies(text string) ([]reply, error) {
	start, end := strings.Index(text, "["), strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, eris.Errorf("research: no JSON array in reply")
	}
	var replies []reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &replies); err != nil {
		return nil, eris.Wrap(err, "research: parse reply")
	}
	return replies, nil
}

func buildPrompt(p model.CompetitorProduct, cands []model.MatchCandidate) string {
	var b strings.Builder
	b.WriteString("Competitor product:\n")
	writeField(&b, "", "sku", p.SKU)
	writeField(&b, "", "company", p.Company)
	writeField(&b, "", "model", p.Model)
	writeField(&b, "", "description", p.Description)
	if p.Price != nil {
		fmt.Fprintf(&b, "- price: %.2f\n", *p.Price)
	}
	for _, k := range slices.Sorted(maps.Keys(p.Specifications)) {
		writeField(&b, "", k, p.Specifications[k])
	}

	b.WriteString("\nCandidates:\n")
	for i, c := range cands {
		fmt.Fprintf(&b, "%d. target_sku: %s (current confidence %.2f, method %s)\n", i+1, c.TargetSKU, c.Confidence, c.Method)
		if item := c.Product; item != nil {
			writeField(&b, "   ", "model", item.Model)
			writeField(&b, "   ", "brand", item.Brand)
			writeField(&b, "   ", "type", item.ProductType)
			if item.Tonnage != nil {
				fmt.Fprintf(&b, "   - tonnage: %g\n", *item.Tonnage)
			}
			if item.SEER != nil {
				fmt.Fprintf(&b, "   - seer: %g\n", *item.SEER)
			}
		}
		for _, r := range c.Reasoning {
			writeField(&b, "   ", "evidence", r)
		}
	}
	return b.String()
}

func writeField(b *strings.Builder, indent, name, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "%s- %s: %s\n", indent, name, value)
	}
}
