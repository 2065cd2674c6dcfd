package vocab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/dvloznov/artifact-engine/internal/logger"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when GEMINI_MODEL is unset.
const DefaultModelName = "gemini-2.5-flash"

// ContentGenerator is the slice of the genai client the vocabulary needs.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ModelVocabulary widens store item lists with descriptions suggested by a
// generative model. Model output is untrusted: every string is stripped of
// markup and every price range is validated before it is merged.
type ModelVocabulary struct {
	gen    ContentGenerator
	model  string
	policy *bluemonday.Policy
}

// NewModelVocabulary wraps an existing generator.
func NewModelVocabulary(gen ContentGenerator, model string) *ModelVocabulary {
	if model == "" {
		model = DefaultModelName
	}
	return &ModelVocabulary{gen: gen, model: model, policy: bluemonday.StrictPolicy()}
}

// NewGeminiVocabulary creates a genai client from the environment
// (GOOGLE_API_KEY or Vertex settings) and wraps it.
func NewGeminiVocabulary(ctx context.Context, model string) (*ModelVocabulary, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, errs.Configf("llm-vocab", "create genai client: %v", err)
	}
	return NewModelVocabulary(client.Models, model), nil
}

type suggestedItem struct {
	Description string  `json:"description"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
}

// Enrich asks the model for up to perCategory new items in every store
// category of p and appends the usable ones. Categories are processed in
// profile order; the first transport or decode failure aborts.
func (m *ModelVocabulary) Enrich(ctx context.Context, p *Profile, perCategory int) error {
	log := logger.FromContext(ctx)
	if perCategory <= 0 {
		return nil
	}

	for i := range p.Receipt.Categories {
		cat := &p.Receipt.Categories[i]
		items, err := m.suggest(ctx, p.Region, p.Currency, *cat, perCategory)
		if err != nil {
			return fmt.Errorf("Enrich: category %s: %w", cat.Name, err)
		}

		known := make(map[string]bool, len(cat.Items))
		for _, it := range cat.Items {
			known[strings.ToLower(it.Description)] = true
		}
		added := 0
		for _, it := range items {
			key := strings.ToLower(it.Description)
			if known[key] {
				continue
			}
			known[key] = true
			cat.Items = append(cat.Items, it)
			added++
		}
		log.Info().
			Str("category", cat.Name).
			Int("suggested", len(items)).
			Int("added", added).
			Msg("Model vocabulary merged")
	}
	return p.Validate()
}

func (m *ModelVocabulary) suggest(ctx context.Context, region, currency string, cat StoreCategory, n int) ([]StoreItem, error) {
	examples := make([]string, 0, len(cat.Items))
	for _, it := range cat.Items {
		examples = append(examples, it.Description)
	}

	prompt := fmt.Sprintf(
		"You generate product names for synthetic till receipts.\n\n"+
			"Region: %s. Currency: %s. Store category: %s.\n"+
			"Existing items: %s.\n\n"+
			"Return %d NEW items a shop of this category would plausibly sell.\n"+
			"Output a JSON array of objects with fields:\n"+
			"- \"description\": string, at most 40 characters\n"+
			"- \"min_price\": number, typical lowest shelf price\n"+
			"- \"max_price\": number, typical highest shelf price\n\n"+
			"Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n",
		region, currency, cat.Name, strings.Join(examples, ", "), n)

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}
	resp, err := m.gen.GenerateContent(ctx, m.model, contents, nil)
	if err != nil {
		return nil, errs.Configf("llm-vocab", "generate content: %v", err)
	}
	raw := resp.Text()
	if raw == "" {
		return nil, errs.Configf("llm-vocab", "empty response from model")
	}

	var parsed []suggestedItem
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &parsed); err != nil {
		return nil, errs.Configf("llm-vocab", "unmarshal JSON: %v (raw response: %s)", err, raw)
	}

	items := make([]StoreItem, 0, len(parsed))
	for _, s := range parsed {
		if it, ok := m.sanitize(s); ok {
			items = append(items, it)
		}
		if len(items) == n {
			break
		}
	}
	return items, nil
}

// sanitize strips markup, collapses whitespace and rejects unusable prices.
func (m *ModelVocabulary) sanitize(s suggestedItem) (StoreItem, bool) {
	desc := strings.Join(strings.Fields(m.policy.Sanitize(s.Description)), " ")
	if desc == "" || len(desc) > 40 {
		return StoreItem{}, false
	}
	lo := decimal.NewFromFloat(s.MinPrice).Round(2)
	hi := decimal.NewFromFloat(s.MaxPrice).Round(2)
	if !lo.IsPositive() || lo.GreaterThan(hi) {
		return StoreItem{}, false
	}
	return StoreItem{Description: desc, Price: DecRange{Min: Dec{lo}, Max: Dec{hi}}}, true
}

// cleanModelJSON trims Markdown fences and anything outside the outermost
// JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
