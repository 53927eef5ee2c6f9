package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
)

// ErrDisabled is returned when no model provider is configured.
var ErrDisabled = errors.New("narrative provider disabled")

// Translator turns free-text weighting requests ("I bike everywhere
// and hate noise") into slider values. Translation is advisory: the
// result goes through the same validation as manual slider moves and a
// failed translation never touches session state.
type Translator struct {
	client Client
	model  string
	logger *slog.Logger
}

func NewTranslator(client Client, model string, logger *slog.Logger) *Translator {
	return &Translator{client: client, model: model, logger: logger}
}

// Translate asks the model for slider values and keeps only entries
// that name a known group, clamped to the slider range.
func (t *Translator) Translate(ctx context.Context, text string, groups []string) (scoring.Weights, error) {
	if t.client == nil {
		return nil, ErrDisabled
	}

	resp, err := t.client.CreateMessage(ctx, MessageRequest{
		Model:       t.model,
		MaxTokens:   256,
		System:      translateSystem,
		Messages:    []Message{{Role: RoleUser, Content: TranslatePrompt(text, groups)}},
		Temperature: Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("translate weights: %w", err)
	}

	weights, err := parseWeights(resp.Text(), groups)
	if err != nil {
		t.logger.Warn("weight translation unparseable", "error", err, "reply_len", len(resp.Text()))
		return nil, err
	}
	return weights, nil
}

// parseWeights extracts the first JSON object from the model reply and
// filters it against the known groups. Values are rounded and clamped;
// unknown keys are dropped.
func parseWeights(raw string, groups []string) (scoring.Weights, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var parsed map[string]float64
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}

	known := make(map[string]bool, len(groups))
	for _, g := range groups {
		known[g] = true
	}

	out := scoring.Weights{}
	for key, v := range parsed {
		key = strings.ToLower(strings.TrimSpace(key))
		if !known[key] {
			continue
		}
		w := int(math.Round(v))
		if w < 0 {
			w = 0
		} else if w > scoring.MaxWeight {
			w = scoring.MaxWeight
		}
		out[scoring.GroupKey(key)] = w
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("model reply named no known sliders")
	}
	return out, nil
}
