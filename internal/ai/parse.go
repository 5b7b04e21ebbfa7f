package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/casewire/casefile-processor/internal/models"
)

// ExtractedEntity is one (text, type) pair reported by the model.
type ExtractedEntity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type entityPayload struct {
	Entities []ExtractedEntity `json:"entities"`
}

// ParseError marks model output that could not be turned into entities.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("entity payload parse failed: %s", e.Reason)
}

var jsonArrayPattern = regexp.MustCompile(`\[[\s\S]*\]`)

// Type aliases the model uses despite instructions.
var entityTypeAliases = map[string]models.EntityType{
	"PERSON":       models.EntityPerson,
	"ORG":          models.EntityOrg,
	"ORGANIZATION": models.EntityOrg,
	"DATE":         models.EntityDate,
	"LOCATION":     models.EntityLocation,
	"PLACE":        models.EntityLocation,
	"LEGAL_TERM":   models.EntityLegalTerm,
	"LEGALTERM":    models.EntityLegalTerm,
}

// ParseEntityPayload parses a generative model reply into entities.
// It tries the instructed shape ({"entities":[...]}), then a bare array,
// then an array embedded in surrounding prose, before giving up.
// Entities with unknown types or empty text are dropped, not errors.
func ParseEntityPayload(raw string) ([]ExtractedEntity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Reason: "empty response"}
	}

	// Models often wrap JSON in markdown fences even when asked not to.
	trimmed = stripCodeFence(trimmed)

	var payload entityPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.Entities != nil {
		return sanitize(payload.Entities), nil
	}

	var bare []ExtractedEntity
	if err := json.Unmarshal([]byte(trimmed), &bare); err == nil {
		return sanitize(bare), nil
	}

	// Last resort: locate an embedded JSON array in free-form text.
	if match := jsonArrayPattern.FindString(trimmed); match != "" {
		if err := json.Unmarshal([]byte(match), &bare); err == nil {
			return sanitize(bare), nil
		}
	}

	return nil, &ParseError{Reason: "no JSON entities found in response"}
}

// NormalizeEntityType maps a raw model type string onto the taxonomy.
func NormalizeEntityType(raw string) (models.EntityType, bool) {
	t, ok := entityTypeAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return t, ok
}

func sanitize(in []ExtractedEntity) []ExtractedEntity {
	out := make([]ExtractedEntity, 0, len(in))
	for _, e := range in {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		t, ok := NormalizeEntityType(e.Type)
		if !ok {
			continue
		}
		out = append(out, ExtractedEntity{Text: text, Type: string(t)})
	}
	return out
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
