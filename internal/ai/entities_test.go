package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casewire/casefile-processor/pkg/logger"
)

type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	responses []string
	errs      []error
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return `{"entities": []}`, nil
}

func TestExtractEntitiesEmptyText(t *testing.T) {
	x := NewEntityExtractor(&fakeGenerator{}, EntityExtractorConfig{}, logger.NewTestLogger())

	entities, failures, err := x.ExtractEntities(context.Background(), "   \n ")

	require.NoError(t, err)
	assert.Zero(t, failures)
	assert.Empty(t, entities)
}

func TestExtractEntitiesSingleWindow(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{`{"entities": [{"text": "Jane Doe", "type": "PERSON"}]}`},
	}
	x := NewEntityExtractor(gen, EntityExtractorConfig{Concurrency: 1}, logger.NewTestLogger())

	entities, failures, err := x.ExtractEntities(context.Background(), "Jane Doe signed the lease.")

	require.NoError(t, err)
	assert.Zero(t, failures)
	require.Len(t, entities, 1)
	assert.Equal(t, "Jane Doe", entities[0].Text)
	assert.Equal(t, 1, gen.calls)
}

func TestExtractEntitiesDedupsAcrossWindows(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{
			`{"entities": [{"text": "Acme Corp", "type": "ORG"}]}`,
			`{"entities": [{"text": "acme corp", "type": "ORG"}, {"text": "Jane Doe", "type": "PERSON"}]}`,
		},
	}
	// Tiny windows force the text to span multiple model calls.
	x := NewEntityExtractor(gen, EntityExtractorConfig{
		WindowChars: 400,
		Concurrency: 1,
	}, logger.NewTestLogger())

	text := strings.Repeat("Acme Corp retained Jane Doe as counsel. ", 20)
	entities, failures, err := x.ExtractEntities(context.Background(), text)

	require.NoError(t, err)
	assert.Zero(t, failures)
	assert.GreaterOrEqual(t, gen.calls, 2)
	require.Len(t, entities, 2)
	assert.Equal(t, "Acme Corp", entities[0].Text)
	assert.Equal(t, "Jane Doe", entities[1].Text)
}

func TestExtractEntitiesSkipsFailedWindows(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{
			"",
			`{"entities": [{"text": "Jane Doe", "type": "PERSON"}]}`,
		},
		errs: []error{errors.New("model unavailable"), nil},
	}
	x := NewEntityExtractor(gen, EntityExtractorConfig{
		WindowChars: 400,
		Concurrency: 1,
	}, logger.NewTestLogger())

	text := strings.Repeat("Jane Doe appeared before the court. ", 20)
	entities, failures, err := x.ExtractEntities(context.Background(), text)

	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	require.Len(t, entities, 1)
	assert.Equal(t, "Jane Doe", entities[0].Text)
}

func TestExtractEntitiesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{
		errs: []error{context.Canceled},
	}
	x := NewEntityExtractor(gen, EntityExtractorConfig{Concurrency: 1}, logger.NewTestLogger())

	_, _, err := x.ExtractEntities(ctx, "some text")

	assert.ErrorIs(t, err, context.Canceled)
}
