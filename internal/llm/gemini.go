package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/jasper0315/icebreak-app/internal/prompt"
)

// Gemini adapts the google genai SDK to the Provider interface.
type Gemini struct {
	client *genai.Client
	model  string
	params Params
}

func NewGemini(ctx context.Context, apiKey, model string, params Params) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, params: params}, nil
}

func (g *Gemini) StreamReply(ctx context.Context, turns []prompt.Turn, onFragment func(string) error) (string, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, &genai.Content{
			Role:  t.Role,
			Parts: []*genai.Part{{Text: t.Text}},
		})
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.params.Temperature)),
		TopK:            genai.Ptr(float32(g.params.TopK)),
		TopP:            genai.Ptr(float32(g.params.TopP)),
		MaxOutputTokens: int32(g.params.MaxOutputTokens),
	}

	start := time.Now()
	first := true
	var full strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
		if err != nil {
			metricRequests.WithLabelValues("error").Inc()
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if first {
			first = false
			metricFirstFragmentMS.Observe(float64(time.Since(start).Milliseconds()))
		}
		full.WriteString(text)
		if onFragment != nil {
			if err := onFragment(text); err != nil {
				metricRequests.WithLabelValues("aborted").Inc()
				return full.String(), err
			}
		}
	}

	metricRequests.WithLabelValues("ok").Inc()
	metricTotalDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	log.Printf("[llm] reply complete model=%s turns=%d chars=%d in %s", g.model, len(turns), full.Len(), time.Since(start))
	return full.String(), nil
}
