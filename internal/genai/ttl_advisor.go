// internal/genai/ttl_advisor.go
package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/FairForge/edgeplane/internal/optimizer"
)

const ttlSystemPrompt = "You are a CDN optimization expert. Always respond with valid JSON only."

const ttlPromptFormat = `You are a CDN optimization expert. Analyze this file's cache behavior and recommend an optimal TTL (Time To Live) in seconds.

File: %s
File Type: %s
Total Requests: %d
Cache Hit Ratio: %s
Traffic Spike Detected: %t

Consider:
1. Static files (images, fonts) can have longer TTL (hours/days)
2. Dynamic files (HTML, API) need shorter TTL (minutes)
3. High traffic files benefit from longer TTL to reduce origin load
4. Low hit ratio may indicate TTL is too short
5. Traffic spikes require increased TTL

Respond ONLY with valid JSON in this exact format:
{
  "recommended_ttl": <seconds as integer>,
  "reason": "<concise explanation>"
}`

// TTLAdvisor implements optimizer.Advisor on top of the completion client
type TTLAdvisor struct {
	client *Client
}

// NewTTLAdvisor creates a model-backed TTL advisor
func NewTTLAdvisor(client *Client) *TTLAdvisor {
	return &TTLAdvisor{client: client}
}

// RecommendTTL asks the model for a TTL and reason
func (a *TTLAdvisor) RecommendTTL(ctx context.Context, file string, snap optimizer.StatsSnapshot, spike bool) (int, string, error) {
	prompt := fmt.Sprintf(ttlPromptFormat,
		file, snap.FileType, snap.TotalRequests, snap.CacheHitRatio, spike)

	var out struct {
		RecommendedTTL int    `json:"recommended_ttl"`
		Reason         string `json:"reason"`
	}
	if err := a.client.CompleteJSON(ctx, ttlSystemPrompt, prompt, 0.3, 200, &out); err != nil {
		return 0, "", err
	}
	if out.RecommendedTTL < 0 {
		return 0, "", errors.New("genai: negative TTL in completion")
	}
	return out.RecommendedTTL, out.Reason, nil
}
