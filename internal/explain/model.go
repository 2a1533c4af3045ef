// internal/explain/model.go
package explain

import (
	"context"
	"fmt"

	"github.com/FairForge/edgeplane/internal/genai"
	"github.com/FairForge/edgeplane/internal/logstore"
	"go.uber.org/zap"
)

const explainSystemPrompt = "You are a CDN expert explaining cache behavior. Keep explanations concise and technical but clear. Always respond with valid JSON only."

const explainPromptFormat = `Explain this CDN request to a technical user in simple terms:

File: %s
Cache Status: %s
Edge Server: %s
TTL: %d seconds (%s)
Client IP: %s
First Request: %t

Provide 3 concise explanations:
1. Cache behavior (why HIT/MISS)
2. Routing decision (why this edge server)
3. TTL reasoning (why this cache duration)

Respond ONLY with valid JSON:
{
  "cache": "<explanation>",
  "routing": "<explanation>",
  "ttl": "<explanation>",
  "summary": "<one-line overall summary>"
}`

// ModelExplainer generates explanations with an external model and
// falls back to the template path on any failure, so callers never
// observe a model error
type ModelExplainer struct {
	client   *genai.Client
	fallback *TemplateExplainer
	logger   *zap.Logger
}

// NewModelExplainer creates a model-backed explainer
func NewModelExplainer(client *genai.Client, logger *zap.Logger) *ModelExplainer {
	return &ModelExplainer{
		client:   client,
		fallback: NewTemplateExplainer(),
		logger:   logger,
	}
}

// Explain asks the model for the three rationale strings
func (e *ModelExplainer) Explain(ctx context.Context, rec logstore.LogRecord) Explanation {
	first := e.fallback.firstSight(rec.RequestPath)

	prompt := fmt.Sprintf(explainPromptFormat,
		rec.RequestPath, rec.CacheStatus, rec.EdgeServer,
		rec.TTL, formatTTLLong(rec.TTL), rec.ClientIP, first)

	var out struct {
		Cache   string `json:"cache"`
		Routing string `json:"routing"`
		TTL     string `json:"ttl"`
		Summary string `json:"summary"`
	}
	if err := e.client.CompleteJSON(ctx, explainSystemPrompt, prompt, 0.5, 300, &out); err != nil {
		e.logger.Warn("model explanation failed, using template",
			zap.String("path", rec.RequestPath),
			zap.Error(err))
		exp := e.fallback.Explain(ctx, rec)
		return exp
	}

	return Explanation{
		RequestID:     rec.RequestID,
		RequestPath:   rec.RequestPath,
		Timestamp:     rec.Timestamp,
		EdgeServer:    rec.EdgeServer,
		CacheStatus:   rec.CacheStatus,
		TTL:           rec.TTL,
		TTLHuman:      formatTTLLong(rec.TTL),
		CacheReason:   out.Cache,
		RoutingReason: out.Routing,
		TTLReason:     out.TTL,
		Summary:       out.Summary,
		Method:        MethodModel,
	}
}
