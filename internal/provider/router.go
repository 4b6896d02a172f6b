package provider

import "context"

// Router dispatches requests to the adapter serving the model's family.
// It implements Client itself, so callers stay family-agnostic.
type Router struct {
	OpenAI    Client
	Anthropic Client
}

// NewRouter wires the two family adapters.
func NewRouter(openai, anthropic Client) *Router {
	return &Router{OpenAI: openai, Anthropic: anthropic}
}

func (r *Router) pick(model string) Client {
	if FamilyFor(model) == FamilyAnthropic {
		return r.Anthropic
	}
	return r.OpenAI
}

// Complete routes a blocking generation by model family.
func (r *Router) Complete(ctx context.Context, req Request) (*Result, error) {
	return r.pick(req.Model).Complete(ctx, req)
}

// Stream routes a streaming generation by model family.
func (r *Router) Stream(ctx context.Context, req Request, emit func(Chunk) error) error {
	return r.pick(req.Model).Stream(ctx, req, emit)
}
