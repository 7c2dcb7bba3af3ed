package adapter

import "context"

// ContentGenerator is the port for the generative text API. Stateless:
// the only side effect is the outbound call.
//
// apiKey and model are fully resolved by the caller (bot override over
// process default). An empty apiKey fails with domain.ErrNoAPIKey; the
// engine surfaces that as a failed attempt, never a silent skip.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt, apiKey, model string) (string, error)
	// TestConnection performs a throwaway generation to check that the
	// provider accepts apiKey.
	TestConnection(ctx context.Context, apiKey string) error
}
