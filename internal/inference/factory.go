// factory.go selects the Inference Client backend by configuration,
// mirroring the shape of the teacher's CreateOCRProvider but choosing
// between Local and Remote instead of Gemini and Mistral.
package inference

import "context"

// Deps carries what each backend needs to construct itself.
type Deps struct {
	// Local
	APIKey         string
	ModelName      string
	MaxConcurrency int

	// Remote
	RemoteURL  string
	AuthToken  string
	RemotePool int
}

// New builds the configured backend: Remote if RemoteURL is set (selecting
// the remote/subprocess-separated deployment shape), Local otherwise. When
// Local is selected, the returned *LocalEngine still needs Init(ctx,
// apiKey) called before use.
func New(deps Deps) Client {
	if deps.RemoteURL != "" {
		return NewRemoteClient(deps.RemoteURL, deps.AuthToken, deps.RemotePool)
	}
	return NewLocalEngine(deps.ModelName, deps.MaxConcurrency)
}

// InitIfLocal starts the engine if it is a *LocalEngine; a no-op for
// Remote. Centralizes the explicit-start requirement the design notes
// call for.
func InitIfLocal(ctx context.Context, c Client, apiKey string) error {
	if local, ok := c.(*LocalEngine); ok {
		return local.Init(ctx, apiKey)
	}
	return nil
}

// ShutdownIfLocal releases Local's client at teardown; a no-op for Remote.
func ShutdownIfLocal(c Client) {
	if local, ok := c.(*LocalEngine); ok {
		local.Shutdown()
	}
}
