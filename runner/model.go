package runner

import (
	"context"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/errs"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/telemetry"
)

// callModel resolves a's provider by model prefix, streams the response,
// forwarding partial chunks to out without persisting them (spec §4.7d),
// and returns the aggregated final response.
func (r *Runner) callModel(ctx context.Context, inv *Invocation, a *agent.LlmAgent, req *llm.Request, out chan<- event.Event) (*llm.Response, error) {
	var span *telemetry.Span
	if r.telemetry != nil {
		ctx, span = r.telemetry.StartLLMChat(ctx, a.Model, inv.Session.ID, inv.UserID, a.Name()+"-"+inv.Session.ID)
	}
	final, err := r.doCallModel(ctx, inv, a, req, out)
	if span != nil {
		if final != nil && final.Usage != nil {
			span.SetTokens(final.Usage.InputTokens, final.Usage.OutputTokens)
		}
		span.End(err)
	}
	return final, err
}

func (r *Runner) doCallModel(ctx context.Context, inv *Invocation, a *agent.LlmAgent, req *llm.Request, out chan<- event.Event) (*llm.Response, error) {
	provider, ok := r.providers.Resolve(a.Model)
	if !ok {
		return nil, errs.New(errs.KindInternal, inv.ID, "no provider registered for model: "+a.Model)
	}

	ch, err := provider.Generate(ctx, *req)
	if err != nil {
		return nil, errs.Wrap(errs.KindLlmTransport, inv.ID, err)
	}

	var final *llm.Response
	for resp := range ch {
		if resp.Partial {
			partial := event.Event{
				InvocationID: inv.ID,
				Author:       a.Name(),
				Content:      resp.Content,
				Partial:      true,
			}
			select {
			case out <- partial:
			case <-ctx.Done():
			}
			continue
		}
		resp := resp
		final = &resp
	}
	if final == nil {
		return nil, errs.New(errs.KindLlmTransport, inv.ID, "provider closed stream without a final response")
	}
	return final, nil
}
