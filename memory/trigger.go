package memory

import (
	"context"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/plugin"
)

// TriggerPlugin drives the message_count trigger automatically: it calls
// svc.MaybeTriggerOnEvent after every agent step, which is a no-op unless
// svc was configured with TriggerMessageCount. The session_end trigger is
// not wired into the Runner; callers drive it by calling Service.EndSession
// when they end a session.
type TriggerPlugin struct {
	plugin.Base
	svc *Service
}

// NewTriggerPlugin wires svc's message_count trigger into the callback
// pipeline.
func NewTriggerPlugin(svc *Service) *TriggerPlugin {
	return &TriggerPlugin{Base: plugin.Base{PluginName: "memory-trigger"}, svc: svc}
}

func (p *TriggerPlugin) AfterAgent(ctx context.Context, cs *agent.CallbackState) error {
	if cs.Session == nil {
		return nil
	}
	return p.svc.MaybeTriggerOnEvent(ctx, cs.Session)
}
