package tool

import (
	"context"

	"github.com/silfenpath/adk/artifact"
	"github.com/silfenpath/adk/llm"
)

func artifactRef(tc *Context) artifact.Ref {
	return artifact.Ref{AppName: tc.AppName, UserID: tc.UserID, SessionID: tc.Session.ID}
}

const (
	TransferToAgentName   = "transfer_to_agent"
	ExitLoopName          = "exit_loop"
	RecallMemoryName      = "recall_memory"
	WriteMemoryName       = "write_memory"
	ForgetName            = "forget"
	LoadArtifactsName     = "load_artifacts"
	GetSessionDetailsName = "get_session_details"
)

// transferToAgent is resolved specially by the Runner (it needs to switch
// the active agent), but it must still exist as a schema-declared Tool so
// the LLM can call it like any other function.
type transferToAgent struct{}

func (transferToAgent) Name() string        { return TransferToAgentName }
func (transferToAgent) Description() string { return "Transfer the conversation to a named sub-agent." }
func (transferToAgent) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{
		"agentName": {Type: "string", Description: "name of the agent to transfer to", Required: true},
	}
}
func (transferToAgent) Run(ctx context.Context, args map[string]any, tc *Context) Result {
	name, _ := args["agentName"].(string)
	return OKResult(map[string]any{"transferred": name})
}

// NewTransferToAgent returns the built-in transfer_to_agent Tool. The
// Runner intercepts this call by name before dispatch to perform the
// actual agent switch; Run here only reports intent for non-intercepted
// callers (e.g. the evaluator replaying a trajectory).
func NewTransferToAgent() Tool { return transferToAgent{} }

type exitLoop struct{}

func (exitLoop) Name() string                         { return ExitLoopName }
func (exitLoop) Description() string                  { return "Exit the current LoopAgent iteration." }
func (exitLoop) Parameters() map[string]llm.Parameter { return nil }
func (exitLoop) Run(ctx context.Context, args map[string]any, tc *Context) Result {
	return OKResult(map[string]any{"exited": true})
}

// NewExitLoop returns the built-in exit_loop Tool. Like transfer_to_agent,
// the Runner intercepts it by name to flip the LoopAgent's exit flag.
func NewExitLoop() Tool { return exitLoop{} }

type recallMemory struct{}

func (recallMemory) Name() string        { return RecallMemoryName }
func (recallMemory) Description() string { return "Search cross-session memory for relevant context." }
func (recallMemory) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{
		"query": {Type: "string", Description: "natural-language search query", Required: true},
	}
}
func (recallMemory) Run(ctx context.Context, args map[string]any, tc *Context) Result {
	query, _ := args["query"].(string)
	if tc.SearchMemory == nil {
		return ErrorResult("memory search is not configured")
	}
	hits, err := tc.SearchMemory(ctx, query, 5)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return OKResult(hits)
}

// NewRecallMemory returns the built-in recall_memory Tool, wrapping
// tc.SearchMemory per spec §4.9's RecallMemoryTool.
func NewRecallMemory() Tool { return recallMemory{} }

// MemoryWriter is the minimal dependency write_memory and forget need; the
// memory package's service satisfies it without this package importing
// memory.
type MemoryWriter interface {
	WriteMemory(ctx context.Context, appName, userID, sessionID, content, category string, keyFacts []string) error
	Forget(ctx context.Context, appName, userID string, query string, ids []string) (int, error)
}

type writeMemory struct{ writer MemoryWriter }

func (w writeMemory) Name() string        { return WriteMemoryName }
func (w writeMemory) Description() string { return "Persist content into cross-session memory." }
func (w writeMemory) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{
		"content":  {Type: "string", Required: true},
		"category": {Type: "string"},
		"keyFacts": {Type: "array", Items: &llm.Parameter{Type: "string"}},
	}
}
func (w writeMemory) Run(ctx context.Context, args map[string]any, tc *Context) Result {
	content, _ := args["content"].(string)
	category, _ := args["category"].(string)
	var keyFacts []string
	if raw, ok := args["keyFacts"].([]any); ok {
		for _, f := range raw {
			if s, ok := f.(string); ok {
				keyFacts = append(keyFacts, s)
			}
		}
	}
	if err := w.writer.WriteMemory(ctx, tc.AppName, tc.UserID, tc.Session.ID, content, category, keyFacts); err != nil {
		return ErrorResult(err.Error())
	}
	return OKResult(map[string]any{"written": true})
}

// NewWriteMemory returns the built-in write_memory Tool.
func NewWriteMemory(writer MemoryWriter) Tool { return writeMemory{writer: writer} }

type forget struct{ writer MemoryWriter }

func (f forget) Name() string { return ForgetName }
func (f forget) Description() string {
	return "Delete memory records matching a query or id list. Requires explicit confirmation."
}
func (f forget) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{
		"query":   {Type: "string"},
		"ids":     {Type: "array", Items: &llm.Parameter{Type: "string"}},
		"confirm": {Type: "boolean", Required: true},
	}
}
func (f forget) Run(ctx context.Context, args map[string]any, tc *Context) Result {
	confirm, _ := args["confirm"].(bool)
	if !confirm {
		return ErrorResult("forget requires confirm=true")
	}
	query, _ := args["query"].(string)
	var ids []string
	if raw, ok := args["ids"].([]any); ok {
		for _, id := range raw {
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
	}
	n, err := f.writer.Forget(ctx, tc.AppName, tc.UserID, query, ids)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return OKResult(map[string]any{"deleted": n})
}

// NewForget returns the built-in forget Tool.
func NewForget(writer MemoryWriter) Tool { return forget{writer: writer} }

type loadArtifacts struct{}

func (loadArtifacts) Name() string { return LoadArtifactsName }
func (loadArtifacts) Description() string {
	return "List the artifact keys available in the current session."
}
func (loadArtifacts) Parameters() map[string]llm.Parameter { return nil }
func (loadArtifacts) Run(ctx context.Context, args map[string]any, tc *Context) Result {
	ref := artifactRef(tc)
	keys, err := tc.Artifacts.ListKeys(ctx, ref)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return OKResult(map[string]any{"keys": keys})
}

// NewLoadArtifacts returns the built-in load_artifacts Tool.
func NewLoadArtifacts() Tool { return loadArtifacts{} }

type getSessionDetails struct{}

func (getSessionDetails) Name() string        { return GetSessionDetailsName }
func (getSessionDetails) Description() string { return "Return metadata about a session by id." }
func (getSessionDetails) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{
		"sessionId": {Type: "string", Required: true},
	}
}
func (getSessionDetails) Run(ctx context.Context, args map[string]any, tc *Context) Result {
	sessionID, _ := args["sessionId"].(string)
	sess, err := tc.SessionSvc.GetSession(ctx, tc.AppName, tc.UserID, sessionID, nil)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return OKResult(map[string]any{
		"id":             sess.ID,
		"lifecycle":      sess.Lifecycle,
		"eventCount":     len(sess.Events),
		"lastUpdateTime": sess.LastUpdateTime,
	})
}

// NewGetSessionDetails returns the built-in get_session_details Tool.
func NewGetSessionDetails() Tool { return getSessionDetails{} }
