package llm

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"

	"github.com/silfenpath/adk/event"
)

// ToSchemaMessages converts Content history into Eino schema.Message
// values, the wire shape every eino-ext model provider consumes.
func ToSchemaMessages(contents []event.Content) []*schema.Message {
	out := make([]*schema.Message, 0, len(contents))
	for _, c := range contents {
		out = append(out, toSchemaMessage(c))
	}
	return out
}

func toSchemaMessage(c event.Content) *schema.Message {
	msg := &schema.Message{Role: toSchemaRole(c.Role)}
	for _, p := range c.Parts {
		switch {
		case p.Text != "":
			if msg.Content != "" {
				msg.Content += "\n"
			}
			msg.Content += p.Text
		case p.FunctionCall != nil:
			args, _ := json.Marshal(p.FunctionCall.Args)
			msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
				ID: p.FunctionCall.ID,
				Function: schema.FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case p.FunctionResponse != nil:
			resp, _ := json.Marshal(p.FunctionResponse.Response)
			msg.Role = schema.Tool
			msg.ToolCallID = p.FunctionResponse.ID
			msg.Content = string(resp)
		}
	}
	return msg
}

func toSchemaRole(r event.Role) schema.RoleType {
	switch r {
	case event.RoleModel:
		return schema.Assistant
	case event.RoleFunction:
		return schema.Tool
	default:
		return schema.User
	}
}

// FromSchemaMessage converts an Eino schema.Message response back into an
// event.Content, the inverse of ToSchemaMessages for the assistant turn.
func FromSchemaMessage(msg *schema.Message) event.Content {
	c := event.Content{Role: event.RoleModel}
	if msg.Content != "" {
		c.Parts = append(c.Parts, event.TextPart(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		c.Parts = append(c.Parts, event.Part{
			FunctionCall: &event.FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args},
		})
	}
	return c
}

// ToSchemaTools converts ToolDeclaration values into Eino schema.ToolInfo
// values for binding onto a model.ToolCallingChatModel.
func ToSchemaTools(decls []ToolDeclaration) []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(decls))
	for _, d := range decls {
		info := &schema.ToolInfo{Name: d.Name, Desc: d.Description}
		if len(d.Parameters) > 0 {
			params := make(map[string]*schema.ParameterInfo, len(d.Parameters))
			for name, p := range d.Parameters {
				params[name] = toParameterInfo(p)
			}
			info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
		}
		out = append(out, info)
	}
	return out
}

func toParameterInfo(p Parameter) *schema.ParameterInfo {
	info := &schema.ParameterInfo{
		Type:     dataTypeOf(p.Type),
		Desc:     p.Description,
		Required: p.Required,
		Enum:     p.Enum,
	}
	if p.Items != nil {
		info.ElemInfo = toParameterInfo(*p.Items)
	}
	if len(p.Properties) > 0 {
		sub := make(map[string]*schema.ParameterInfo, len(p.Properties))
		for name, child := range p.Properties {
			sub[name] = toParameterInfo(child)
		}
		info.SubParams = sub
	}
	return info
}

func dataTypeOf(t string) schema.DataType {
	switch t {
	case "string":
		return schema.String
	case "number":
		return schema.Number
	case "integer":
		return schema.Integer
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
