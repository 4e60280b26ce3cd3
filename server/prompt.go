package server

import (
	"context"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/schema"
)

// PromptMessage is a message in a prompt result.
type PromptMessage struct {
	Role    string  `json:"role"` // "user" or "assistant"
	Content Content `json:"content"`
}

// UserMessage returns a user-role text message.
func UserMessage(text string) PromptMessage {
	return PromptMessage{Role: "user", Content: Content{Type: "text", Text: text}}
}

// AssistantMessage returns an assistant-role text message.
func AssistantMessage(text string) PromptMessage {
	return PromptMessage{Role: "assistant", Content: Content{Type: "text", Text: text}}
}

// PromptResult is the result of a prompts/get request.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptArgument describes an argument of a prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptHandler renders a prompt.
type PromptHandler func(ctx context.Context, args map[string]string) (*PromptResult, error)

// PromptConfig describes a prompt at registration time. The argument list
// is derived from ArgsSchema in property declaration order.
type PromptConfig struct {
	Title       string
	Description string
	ArgsSchema  *schema.Schema
	Annotations *PromptAnnotations
}

// PromptInfo is the immutable descriptor of a registered prompt.
type PromptInfo struct {
	Name        string             `json:"name"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Arguments   []PromptArgument   `json:"arguments"`
	Annotations *PromptAnnotations `json:"annotations,omitempty"`
}

// Prompt is a registered prompt.
type Prompt struct {
	info    PromptInfo
	handler PromptHandler
}

// Info returns the prompt descriptor.
func (p *Prompt) Info() PromptInfo { return p.info.clone() }

func promptArguments(s *schema.Schema) []PromptArgument {
	if s == nil {
		return []PromptArgument{}
	}
	names := s.PropertyNames()
	args := make([]PromptArgument, 0, len(names))
	for _, name := range names {
		arg := PromptArgument{Name: name, Required: s.IsRequired(name)}
		if p := s.Properties[name]; p != nil {
			arg.Description = p.Description
		}
		args = append(args, arg)
	}
	return args
}

// RegisterPrompt registers a prompt under a unique name.
func (s *Server) RegisterPrompt(name string, cfg PromptConfig, h PromptHandler) error {
	if err := validateName("prompt", name); err != nil {
		return err
	}
	if h == nil {
		return protocol.InvalidParamsf("prompt %q has no handler", name)
	}
	p := &Prompt{
		info: PromptInfo{
			Name:        name,
			Title:       cfg.Title,
			Description: cfg.Description,
			Arguments:   promptArguments(cfg.ArgsSchema),
			Annotations: cfg.Annotations.clone(),
		},
		handler: h,
	}

	s.mu.Lock()
	if _, ok := s.prompts[name]; ok {
		s.mu.Unlock()
		return protocol.InvalidParamsf("prompt %q is already registered", name)
	}
	s.prompts[name] = p
	size, started := len(s.prompts), s.started
	s.mu.Unlock()

	s.registered(KindPrompt, size, started)
	return nil
}

// GetPrompt returns the descriptor of a prompt, or nil if absent.
func (s *Server) GetPrompt(name string) (*PromptInfo, error) {
	if err := validateName("prompt", name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[name]
	if !ok {
		return nil, nil
	}
	info := p.info.clone()
	return &info, nil
}

// GetPrompts returns all prompt descriptors sorted by name.
func (s *Server) GetPrompts() []PromptInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.promptsLocked()
}

func (s *Server) promptsLocked() []PromptInfo {
	out := make([]PromptInfo, 0, len(s.prompts))
	for _, name := range sortedKeys(s.prompts) {
		out = append(out, s.prompts[name].info.clone())
	}
	return out
}

// RenderPrompt runs the named prompt after checking required arguments.
func (s *Server) RenderPrompt(ctx context.Context, name string, args map[string]string) (*PromptResult, error) {
	s.mu.RLock()
	p, ok := s.prompts[name]
	s.mu.RUnlock()
	if !ok {
		return nil, protocol.InvalidParamsf("unknown prompt %q", name)
	}
	for _, arg := range p.info.Arguments {
		if arg.Required && args[arg.Name] == "" {
			return nil, protocol.InvalidParamsf("missing required argument %q", arg.Name)
		}
	}
	if args == nil {
		args = map[string]string{}
	}
	res, err := p.handler(ctx, args)
	if err != nil {
		return nil, protocol.WrapHandlerError(err)
	}
	if res == nil {
		res = &PromptResult{Messages: []PromptMessage{}}
	}
	return res, nil
}

// PromptBuilder registers a prompt with arguments declared one by one.
type PromptBuilder struct {
	server *Server
	name   string
	cfg    PromptConfig
	args   *schema.Schema
	err    error
}

// Prompt starts building a prompt. Registration happens in Handler.
func (s *Server) Prompt(name string) *PromptBuilder {
	return &PromptBuilder{server: s, name: name, args: schema.Object()}
}

// Title sets the human-readable title.
func (b *PromptBuilder) Title(title string) *PromptBuilder {
	b.cfg.Title = title
	return b
}

// Description sets the prompt description.
func (b *PromptBuilder) Description(desc string) *PromptBuilder {
	b.cfg.Description = desc
	return b
}

// Argument declares a string argument. Arguments keep declaration order.
func (b *PromptBuilder) Argument(name, description string, required bool) *PromptBuilder {
	b.args.Prop(name, schema.String(description))
	if required {
		b.args.Require(name)
	}
	return b
}

// Err returns the registration error, if any.
func (b *PromptBuilder) Err() error { return b.err }

// Handler sets the handler and registers the prompt.
func (b *PromptBuilder) Handler(fn PromptHandler) *PromptBuilder {
	if b.err != nil {
		return b
	}
	b.cfg.ArgsSchema = b.args
	b.err = b.server.RegisterPrompt(b.name, b.cfg, fn)
	return b
}
