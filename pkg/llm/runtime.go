// Package llm runs the Gemini conversation loop behind the voice agent.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/genai"

	"github.com/voxbridge/voxbridge/pkg/agent"
)

// maxToolRounds bounds how many tool-call rounds one user turn may take
// before the model is forced to answer in text.
const maxToolRounds = 8

// Transcript receives the user/assistant turns for session replay. Recording
// is best-effort; failures are logged and never fail the turn.
type Transcript interface {
	RecordMessage(ctx context.Context, role, content string) error
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Runtime holds the model conversation: system instructions, history, and
// the tool registry that function calls dispatch through.
type Runtime struct {
	model      string
	tools      *agent.Registry
	transcript Transcript
	logger     *slog.Logger
	generate   generateFunc

	mu           sync.Mutex
	instructions string
	history      []*genai.Content
}

func NewRuntime(client *genai.Client, model string, tools *agent.Registry, transcript Transcript, logger *slog.Logger) *Runtime {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runtime{
		model:      model,
		tools:      tools,
		transcript: transcript,
		logger:     logger,
	}
	if client != nil {
		r.generate = client.Models.GenerateContent
	}
	return r
}

// UpdateInstructions replaces the system instruction for subsequent turns.
// History is preserved so a mid-conversation rebuild does not lose context.
func (r *Runtime) UpdateInstructions(ctx context.Context, instructions string) error {
	if r == nil {
		return fmt.Errorf("runtime is not configured")
	}
	r.mu.Lock()
	r.instructions = instructions
	r.mu.Unlock()
	r.logger.Debug("system instructions updated", "length", len(instructions))
	return nil
}

// Respond runs one user turn: the model may chain tool calls before it
// produces the spoken reply.
func (r *Runtime) Respond(ctx context.Context, userText string) (string, error) {
	if r == nil || r.generate == nil {
		return "", fmt.Errorf("runtime is not configured")
	}

	r.mu.Lock()
	r.history = append(r.history, genai.NewContentFromText(userText, genai.RoleUser))
	contents := append([]*genai.Content(nil), r.history...)
	config := r.generateConfig()
	r.mu.Unlock()

	r.record(ctx, "user", userText)

	for round := 0; ; round++ {
		result, err := r.generate(ctx, r.model, contents, config)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			return "", fmt.Errorf("model returned no candidates")
		}
		modelContent := result.Candidates[0].Content
		contents = append(contents, modelContent)

		calls := result.FunctionCalls()
		if len(calls) == 0 || round >= maxToolRounds {
			reply := result.Text()
			r.mu.Lock()
			r.history = contents
			r.mu.Unlock()
			r.record(ctx, "assistant", reply)
			return reply, nil
		}

		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			r.logger.Info("tool call", "tool", call.Name)
			output := r.tools.Execute(ctx, call.Name, call.Args)
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     call.Name,
					Response: map[string]any{"content": output},
				},
			})
		}
		contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: parts})
	}
}

func (r *Runtime) record(ctx context.Context, role, content string) {
	if r.transcript == nil || content == "" {
		return
	}
	if err := r.transcript.RecordMessage(ctx, role, content); err != nil {
		r.logger.Warn("transcript record failed", "role", role, "error", err)
	}
}

func (r *Runtime) generateConfig() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if r.instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: r.instructions}},
		}
	}
	if decls := r.tools.Declarations(); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}
	return config
}
