package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/voxbridge/voxbridge/pkg/room"
)

// Tool is one agent-invokable operation. Run never returns an error: every
// failure surfaces as natural-language text for the model to relay.
type Tool struct {
	Name        string
	Description string
	Parameters  *genai.Schema
	Run         func(ctx context.Context, args map[string]any) string
}

// Registry holds the session's tool surface keyed by name.
type Registry struct {
	byName map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if strings.TrimSpace(tool.Name) == "" || tool.Run == nil {
			continue
		}
		r.byName[tool.Name] = tool
	}
	return r
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations renders the registry as genai function declarations, sorted
// by name for deterministic request bodies.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	if r == nil {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(r.byName))
	for _, name := range r.Names() {
		tool := r.byName[name]
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return decls
}

// Execute runs the named tool. An unknown name yields guidance text rather
// than an error so a hallucinated call cannot break the turn.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) string {
	if r == nil {
		return "No tools are configured."
	}
	tool, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return fmt.Sprintf("Unknown tool %q. Available tools: %s.", name, strings.Join(r.Names(), ", "))
	}
	return tool.Run(ctx, args)
}

// Tools builds the controller's tool surface.
func (c *Controller) Tools() *Registry {
	return NewRegistry(
		Tool{
			Name:        "search_knowledge_base",
			Description: "Search the official company knowledge base. Always call this before answering questions about the company, its services, or its work.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"question": stringSchema("The visitor's question, as asked."),
			}, "question"),
			Run: func(ctx context.Context, args map[string]any) string {
				return c.SearchKnowledgeBase(ctx, argString(args, "question"))
			},
		},
		Tool{
			Name:        "publish_ui_stream",
			Description: "Publish supporting UI cards for the answer you just gave. Call after answering a question from search results.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"user_input":     stringSchema("The visitor's question."),
				"agent_response": stringSchema("The answer you gave."),
			}, "user_input", "agent_response"),
			Run: func(ctx context.Context, args map[string]any) string {
				return c.PublishUIStream(ctx, argString(args, "user_input"), argString(args, "agent_response"))
			},
		},
		Tool{
			Name:        "preview_contact_form",
			Description: "Show the collected contact form on the frontend for the visitor to review before submission.",
			Parameters:  contactFormSchema(),
			Run: func(ctx context.Context, args map[string]any) string {
				return c.PreviewContactForm(ctx, contactFormArgs(args))
			},
		},
		Tool{
			Name:        "submit_contact_form",
			Description: "Submit the contact form after the visitor has reviewed and confirmed the details.",
			Parameters:  contactFormSchema(),
			Run: func(ctx context.Context, args map[string]any) string {
				return c.SubmitContactForm(ctx, contactFormArgs(args))
			},
		},
		Tool{
			Name:        "publish_user_details",
			Description: "Publish the visitor's confirmed identity details to the frontend.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"user_name":  stringSchema("The visitor's name."),
				"user_email": stringSchema("The visitor's email, if provided."),
				"user_phone": stringSchema("The visitor's phone number, if provided."),
			}, "user_name"),
			Run: func(ctx context.Context, args map[string]any) string {
				return c.PublishUserDetails(ctx, argString(args, "user_name"), argString(args, "user_email"), argString(args, "user_phone"))
			},
		},
		Tool{
			Name:        "schedule_meeting",
			Description: "Schedule a meeting and send a calendar invite. start_time_iso must be ISO 8601, e.g. 2026-02-21T14:00:00.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"recipient_email": stringSchema("Email address to send the invite to."),
				"subject":         stringSchema("Meeting title."),
				"description":     stringSchema("Brief meeting description."),
				"location":        stringSchema("Where the meeting happens, e.g. 'Zoom' or 'Office'."),
				"start_time_iso":  stringSchema("Start time in ISO 8601 format."),
				"duration_hours":  numberSchema("Meeting length in hours. Defaults to 1."),
			}, "recipient_email", "subject", "description", "location", "start_time_iso"),
			Run: func(ctx context.Context, args map[string]any) string {
				return c.ScheduleMeeting(ctx,
					argString(args, "recipient_email"),
					argString(args, "subject"),
					argString(args, "description"),
					argString(args, "location"),
					argString(args, "start_time_iso"),
					argFloat(args, "duration_hours"),
				)
			},
		},
		Tool{
			Name:        "request_user_location",
			Description: "Ask the frontend to share the visitor's GPS location. The browser prompts for permission; wait for this tool's result before calculating distances.",
			Parameters:  objectSchema(nil),
			Run: func(ctx context.Context, args map[string]any) string {
				return c.RequestUserLocation(ctx)
			},
		},
		Tool{
			Name:        "calculate_distance_to_destination",
			Description: "Calculate driving distance and travel time from the visitor's location to a destination. Requires a successful request_user_location first.",
			Parameters: objectSchema(map[string]*genai.Schema{
				"destination": stringSchema("Destination address or place name."),
			}, "destination"),
			Run: func(ctx context.Context, args map[string]any) string {
				return c.CalculateDistanceToDestination(ctx, argString(args, "destination"))
			},
		},
	)
}

func contactFormSchema() *genai.Schema {
	return objectSchema(map[string]*genai.Schema{
		"user_name":       stringSchema("The visitor's name."),
		"user_email":      stringSchema("The visitor's email."),
		"user_phone":      stringSchema("The visitor's phone number."),
		"contact_details": stringSchema("The reason or details the visitor provided for contacting."),
	}, "user_name", "user_email", "user_phone", "contact_details")
}

func contactFormArgs(args map[string]any) room.ContactFormData {
	return room.ContactFormData{
		UserName:       argString(args, "user_name"),
		UserEmail:      argString(args, "user_email"),
		UserPhone:      argString(args, "user_phone"),
		ContactDetails: argString(args, "contact_details"),
	}
}

func objectSchema(properties map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}

func stringSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func numberSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: description}
}

func argString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

func argFloat(args map[string]any, key string) float64 {
	if args == nil {
		return 0
	}
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
