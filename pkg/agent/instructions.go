package agent

import (
	"context"
	"fmt"
	"strings"
)

// BuildInstructions renders the full system prompt from current session
// state. The output is deterministic: identical state yields byte-identical
// text, so redundant rebuilds are harmless.
func (c *Controller) BuildInstructions() string {
	c.mu.Lock()
	userName := c.userName
	userEmail := c.userEmail
	userPhone := c.userPhone
	activeElements := make([]string, len(c.activeElements))
	copy(activeElements, c.activeElements)
	c.mu.Unlock()

	var b strings.Builder
	b.WriteString(c.baseInstructions)
	b.WriteString("\n\n")

	if userName != "" && !strings.EqualFold(userName, "guest") {
		email := userEmail
		if email == "" {
			email = "Not provided"
		}
		phone := userPhone
		if phone == "" {
			phone = "Not provided"
		}
		fmt.Fprintf(&b,
			"### Current User Information:\n"+
				"- **Name**: %s\n"+
				"- **Email**: %s\n"+
				"- **Phone**: %s\n"+
				"Greet the user by their name and use this context to personalize your response.\n\n",
			userName, email, phone,
		)
	} else {
		b.WriteString(
			"### User Identity: Unknown\n" +
				"The user is currently a Guest. You MUST naturally ask for their name. " +
				"ONCE they provide it, you MUST spell it out for confirmation before proceeding with any data capture.\n\n",
		)
	}

	if len(activeElements) > 0 {
		b.WriteString("### Elements Currently Present in UI:\n")
		for _, element := range activeElements {
			fmt.Fprintf(&b, "- %s\n", element)
		}
		b.WriteString("Use this to refer to what the user is seeing or to avoid repeating visible content.\n")
	}

	return b.String()
}

// Rebuild pushes freshly built instructions to the runtime. A push failure
// is returned to the caller: silently keeping stale instructions would let
// the agent's prompt drift away from session state.
func (c *Controller) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	rt := c.runtime
	c.mu.Unlock()

	if rt == nil {
		return nil
	}

	instructions := c.BuildInstructions()
	if err := rt.UpdateInstructions(ctx, instructions); err != nil {
		return fmt.Errorf("push rebuilt instructions: %w", err)
	}
	return nil
}
