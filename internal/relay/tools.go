// TableVox - Realtime AI Waiter Relay for Restaurants
// Copyright 2026 TableVox Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablevox/tablevox

package relay

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tablevox/tablevox/internal/models"
)

// Tool names the upstream AI may invoke.
const (
	ToolAddToCart      = "add_to_cart"
	ToolRemoveFromCart = "remove_from_cart"
)

// ToolDef describes one callable function in the upstream handshake.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a function invocation received from upstream, correlated by
// call id.
type ToolCall struct {
	ID        string
	Name      string
	Arguments []byte
}

// cartArgs is the JSON argument shape shared by both cart tools.
type cartArgs struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

// toolResult is the acknowledgment payload sent back upstream.
type toolResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	ItemName string `json:"item_name,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

// ToolDefs returns the function schemas advertised to the upstream AI.
func ToolDefs() []ToolDef {
	itemParams := func(verb string) map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"item_name": map[string]any{
					"type":        "string",
					"description": "Exact menu item name to " + verb,
				},
				"quantity": map[string]any{
					"type":        "integer",
					"description": "Number of units; defaults to 1",
				},
				"note": map[string]any{
					"type":        "string",
					"description": "Optional preparation note, e.g. 'no onions'",
				},
			},
			"required": []string{"item_name"},
		}
	}

	return []ToolDef{
		{
			Name:        ToolAddToCart,
			Description: "Add a menu item to the customer's cart. Use the exact item name from the menu.",
			Parameters:  itemParams("add"),
		},
		{
			Name:        ToolRemoveFromCart,
			Description: "Remove a menu item from the customer's cart. Use the exact item name from the menu.",
			Parameters:  itemParams("remove"),
		},
	}
}

// resolveCartCall parses cart tool arguments and matches them against the
// menu snapshot. Exact (case-insensitive) name match only; a miss returns
// ok=false and no cart event may be emitted for it.
func resolveCartCall(cfg *models.SessionConfig, call ToolCall) (models.CartLine, *cartArgs, bool, error) {
	var args cartArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return models.CartLine{}, nil, false, fmt.Errorf("relay: malformed %s arguments: %w", call.Name, err)
	}
	if strings.TrimSpace(args.ItemName) == "" {
		return models.CartLine{}, nil, false, fmt.Errorf("relay: %s missing item_name", call.Name)
	}
	if args.Quantity <= 0 {
		args.Quantity = 1
	}

	item, ok := cfg.FindItem(args.ItemName)
	if !ok {
		return models.CartLine{}, &args, false, nil
	}
	return models.CartLine{Item: item, Quantity: args.Quantity, Note: args.Note}, &args, true, nil
}

// BuildInstructions assembles the system instruction text for the upstream
// handshake from the session configuration.
func BuildInstructions(cfg *models.SessionConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the friendly AI waiter for %s. ", cfg.RestaurantName)
	fmt.Fprintf(&b, "Speak %s. ", languageName(cfg.Language))
	b.WriteString("Help the customer order from the menu below. ")
	b.WriteString("Only offer items that appear on the menu, always use their exact names, ")
	b.WriteString("and call add_to_cart or remove_from_cart to change the order. ")
	b.WriteString("Mention allergens when asked.\n\nMenu:\n")

	for _, item := range cfg.Menu {
		fmt.Fprintf(&b, "- %s (%s)", item.Name, item.Price)
		if item.Description != "" {
			fmt.Fprintf(&b, ": %s", item.Description)
		}
		if len(item.Dietary) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(item.Dietary, ", "))
		}
		if len(item.Allergens) > 0 {
			fmt.Fprintf(&b, " (contains: %s)", strings.Join(item.Allergens, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// languageName maps common language codes to names the model follows more
// reliably than bare codes. Unknown codes pass through unchanged.
func languageName(code string) string {
	switch strings.ToLower(code) {
	case "en":
		return "English"
	case "ar":
		return "Arabic"
	case "es":
		return "Spanish"
	case "fr":
		return "French"
	case "de":
		return "German"
	case "hi":
		return "Hindi"
	case "ur":
		return "Urdu"
	default:
		return code
	}
}
