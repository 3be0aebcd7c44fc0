package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (B100-B199)
	"B100": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Pass --config, or create burp.yaml with at least an 'addr' key.",
	},
	"B101": {
		Category:   CategoryConfig,
		Message:    "Configuration file is not valid YAML",
		Suggestion: "Check indentation and that durations are quoted strings like \"500ms\".",
	},
	"B102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},

	// Connection and session (B200-B299)
	"B200": {
		Category:   CategoryConnect,
		Message:    "Switcher did not answer",
		Suggestion: "Check the address and that UDP port 9910 is reachable.",
	},
	"B201": {
		Category:   CategoryConnect,
		Message:    "Switcher rejected the connection",
		Suggestion: "The switcher has no free client slots. Close another control panel and retry.",
	},
	"B202": {
		Category: CategoryConnect,
		Message:  "Network failure",
	},
	"B203": {
		Category:   CategorySession,
		Message:    "Connection lost",
		Suggestion: "The switcher stopped acknowledging packets. Check power and cabling.",
	},
	"B204": {
		Category: CategorySession,
		Message:  "Switcher closed the session",
	},
	"B205": {
		Category:   CategorySession,
		Message:    "Could not resynchronise with the switcher",
		Suggestion: "The switcher sent traffic the client could not follow. Reconnect, and report it if it repeats.",
	},

	// Commands (B300-B399)
	"B300": {
		Category:   CategoryCommand,
		Message:    "Command not delivered",
		Suggestion: "Commands are only accepted while connected.",
	},
	"B301": {
		Category: CategoryCommand,
		Message:  "Invalid command argument",
	},
	"B302": {
		Category:   CategoryCommand,
		Message:    "Invalid event filter",
		Suggestion: "Filters are expr expressions over kind, id, tag, group, fields and old, e.g. kind == \"me\".",
	},

	// Snapshot storage (B400-B499)
	"B400": {
		Category: CategoryStore,
		Message:  "Snapshot store failure",
	},

	// Internal (B900)
	"B900": {
		Category: CategoryInternal,
		Message:  "Unexpected error",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
