package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

const docBase = "https://github.com/vango-dev/storesync/blob/main/docs/errors.md#"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Sync Errors (S100-S199)
	// ============================================

	"S100": {
		Category:   CategorySync,
		Message:    "Value type does not match the cell",
		Detail:     "The value would change the kind of the cell (string, number, boolean or object). The update was rejected and the cell reverted to its initial value.",
		Suggestion: "Write values of the same kind as the initial value.",
		DocURL:     docBase + "s100",
	},
	"S101": {
		Category: CategorySync,
		Message:  "Stored value could not be parsed",
		Detail:   "The text under the key is not valid JSON or does not fit the cell's type. The cell reverted to its initial value.",
		DocURL:   docBase + "s101",
	},
	"S102": {
		Category: CategorySync,
		Message:  "Stored value is missing",
		Detail:   "The key has no record in its storage area. The cell reverted to its initial value.",
		DocURL:   docBase + "s102",
	},
	"S103": {
		Category:   CategorySync,
		Message:    "Value could not be serialized",
		Detail:     "The value has no JSON form. Functions, channels and cyclic structures cannot be stored.",
		Suggestion: "Store plain data: strings, numbers, booleans, maps, slices and structs.",
		DocURL:     docBase + "s103",
	},
	"S104": {
		Category: CategoryStorage,
		Message:  "Storage area operation failed",
		Detail:   "The backing storage area returned an error. The cell reverted to its initial value.",
		DocURL:   docBase + "s104",
	},

	// ============================================
	// Config Errors (S200-S219)
	// ============================================

	"S200": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "No storesync.json, storesync.yaml or storesync.toml was found.",
		Suggestion: "Pass --config or run from the directory containing the config file.",
		DocURL:     docBase + "s200",
	},
	"S201": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The config file could not be parsed.",
		DocURL:   docBase + "s201",
	},
	"S202": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A config value is out of range or inconsistent with another value.",
		DocURL:   docBase + "s202",
	},
	"S203": {
		Category:   CategoryConfig,
		Message:    "Unknown storage driver",
		Detail:     "The area driver must be one of memory, sqlite, file or s3.",
		Suggestion: "Set area.driver in the config file or STORESYNC_AREA_DRIVER.",
		DocURL:     docBase + "s203",
	},
	"S204": {
		Category: CategoryConfig,
		Message:  "Storage area could not be opened",
		Detail:   "The configured storage backend failed to initialize.",
		DocURL:   docBase + "s204",
	},

	// ============================================
	// CLI Errors (S220-S239)
	// ============================================

	"S220": {
		Category:   CategoryCLI,
		Message:    "Invalid JSON value",
		Detail:     "Values given on the command line must be JSON text.",
		Suggestion: `Quote strings twice, for example '"dark"'.`,
		DocURL:     docBase + "s220",
	},
	"S221": {
		Category: CategoryCLI,
		Message:  "Key not found",
		Detail:   "The storage area has no record for the key.",
		DocURL:   docBase + "s221",
	},
	"S222": {
		Category: CategoryCLI,
		Message:  "Area cannot list keys",
		Detail:   "The configured storage backend does not support listing.",
		DocURL:   docBase + "s222",
	},
	"S223": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
		DocURL:   docBase + "s223",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
