// pkg/registry/schema.go
package registry

// CommandRegistry is the machine-readable catalogue of every command the
// engine accepts, consumed by client generators and workflow documentation.
type CommandRegistry struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Commands    []Command `json:"commands"`
}

type Command struct {
	ID          string                 `json:"id"`
	DisplayName string                 `json:"displayName"`
	Description string                 `json:"description"`
	Phase       string                 `json:"phase"`
	Method      string                 `json:"method"`
	Path        string                 `json:"path"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
	ErrorCodes  []string               `json:"errorCodes"`
	Tags        []string               `json:"tags,omitempty"`
}

// Find returns the command with the given id, or nil.
func (r *CommandRegistry) Find(id string) *Command {
	for i := range r.Commands {
		if r.Commands[i].ID == id {
			return &r.Commands[i]
		}
	}
	return nil
}
