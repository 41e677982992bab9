// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rooftrust-engine/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	idAdd := addCmd.String("id", "", "Command ID (e.g., request-payment)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Request Payment)")
	description := addCmd.String("description", "", "Description")
	phase := addCmd.String("phase", "", "Required phase (onboarding, survey, tracking)")
	method := addCmd.String("method", "POST", "HTTP method")
	path := addCmd.String("httpPath", "", "HTTP path (e.g., /projects/{projectID}/payments/{stageID}/request)")
	addCmd.StringVar(&registryPath, "path", "configs/command-registry.json", "Path to registry file")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Command ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, description, phase, method, httpPath)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", "configs/command-registry.json", "Path to registry file")

	// Validate command flags
	validateCmd.StringVar(&registryPath, "path", "configs/command-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *description == "" || *phase == "" || *path == "" {
			fmt.Println("Error: id, displayName, description, phase, and httpPath are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		command := registry.Command{
			ID:          *idAdd,
			DisplayName: *displayName,
			Description: *description,
			Phase:       *phase,
			Method:      *method,
			Path:        *path,
			InputSchema: map[string]interface{}{},
			ErrorCodes:  []string{},
			Tags:        []string{},
		}
		err := addCommand(&command)
		if err != nil {
			fmt.Printf("Error adding command: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added command: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err := updateCommand(*idUpdate, *field, *value)
		if err != nil {
			fmt.Printf("Error updating command: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated command %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err := validateRegistry()
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func addCommand(command *registry.Command) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		// If file doesn't exist, create new registry
		if os.IsNotExist(err) {
			reg = &registry.CommandRegistry{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
				Commands:    []registry.Command{},
			}
		} else {
			return fmt.Errorf("failed to load registry: %w", err)
		}
	}

	if reg.Find(command.ID) != nil {
		return fmt.Errorf("command with ID %s already exists", command.ID)
	}

	reg.Commands = append(reg.Commands, *command)
	reg.LastUpdated = time.Now().Format(time.RFC3339)

	return saveRegistry(reg, registryPath)
}

func updateCommand(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	command := reg.Find(id)
	if command == nil {
		return fmt.Errorf("command with ID %s not found", id)
	}

	switch field {
	case "displayName":
		command.DisplayName = value
	case "description":
		command.Description = value
	case "phase":
		command.Phase = value
	case "method":
		command.Method = value
	case "httpPath":
		command.Path = value
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if len(reg.Commands) == 0 {
		return fmt.Errorf("registry contains no commands")
	}

	validPhases := map[string]bool{"onboarding": true, "survey": true, "tracking": true, "any": true}

	ids := make(map[string]bool)
	for _, command := range reg.Commands {
		if command.ID == "" {
			return fmt.Errorf("command missing required field: ID")
		}
		if ids[command.ID] {
			return fmt.Errorf("duplicate command ID: %s", command.ID)
		}
		ids[command.ID] = true

		if command.DisplayName == "" {
			return fmt.Errorf("command %s missing required field: DisplayName", command.ID)
		}
		if !validPhases[command.Phase] {
			return fmt.Errorf("command %s has unknown phase: %s", command.ID, command.Phase)
		}
		if command.Path == "" {
			return fmt.Errorf("command %s missing required field: Path", command.ID)
		}
	}

	fmt.Printf("Registry validation passed. Found %d commands.\n", len(reg.Commands))
	return nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.CommandRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new command to the registry
  update   Update an existing command's field
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater add -id request-payment -displayName "Request Payment" -description "Marks an escrow stage as requested" -phase tracking -httpPath "/projects/{projectID}/payments/{stageID}/request"
  registry-updater update -id request-payment -field description -value "Requests release of one escrow stage"
  registry-updater validate -path configs/command-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
