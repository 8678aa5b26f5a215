package access

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the on-disk form of a permission table:
//
//	capabilities:
//	  view_data: [guest, user, admin]
//	  view_history: [user, admin]
type PolicyFile struct {
	Capabilities map[string][]string `yaml:"capabilities"`
}

// LoadPolicy reads a permission table from a YAML file. An empty path returns
// the built-in table. The loaded table must pass Validate.
func LoadPolicy(filepath string) (Policy, error) {
	if filepath == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	policy, err := ParsePolicy(data)
	if err != nil {
		return nil, err
	}

	slog.Info("Permission policy loaded", "file", filepath, "capabilities", len(policy))
	return policy, nil
}

func ParsePolicy(data []byte) (Policy, error) {
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	policy := make(Policy, len(file.Capabilities))
	for name, roles := range file.Capabilities {
		capability := Capability(name)
		if !capability.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
		}
		policy[capability] = make(map[Role]bool, len(roles))
		for _, r := range roles {
			role, err := ParseRole(r)
			if err != nil {
				return nil, err
			}
			policy[capability][role] = true
		}
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// MarshalYAML renders the table in PolicyFile form.
func (p Policy) MarshalYAML() (any, error) {
	file := PolicyFile{Capabilities: make(map[string][]string, len(p))}
	for _, capability := range Capabilities {
		roles := []string{}
		for _, role := range p.RolesFor(capability) {
			roles = append(roles, string(role))
		}
		file.Capabilities[string(capability)] = roles
	}
	return file, nil
}
