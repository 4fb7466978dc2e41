package permission

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk form of a registry.
type Catalog struct {
	Version     int          `yaml:"version"`
	Permissions []Definition `yaml:"permissions"`
}

// DefaultDefinitions returns the built-in permission catalog.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Code: "profile.view", Bit: 0, Name: "View profile", Category: "basic"},
		{Code: "profile.edit", Bit: 1, Name: "Edit profile", Category: "basic"},

		{Code: "analytics.view", Bit: 2, Name: "View analytics", Category: "web"},
		{Code: "export.csv", Bit: 3, Name: "Export CSV", Category: "web"},
		{Code: "integrations.basic", Bit: 4, Name: "Basic integrations", Category: "web"},

		{Code: "analytics.advanced", Bit: 5, Name: "Advanced analytics", Category: "app"},
		{Code: "api.access", Bit: 6, Name: "API access", Category: "app"},
		{Code: "export.pdf", Bit: 7, Name: "Export PDF", Category: "app"},
		{Code: "webhooks.manage", Bit: 8, Name: "Manage webhooks", Category: "app"},

		{Code: "crm.contacts", Bit: 9, Name: "CRM contacts", Category: "crm"},
		{Code: "crm.deals", Bit: 10, Name: "CRM deals", Category: "crm"},
		{Code: "crm.automation", Bit: 11, Name: "CRM automation", Category: "crm"},

		{Code: "org.settings", Bit: 12, Name: "Organization settings", Category: "admin"},
		{Code: "members.invite", Bit: 13, Name: "Invite members", Category: "admin"},
		{Code: "members.remove", Bit: 14, Name: "Remove members", Category: "admin", IsDangerous: true},
		{Code: "roles.manage", Bit: 15, Name: "Manage roles", Category: "admin", IsDangerous: true},
		{Code: "billing.view", Bit: 16, Name: "View billing", Category: "admin"},
		{Code: "billing.manage", Bit: 17, Name: "Manage billing", Category: "admin", IsDangerous: true},

		{Code: "integrations.zapier", Bit: 18, Name: "Zapier integration", Category: "addon", IsAddon: true},
		{Code: "integrations.slack", Bit: 19, Name: "Slack integration", Category: "addon", IsAddon: true},
		{Code: "storage.extended", Bit: 20, Name: "Extended storage", Category: "addon", IsAddon: true},
		{Code: "support.priority", Bit: 21, Name: "Priority support", Category: "addon", IsAddon: true},
	}
}

// DefaultRegistry builds a Registry from DefaultDefinitions.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(DefaultDefinitions()...)
}

// ParseCatalog decodes a YAML catalog and builds a Registry from it. Unknown
// fields are rejected so a typo cannot silently drop a position.
func ParseCatalog(data []byte) (*Registry, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse permission catalog: %w", err)
	}
	if len(c.Permissions) == 0 {
		return nil, fmt.Errorf("permission catalog has no permissions")
	}
	return NewRegistry(c.Permissions...)
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permission catalog: %w", err)
	}
	return ParseCatalog(data)
}

// LoadRegistry returns the catalog at path, or the built-in one when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	return LoadCatalog(path)
}

// MarshalCatalog encodes r as YAML, suitable for LoadCatalog.
func MarshalCatalog(r *Registry) ([]byte, error) {
	return yaml.Marshal(Catalog{Version: 1, Permissions: r.Definitions()})
}

// Extend returns a Builder seeded with every definition in r, so new codes can be
// appended after the existing positions.
func Extend(r *Registry) *Builder {
	b := NewBuilder()
	for _, d := range r.defs {
		// Definitions in r were already validated.
		_ = b.Define(d)
	}
	return b
}
