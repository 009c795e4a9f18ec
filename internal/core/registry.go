package core

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Canonical field names. Column layouts map each of them to header aliases.
const (
	FieldExternalID   = "externalId"
	FieldDate         = "date"
	FieldTime         = "time"
	FieldVesselName   = "vesselName"
	FieldAddress      = "address"
	FieldLocation     = "location"
	FieldDescription  = "description"
	FieldContactName  = "contactName"
	FieldContactPhone = "contactPhone"
	FieldStatus       = "status"
)

// Fields lists every canonical field in record order.
var Fields = []string{
	FieldExternalID, FieldDate, FieldTime, FieldVesselName, FieldAddress,
	FieldLocation, FieldDescription, FieldContactName, FieldContactPhone, FieldStatus,
}

// EntityService is the only target entity today.
const EntityService = "service"

// SheetDefinition maps one upstream sheet onto a target entity.
type SheetDefinition struct {
	Key     string              `yaml:"key" json:"key"`
	Title   string              `yaml:"title" json:"title"`
	Entity  string              `yaml:"entity" json:"entity"`
	Primary bool                `yaml:"primary" json:"primary"`
	Columns map[string][]string `yaml:"columns" json:"columns"`
}

var (
	registry   = make(map[string]SheetDefinition)
	registryMu sync.RWMutex
)

func (d SheetDefinition) validate() error {
	if d.Key == "" {
		return fmt.Errorf("sheet definition without key")
	}
	if d.Title == "" {
		return fmt.Errorf("sheet %s: title is required", d.Key)
	}
	if d.Entity != EntityService {
		return fmt.Errorf("sheet %s: unsupported entity %q", d.Key, d.Entity)
	}
	if len(d.Columns[FieldExternalID]) == 0 {
		return fmt.Errorf("sheet %s: no header aliases for %s", d.Key, FieldExternalID)
	}
	for field := range d.Columns {
		if !isField(field) {
			return fmt.Errorf("sheet %s: unknown field %q", d.Key, field)
		}
	}
	return nil
}

func isField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Register adds a sheet definition to the registry.
// Panics if the definition is invalid or the key is already registered.
func Register(def SheetDefinition) {
	if def.Entity == "" {
		def.Entity = EntityService
	}
	if err := def.validate(); err != nil {
		panic(err.Error())
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("sheet already registered: %s", def.Key))
	}
	registry[def.Key] = def
}

// Replace adds or overwrites a sheet definition.
func Replace(def SheetDefinition) error {
	if def.Entity == "" {
		def.Entity = EntityService
	}
	if err := def.validate(); err != nil {
		return err
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	registry[def.Key] = def
	return nil
}

// Get returns a sheet definition by key.
func Get(key string) (SheetDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns every registered sheet, primary first, then by key.
func All() []SheetDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]SheetDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Primary != result[j].Primary {
			return result[i].Primary
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// Keys returns the registered sheet keys in All order.
func Keys() []string {
	defs := All()
	keys := make([]string, len(defs))
	for i, d := range defs {
		keys[i] = d.Key
	}
	return keys
}

// Primary returns the sheet used for drift validation. When no sheet is
// flagged primary the first key alphabetically is used.
func Primary() (SheetDefinition, bool) {
	defs := All()
	if len(defs) == 0 {
		return SheetDefinition{}, false
	}
	return defs[0], true
}

// SheetCount returns the number of registered sheets.
func SheetCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered sheets.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]SheetDefinition)
}

type registryFile struct {
	Sheets []SheetDefinition `yaml:"sheets"`
}

// LoadRegistryFile adds or replaces sheet definitions from a YAML file of the form
//
//	sheets:
//	  - key: services_2026
//	    title: "2026 SERVİS"
//	    primary: true
//	    columns:
//	      externalId: ["SIRA NO", "ID"]
//	      date: ["TARİH"]
//
// It returns the keys it loaded.
func LoadRegistryFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", path, err)
	}

	keys := make([]string, 0, len(file.Sheets))
	for _, def := range file.Sheets {
		if err := Replace(def); err != nil {
			return keys, fmt.Errorf("registry file %s: %w", path, err)
		}
		keys = append(keys, def.Key)
	}
	return keys, nil
}
