package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// modelFile is the YAML layout of a model definition document:
//
//	models:
//	  - name: person
//	    label: Person
//	    fields:
//	      - {name: firstname, type: string, label: First name}
//	      - {name: birthdate, type: date, label: Born, indexed: true}
type modelFile struct {
	Models []modelEntry `yaml:"models"`
}

type modelEntry struct {
	Name   string     `yaml:"name"`
	Label  string     `yaml:"label"`
	Table  string     `yaml:"table"`
	Fields []FieldDef `yaml:"fields"`
}

// LoadYAML registers every model declared in a YAML document, in declared
// order.
func LoadYAML(data []byte, reg *Registry) error {
	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse model definitions: %w", err)
	}
	if len(file.Models) == 0 {
		return fmt.Errorf("model definitions declare no models")
	}
	for _, entry := range file.Models {
		def := &ModelDef{
			Name:      entry.Name,
			Label:     entry.Label,
			TableName: entry.Table,
			Fields:    entry.Fields,
		}
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile reads and registers model definitions from a YAML file.
func LoadFile(path string, reg *Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model definitions: %w", err)
	}
	return LoadYAML(data, reg)
}
