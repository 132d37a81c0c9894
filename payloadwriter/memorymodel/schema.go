package memorymodel

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema is the serializable description of a model.
//
//	namespace: Sales
//	types:
//	  - name: Customer
//	    properties: [Id, Name]
//	    navigation:
//	      - {name: Orders, target: Order, collection: true}
//	  - name: VipCustomer
//	    base: Customer
//	  - name: Order
//	    properties: [Id, Total]
//	sources:
//	  - name: Customers
//	    type: Customer
//	    bindings: {Orders: Orders}
//	  - name: Orders
//	    type: Order
type Schema struct {
	Namespace string         `yaml:"namespace"`
	Types     []TypeSchema   `yaml:"types"`
	Sources   []SourceSchema `yaml:"sources"`
}

// TypeSchema describes one structured type. Names without a dot are
// qualified with the schema namespace.
type TypeSchema struct {
	Name       string             `yaml:"name"`
	Base       string             `yaml:"base,omitempty"`
	Abstract   bool               `yaml:"abstract,omitempty"`
	Properties []string           `yaml:"properties,omitempty"`
	Navigation []NavigationSchema `yaml:"navigation,omitempty"`
}

// NavigationSchema describes one navigation member of a type.
type NavigationSchema struct {
	Name       string `yaml:"name"`
	Target     string `yaml:"target"`
	Collection bool   `yaml:"collection,omitempty"`
	Contained  bool   `yaml:"contained,omitempty"`
}

// SourceSchema describes an entity set or a singleton. Bindings map
// navigation member names to the source their targets live in.
type SourceSchema struct {
	Name      string            `yaml:"name"`
	Type      string            `yaml:"type"`
	Singleton bool              `yaml:"singleton,omitempty"`
	Bindings  map[string]string `yaml:"bindings,omitempty"`
}

// Load decodes a YAML schema from r and builds a model from it. Unknown
// schema fields are rejected.
func Load(r io.Reader) (*Model, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return FromSchema(&s)
}

// LoadFile loads a YAML schema from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Marshal encodes s as YAML.
func (s *Schema) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
