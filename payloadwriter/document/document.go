// Package document holds payloads as in-memory trees and replays them into
// a payloadwriter.Writer.
//
// Documents are authored as JSONC (JSON with comments and trailing commas):
//
//	{
//	  // a single customer with two orders
//	  "resource": {
//	    "type": "Sales.Customer",
//	    "key": "1",
//	    "properties": {"Id": 1, "Name": "Ada"},
//	    "nested": [
//	      {"name": "Orders", "collection": {"items": [
//	        {"properties": {"Id": 10}},
//	      ]}},
//	      {"name": "BestFriend", "url": "Customers(1)/BestFriend"},
//	    ],
//	  },
//	}
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/tidwall/jsonc"
)

// ErrInvalidDocument indicates a document that does not describe exactly
// one top-level item.
var ErrInvalidDocument = errors.New("invalid document")

// Document is a payload tree with either a top-level collection or a
// top-level resource.
type Document struct {
	Collection *CollectionNode `json:"collection,omitempty"`
	Resource   *ResourceNode   `json:"resource,omitempty"`
}

// CollectionNode is a collection and its members.
type CollectionNode struct {
	Type      string          `json:"type,omitempty"`
	Count     *int64          `json:"count,omitempty"`
	NextLink  string          `json:"nextLink,omitempty"`
	DeltaLink string          `json:"deltaLink,omitempty"`
	Items     []*ResourceNode `json:"items"`
}

// ResourceNode is a resource, its properties in document order and its
// nested members.
type ResourceNode struct {
	Type       string        `json:"type,omitempty"`
	ID         string        `json:"id,omitempty"`
	Key        string        `json:"key,omitempty"`
	Properties Properties    `json:"properties,omitempty"`
	Nested     []*NestedNode `json:"nested,omitempty"`
}

// NestedNode is a nested member. Without links, resources, a collection or
// Null it is written as a deferred member.
type NestedNode struct {
	Name         string `json:"name"`
	URL          string `json:"url,omitempty"`
	IsCollection *bool  `json:"isCollection,omitempty"`

	Links      []string        `json:"links,omitempty"`
	Resources  []*ResourceNode `json:"resources,omitempty"`
	Collection *CollectionNode `json:"collection,omitempty"`
	Null       bool            `json:"null,omitempty"`
}

// Properties keeps the order of a JSON object's members.
type Properties []payloadwriter.Property

// UnmarshalJSON decodes a JSON object preserving member order.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties must be an object: %w", ErrInvalidDocument)
	}
	var out Properties
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, payloadwriter.Property{Name: name, Value: normalize(v)})
	}
	*p = out
	return nil
}

// normalize turns decoded numbers into int64 when they are integral and
// float64 otherwise, so every encoder sees native values.
func normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = normalize(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalize(v[k])
		}
		return v
	default:
		return v
	}
}

// MarshalJSON encodes the properties as a JSON object in order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(prop.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(prop.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Parse strips JSONC comments and trailing commas from data, then decodes
// the document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	stripped := jsonc.ToJSON(data)

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w: %w", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReadFile reads and parses a JSONC document from disk.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Validate checks the document has exactly one top-level item and every
// nested member has a name.
func (d *Document) Validate() error {
	if (d.Collection == nil) == (d.Resource == nil) {
		return fmt.Errorf("need exactly one of collection and resource: %w", ErrInvalidDocument)
	}
	if d.Collection != nil {
		return d.Collection.validate()
	}
	return d.Resource.validate()
}

// IsCollection reports whether the top-level item is a collection.
func (d *Document) IsCollection() bool {
	return d.Collection != nil
}

func (c *CollectionNode) validate() error {
	for _, r := range c.Items {
		if r == nil {
			return fmt.Errorf("null collection item: %w", ErrInvalidDocument)
		}
		if err := r.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *ResourceNode) validate() error {
	for _, n := range r.Nested {
		if n == nil || n.Name == "" {
			return fmt.Errorf("nested member without a name: %w", ErrInvalidDocument)
		}
		if n.Null && (len(n.Resources) > 0 || n.Collection != nil || len(n.Links) > 0) {
			return fmt.Errorf("null member %q has content: %w", n.Name, ErrInvalidDocument)
		}
		for _, child := range n.Resources {
			if child == nil {
				return fmt.Errorf("null resource in member %q: %w", n.Name, ErrInvalidDocument)
			}
			if err := child.validate(); err != nil {
				return err
			}
		}
		if n.Collection != nil {
			if err := n.Collection.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
