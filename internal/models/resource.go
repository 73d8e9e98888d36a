package models

import (
	"encoding/json"
	"fmt"
)

// Resource is implemented by every entity type served through the generic
// provider and controller. Methods use value receivers so the zero value of
// the type can answer them.
type Resource interface {
	// TableName is the document table backing the type.
	TableName() string
	// HiddenFields are never written to responses.
	HiddenFields() []string
	// ReadonlyFields are accepted on create and dropped on update.
	ReadonlyFields() []string
}

// Referencer is implemented by resources whose fields hold ids of other
// resources that a request may ask to populate.
type Referencer interface {
	References() map[string]Resource
}

// Implicit fields present on every stored document.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// ImplicitFields are managed by the store and never accepted from clients.
var ImplicitFields = []string{FieldID, FieldCreatedAt, FieldUpdatedAt}

// Document is the loosely typed form of a stored resource.
type Document map[string]any

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Without returns a copy of d with the given keys removed.
func (d Document) Without(keys ...string) Document {
	out := d.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Merge returns a copy of d with every key of patch applied on top.
func (d Document) Merge(patch Document) Document {
	out := d.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Decode converts a stored document into its typed form.
func Decode[T any](doc Document) (T, error) {
	var out T
	raw, err := json.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("encoding document: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding document: %w", err)
	}
	return out, nil
}

// Encode converts a typed value into a document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return doc, nil
}
