// Package validation checks documents and request bodies against JSON Schemas.
package validation

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"resthub/internal/common"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Embedded schema names.
const (
	UserSchema           = "user"
	UserCreateSchema     = "user.create"
	UserProfileSchema    = "user.profile"
	NotificationSchema   = "notification"
	PasswordChangeSchema = "password.change"
)

const rootField = "(root)"

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses raw as a JSON Schema.
func Compile(name string, raw []byte) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON Schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: compiled}, nil
}

// Load compiles one of the embedded schemas.
func Load(name string) (*Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", name, err)
	}
	return Compile(name, raw)
}

// MustLoad is Load for schemas compiled at startup.
func MustLoad(name string) *Schema {
	s, err := Load(name)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string {
	return s.name
}

// Validate reports every failing field of payload, sorted by field.
// A nil result means the payload is valid.
func (s *Schema) Validate(payload any) []common.FieldError {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return []common.FieldError{{Field: rootField, Code: "invalid", Message: err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	errs := make([]common.FieldError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, common.FieldError{
			Field:   fieldOf(re),
			Code:    re.Type(),
			Message: re.Description(),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

// fieldOf names the offending field. Missing required properties are
// reported by gojsonschema against their parent object.
func fieldOf(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() != "required" {
		return field
	}
	property, ok := re.Details()["property"].(string)
	if !ok {
		return field
	}
	if field == rootField || field == "" {
		return property
	}
	return strings.Join([]string{field, property}, ".")
}
