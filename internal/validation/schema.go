package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

var printer = message.NewPrinter(language.English)

// Issue is one schema violation.
type Issue struct {
	Path    string
	Message string
	Keyword string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// SchemaError lists every violation found in a document.
type SchemaError struct {
	Schema string
	Issues []Issue
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return fmt.Sprintf("%s: %s", e.Schema, strings.Join(parts, "; "))
}

// Schema is a compiled JSON schema.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// CompileSchema compiles an embedded JSON schema document.
func CompileSchema(name string, raw []byte) (*Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling schema %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource %s: %w", name, err)
	}

	compiled, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}

	return &Schema{name: name, schema: compiled}, nil
}

// MustCompileSchema panics when an embedded schema does not compile.
func MustCompileSchema(name string, raw []byte) *Schema {
	s, err := CompileSchema(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateJSON validates a JSON document. Violations are returned as a
// *SchemaError.
func (s *Schema) ValidateJSON(data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	return s.validate(inst)
}

// ValidateYAML validates a YAML document against the schema.
func (s *Schema) ValidateYAML(data []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	jsonData, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return fmt.Errorf("converting to JSON: %w", err)
	}

	return s.ValidateJSON(jsonData)
}

func (s *Schema) validate(inst interface{}) error {
	err := s.schema.Validate(inst)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validating against %s: %w", s.name, err)
	}

	issues := dedupe(collectIssues(ve, nil))
	if len(issues) == 0 {
		issues = []Issue{{Message: ve.Error()}}
	}

	return &SchemaError{Schema: s.name, Issues: issues}
}

func collectIssues(ve *jsonschema.ValidationError, issues []Issue) []Issue {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			issues = collectIssues(cause, issues)
		}
		return issues
	}

	path := ""
	if len(ve.InstanceLocation) > 0 {
		path = "/" + strings.Join(ve.InstanceLocation, "/")
	}

	keyword := ""
	msg := ""
	if ve.ErrorKind != nil {
		if kw := ve.ErrorKind.KeywordPath(); len(kw) > 0 {
			keyword = kw[len(kw)-1]
		}
		msg = ve.ErrorKind.LocalizedString(printer)
	}

	if keyword == "" || keyword == "$ref" || keyword == "allOf" || keyword == "oneOf" {
		return issues
	}

	return append(issues, Issue{Path: path, Message: msg, Keyword: keyword})
}

func dedupe(issues []Issue) []Issue {
	seen := make(map[Issue]bool, len(issues))
	out := issues[:0]
	for _, issue := range issues {
		if seen[issue] {
			continue
		}
		seen[issue] = true
		out = append(out, issue)
	}
	return out
}

// normalizeYAML converts yaml.v3 output into values encoding/json accepts.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[k] = normalizeYAML(item)
		}
		return m
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return m
	case []interface{}:
		a := make([]interface{}, len(val))
		for i, item := range val {
			a[i] = normalizeYAML(item)
		}
		return a
	default:
		return val
	}
}
