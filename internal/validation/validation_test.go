package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArgument(t *testing.T) {
	tests := []struct {
		arg     string
		wantErr bool
	}{
		{"ui-kit", false},
		{"@scope/pri-plugin-foo", false},
		{"release/1.2", false},
		{"", true},
		{"main; rm -rf /", true},
		{"$(whoami)", true},
		{"--force", true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			err := ValidateArgument(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRelativePath(t *testing.T) {
	assert.NoError(t, ValidateRelativePath("dist"))
	assert.NoError(t, ValidateRelativePath("src/pages/home"))
	assert.NoError(t, ValidateRelativePath("a/../b"))
	assert.Error(t, ValidateRelativePath(""))
	assert.Error(t, ValidateRelativePath("/etc"))
	assert.Error(t, ValidateRelativePath("../outside"))
	assert.Error(t, ValidateRelativePath("a/../../b"))
	assert.Error(t, ValidateRelativePath("pages|x"))
}

func TestValidatePublicPath(t *testing.T) {
	assert.NoError(t, ValidatePublicPath("/"))
	assert.NoError(t, ValidatePublicPath("/static/"))
	assert.NoError(t, ValidatePublicPath("https://cdn.example.com/app/"))
	assert.Error(t, ValidatePublicPath("ftp://cdn.example.com"))
	assert.Error(t, ValidatePublicPath("//cdn.example.com"))
	assert.Error(t, ValidatePublicPath("/a b"))
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"localhost", "127.0.0.1:9000"}

	assert.NoError(t, ValidateOrigin("http://localhost:9000", allowed))
	assert.NoError(t, ValidateOrigin("http://127.0.0.1:9000", allowed))
	assert.Error(t, ValidateOrigin("http://evil.example.com", allowed))
	assert.Error(t, ValidateOrigin("", allowed))
	assert.Error(t, ValidateOrigin("file:///tmp", allowed))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello\tworld", SanitizeInput("hel\x00lo\tworld\x07"))
}

const testSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "priority": {"type": "integer"}
  },
  "required": ["name"],
  "additionalProperties": false
}`

func TestSchemaValidateJSON(t *testing.T) {
	schema, err := CompileSchema("test.schema.json", []byte(testSchema))
	require.NoError(t, err)

	assert.NoError(t, schema.ValidateJSON([]byte(`{"name":"x","priority":2}`)))

	err = schema.ValidateJSON([]byte(`{"priority":"high","extra":true}`))
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.NotEmpty(t, se.Issues)
	assert.Contains(t, err.Error(), "test.schema.json")
}

func TestSchemaValidateYAML(t *testing.T) {
	schema := MustCompileSchema("test.schema.json", []byte(testSchema))

	assert.NoError(t, schema.ValidateYAML([]byte("name: pri-plugin-x\npriority: 3\n")))
	assert.Error(t, schema.ValidateYAML([]byte("priority: 3\n")))
	assert.Error(t, schema.ValidateYAML([]byte("name: [unclosed")))
}

func TestCompileSchemaInvalid(t *testing.T) {
	_, err := CompileSchema("bad.json", []byte("{not json"))
	assert.Error(t, err)
}
