package protocol

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	helloSchema = mustCompile("schemas/hello.schema.json")
	callSchema  = mustCompile("schemas/call.schema.json")
)

func mustCompile(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("protocol: missing embedded schema %s: %v", name, err))
	}
	s, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		panic(fmt.Sprintf("protocol: compile schema %s: %v", name, err))
	}
	return s
}

func validateRaw(s *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

// ValidateHello checks a raw HELLO message against its schema.
func ValidateHello(raw []byte) error { return validateRaw(helloSchema, raw) }

// ValidateCall checks a raw CALL message against its schema.
func ValidateCall(raw []byte) error { return validateRaw(callSchema, raw) }
