package messages

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var clientSchemas = map[MessageType]*jsonschema.Schema{
	MessageTypeLogin:  mustCompile("login.schema.json"),
	MessageTypeCmd:    mustCompile("cmd.schema.json"),
	MessageTypeLogout: mustCompile("logout.schema.json"),
}

func mustCompile(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded schema %s: %v", name, err))
	}
	s, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return s
}

// ValidateClientFrame checks a raw client frame against the schema for its
// declared type and returns that type. Unparseable frames, unknown types,
// and schema violations are all reported as errors; callers drop the frame.
func ValidateClientFrame(raw []byte) (MessageType, error) {
	var base BaseMessage
	if err := json.Unmarshal(raw, &base); err != nil {
		return "", fmt.Errorf("unparseable frame: %w", err)
	}
	schema, ok := clientSchemas[base.Type]
	if !ok {
		return base.Type, fmt.Errorf("unknown client frame type %q", base.Type)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return base.Type, fmt.Errorf("unparseable frame: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return base.Type, fmt.Errorf("frame rejected by %s schema: %w", base.Type, err)
	}
	return base.Type, nil
}
