package gateway

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// schemaSet holds one compiled schema per request body shape, keyed by file
// name without extension.
type schemaSet struct {
	byName map[string]*jsonschema.Schema
}

func loadSchemas() (*schemaSet, error) {
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	c := jsonschema.NewCompiler()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		data, err := schemaFiles.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		// jsonschema.UnmarshalJSON keeps numbers as json.Number.
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", e.Name(), err)
		}
		if err := c.AddResource(e.Name(), doc); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", e.Name(), err)
		}
		names = append(names, e.Name())
	}

	set := &schemaSet{byName: make(map[string]*jsonschema.Schema, len(names))}
	for _, file := range names {
		sch, err := c.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		set.byName[strings.TrimSuffix(file, ".json")] = sch
	}
	return set, nil
}

// validate checks body against the named schema. A non-nil error means the
// body is not JSON at all; schema violations come back as messages.
func (ss *schemaSet) validate(name string, body []byte) ([]string, error) {
	sch, ok := ss.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return schemaMessages(verr), nil
		}
		return []string{err.Error()}, nil
	}
	return nil, nil
}

// schemaMessages flattens the validator's indented report to one message per
// failing location.
func schemaMessages(err error) []string {
	var msgs []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			msgs = append(msgs, strings.TrimPrefix(line, "- "))
		}
	}
	if len(msgs) == 0 {
		msgs = []string{err.Error()}
	}
	return msgs
}
