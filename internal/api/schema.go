package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxRequestBytes caps control request bodies
const MaxRequestBytes = 4 << 10

const schemaBaseURL = "https://volley.club/schemas/"

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// requestSchemas holds the compiled request body schemas
type requestSchemas struct {
	strike   *jsonschema.Schema
	serve    *jsonschema.Schema
	operator *jsonschema.Schema
}

func compileSchemas() (*requestSchemas, error) {
	c := jsonschema.NewCompiler()
	names := []string{"strike", "serve", "operator"}
	for _, name := range names {
		data, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	compiled := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		compiled[name] = s
	}
	return &requestSchemas{
		strike:   compiled["strike"],
		serve:    compiled["serve"],
		operator: compiled["operator"],
	}, nil
}

// mustCompileSchemas panics on a broken embedded schema
func mustCompileSchemas() *requestSchemas {
	s, err := compileSchemas()
	if err != nil {
		panic(err)
	}
	return s
}

// decodeValidated reads a JSON body, checks it against schema and decodes it
// into dst. An empty body is treated as {}.
func decodeValidated(r *http.Request, schema *jsonschema.Schema, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxRequestBytes {
		return fmt.Errorf("body larger than %d bytes", MaxRequestBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
