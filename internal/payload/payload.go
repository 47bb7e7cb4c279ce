// Package payload decodes structured model output.
//
// Models are asked for a JSON object but often wrap it in a Markdown fence
// or surround it with prose. [Decode] extracts the JSON, validates it
// against a JSON Schema reflected from the destination Go type and only
// then unmarshals it. Every failure wraps [ErrMalformed].
//
// Destination types mark mandatory fields with `jsonschema:"required"`;
// unknown fields are tolerated.
package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrMalformed indicates model output that is not the expected structure.
var ErrMalformed = errors.New("malformed model output")

var fence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// Extract returns the JSON document embedded in content: the first fenced
// block if any, else the span from the first opening brace or bracket to
// the last matching closing one.
func Extract(content string) (string, error) {
	if m := fence.FindStringSubmatch(content); m != nil {
		content = m[1]
	}
	content = strings.TrimSpace(content)
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON found", ErrMalformed)
	}
	closing := "}"
	if content[start] == '[' {
		closing = "]"
	}
	end := strings.LastIndex(content, closing)
	if end < start {
		return "", fmt.Errorf("%w: unterminated JSON", ErrMalformed)
	}
	return content[start : end+1], nil
}

// Decode extracts, validates and unmarshals content into v, which must be
// a non-nil pointer.
func Decode(content string, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("payload: Decode requires a non-nil pointer")
	}
	raw, err := Extract(content)
	if err != nil {
		return err
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	sch, err := schemaFor(rv.Type().Elem())
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformed, describe(err))
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

var schemas sync.Map // reflect.Type → *sjsonschema.Schema

func schemaFor(t reflect.Type) (*sjsonschema.Schema, error) {
	if cached, ok := schemas.Load(t); ok {
		return cached.(*sjsonschema.Schema), nil
	}

	r := &jsonschema.Reflector{
		Anonymous:                  true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.ReflectFromType(t)
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", t, err)
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(data, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema for %s: %w", t, err)
	}

	name := t.Name() + ".json"
	c := sjsonschema.NewCompiler()
	if err := c.AddResource(name, schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemas.Store(t, sch)
	return sch, nil
}

// describe flattens a validation error into "path: reason" pairs.
func describe(err error) string {
	var ve *sjsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var parts []string
	for _, cause := range leaves(ve) {
		path := "/" + strings.Join(cause.InstanceLocation, "/")
		parts = append(parts, fmt.Sprintf("%s: %v", path, cause.ErrorKind))
	}
	return strings.Join(parts, "; ")
}

func leaves(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, leaves(cause)...)
	}
	return flat
}
