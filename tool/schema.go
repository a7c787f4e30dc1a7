package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/habiliai/dataagent/errors"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

var reflector = jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	AllowAdditionalProperties:  true,
	DoNotReference:             true,
	ExpandedStruct:             true,
}

// reflectParameters builds the model-facing JSON schema of In.
func reflectParameters[In any]() (map[string]any, error) {
	schema := reflector.Reflect(new(In))
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal schema")
	}

	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal schema")
	}
	delete(params, "$schema")
	delete(params, "$id")
	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]any{}
	}
	return params, nil
}

func compileSchema(params map[string]any) (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(params))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid parameter schema")
	}
	return schema, nil
}

// parseArguments decodes the raw JSON arguments of a call. Empty input is an empty object.
func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// validateArguments reports every schema violation in one line.
func validateArguments(schema *gojsonschema.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

func decodeArguments[In any](args map[string]any) (In, error) {
	var in In
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &in,
	})
	if err != nil {
		return in, err
	}
	if err := decoder.Decode(args); err != nil {
		return in, err
	}
	return in, nil
}
