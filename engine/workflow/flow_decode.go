package workflow

import (
	"github.com/goccy/go-yaml"
	"github.com/nika/nika/engine/core"
)

type flowShape struct {
	Source any `yaml:"source"`
	Target any `yaml:"target"`
}

// UnmarshalYAML decodes a Flow's source/target, normalizing either a scalar
// id or a list of ids to a list.
func (f *Flow) UnmarshalYAML(raw []byte) error {
	var shape flowShape
	if err := yaml.Unmarshal(raw, &shape); err != nil {
		return core.NewError(err, core.CodeYamlParse, nil)
	}
	source, err := normalizeEndpoint(shape.Source)
	if err != nil {
		return err
	}
	target, err := normalizeEndpoint(shape.Target)
	if err != nil {
		return err
	}
	f.Source = source
	f.Target = target
	return nil
}

func normalizeEndpoint(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, core.NewErrorf(core.CodeInvalidSchema, nil, "flow endpoint list must contain only task ids")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, core.NewErrorf(core.CodeInvalidSchema, nil, "flow endpoint must be a task id or a list of task ids")
	}
}
