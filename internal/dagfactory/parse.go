package dagfactory

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses one DAG-factory YAML file.
func LoadFile(path string) (*FileSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dag file: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	spec.Path = path
	return spec, nil
}

// Parse decodes a DAG-factory document.
func Parse(data []byte) (*FileSpec, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	spec := &FileSpec{DAGs: make(map[string]DAGSpec, len(raw))}
	for key, body := range raw {
		if body == nil {
			return nil, fmt.Errorf("dag %q has no definition", key)
		}

		var dag DAGSpec
		if err := decode(body, &dag); err != nil {
			return nil, fmt.Errorf("dag %q: %w", key, err)
		}

		if key == DefaultKey {
			spec.Default = &dag
			continue
		}
		spec.DAGs[key] = dag
	}
	return spec, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// mergeDefaults returns dag with unset fields taken from def. default_args
// are merged key by key, with the DAG's own values winning.
func mergeDefaults(dag DAGSpec, def *DAGSpec) DAGSpec {
	if def == nil {
		return dag
	}

	if len(def.DefaultArgs) > 0 {
		merged := make(map[string]any, len(def.DefaultArgs)+len(dag.DefaultArgs))
		for k, v := range def.DefaultArgs {
			merged[k] = v
		}
		for k, v := range dag.DefaultArgs {
			merged[k] = v
		}
		dag.DefaultArgs = merged
	}
	if dag.ScheduleInterval == "" {
		dag.ScheduleInterval = def.ScheduleInterval
	}
	if dag.Description == "" {
		dag.Description = def.Description
	}
	if dag.Catchup == nil {
		dag.Catchup = def.Catchup
	}
	if len(dag.Tags) == 0 {
		dag.Tags = append([]string(nil), def.Tags...)
	}
	return dag
}
