package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

const schemaSource = `
#Duration: "0" | 0 | =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Scenario: {
	link?: {
		data_rate_bps?: int & >=0
		delay?:         #Duration
	}
	client?: {
		address?:      string
		start?:        #Duration
		stop?:         #Duration
		payload_size?: int & >=8
		rate?:         number & >0
		duration?:     number & >=0
	}
	server?: {
		address?: string
		port?:    int & >0 & <=65535
		start?:   #Duration
		stop?:    #Duration
	}
	output?: {
		latencies?: string
		sqlite?:    string
		metrics?:   string
		trace?:     string
	}
	stop_time?: #Duration
}
`

// ValidateSchema checks a YAML scenario against the CUE schema. Unknown keys
// and values of the wrong type or range are rejected.
func ValidateSchema(name string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if schema.Err() != nil {
		return fmt.Errorf("compile schema: %w", schema.Err())
	}

	file, err := yaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	value := ctx.BuildFile(file)
	if value.Err() != nil {
		return fmt.Errorf("build %s: %w", name, value.Err())
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(value)

	err = unified.Validate(cue.Concrete(true))
	if err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", name, err)
	}

	return nil
}
