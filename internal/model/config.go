package model

import (
	"io"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	PolicyContinue = "continue"
	PolicyAbort    = "abort"

	DefaultAddress = "127.0.0.1:7878"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx      *cue.Context
	definitions cue.Value
	schema      cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	definitions = compiled
	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version      int          `json:"version" yaml:"version"` // fixed 0 for now
	Workspace    string       `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	Verbose      bool         `json:"verbose" yaml:"verbose"`
	Scratch      Scratch      `json:"scratch" yaml:"scratch"`
	Unpackagable Unpackagable `json:"unpackagable" yaml:"unpackagable"`
	DummyData    DummyData    `json:"dummy_data" yaml:"dummy_data"`
	DummyUsers   DummyUsers   `json:"dummy_users" yaml:"dummy_users"`
	Dependency   Dependency   `json:"dependency" yaml:"dependency"`
	Jobs         Jobs         `json:"jobs" yaml:"jobs"`
	Serve        Serve        `json:"serve" yaml:"serve"`
}

// Scratch org creation defaults.
type Scratch struct {
	DurationDays          int      `json:"duration_days" yaml:"duration_days"`
	Definition            string   `json:"definition" yaml:"definition"` // relative to workspace
	DefaultPermissionSets []string `json:"default_permission_sets" yaml:"default_permission_sets"`
}

// Unpackagable metadata deployed after the packages.
type Unpackagable struct {
	Location string `json:"location" yaml:"location"` // empty => skipped
}

type DummyData struct {
	Location string `json:"location" yaml:"location"`
	SFDMU    bool   `json:"sfdmu" yaml:"sfdmu"` // use the sfdmu plugin instead of tree import
}

type DummyUsers struct {
	Location string `json:"location" yaml:"location"`
}

// Dependency holds installation keys by package name.
type Dependency struct {
	Keys map[string]string `json:"keys" yaml:"keys"`
}

type Jobs struct {
	Policy string `json:"policy" yaml:"policy"` // "continue" | "abort"
	Retry  bool   `json:"retry" yaml:"retry"`
}

type Serve struct {
	Address   string     `json:"address" yaml:"address"`
	Schedules []Schedule `json:"schedules" yaml:"schedules"`
}

// Schedule triggers a workflow either by cron expression or by ISO8601 duration.
type Schedule struct {
	Workflow string `json:"workflow" yaml:"workflow"`
	Cron     string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("dxmate.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}
	if out.Dependency.Keys == nil {
		out.Dependency.Keys = map[string]string{}
	}

	return out, nil
}

// DefaultConfig returns the configuration with every schema default applied.
func DefaultConfig() Config {
	cfg, err := LoadConfig(strings.NewReader("version: 0\n"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// AbortOnError reports whether composite jobs stop at the first failed child.
func (c Config) AbortOnError() bool {
	return c.Jobs.Policy == PolicyAbort
}
