package model

import (
	"context"
	"io"
	"runtime"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	DefaultNATSSubject = "allocator.outcomes"
	DefaultExtension   = "xlsx"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
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

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version int     `json:"version" yaml:"version"` // fixed 0 for now
	Workers Workers `json:"workers" yaml:"workers"`
	Inputs  *Inputs `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Service Service `json:"service" yaml:"service"`
}

// Workers locates the worker executables.
type Workers struct {
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Genetic string `json:"genetic" yaml:"genetic"`
	Linear  string `json:"linear" yaml:"linear"`
}

// Inputs configures the pre-flight checks of input spreadsheets.
type Inputs struct {
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"` // without a dot, empty => xlsx
}

type Service struct {
	Verbose  bool      `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Dir      string    `json:"dir,omitempty" yaml:"dir,omitempty"` // outcomes directory
	Callback *Callback `json:"callback,omitempty" yaml:"callback,omitempty"`
	NATS     *NATS     `json:"nats,omitempty" yaml:"nats,omitempty"`
}

// Callback posts every outcome to an HTTP endpoint.
type Callback struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	URL     string `json:"url" yaml:"url"`
}

// NATS publishes every outcome on a subject.
type NATS struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

func (c Config) Extensions() []string {
	if c.Inputs == nil || len(c.Inputs.Extensions) == 0 {
		return []string{DefaultExtension}
	}
	return c.Inputs.Extensions
}

// DefaultConfig returns a configuration pointing to the binaries shipped
// next to the application for the current platform.
func DefaultConfig(_ context.Context) Config {
	var exe string
	if runtime.GOOS == "windows" {
		exe = ".exe"
	}
	return Config{
		Version: 0,
		Workers: Workers{
			Dir:     "binaries/" + platformTriple(),
			Genetic: "genetic" + exe,
			Linear:  "linear" + exe,
		},
		Inputs: &Inputs{
			Extensions: []string{DefaultExtension},
		},
	}
}

func platformTriple() string {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/amd64":
		return "x86_64-unknown-linux-gnu"
	case "windows/amd64":
		return "x86_64-pc-windows-msvc"
	case "darwin/arm64":
		return "aarch64-apple-darwin"
	case "darwin/amd64":
		return "x86_64-apple-darwin"
	default:
		return runtime.GOOS + "-" + runtime.GOARCH
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
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

	return out, nil
}
