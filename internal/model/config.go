package model

import (
	"errors"
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	ToolSystem = "system"
	ToolWeb    = "web"

	AlignerBlast     = "blast"
	AlignerExonerate = "exonerate"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
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

// Config is the immutable, service-wide configuration.
type Config struct {
	Version                     int           `json:"version" yaml:"version"`
	WorkingDirectory            string        `json:"working_directory" yaml:"working_directory"`
	Tool                        string        `json:"tool" yaml:"tool"`       // "system" | "web"
	Aligner                     string        `json:"aligner" yaml:"aligner"` // "blast" | "exonerate"
	Executable                  string        `json:"executable,omitempty" yaml:"executable,omitempty"`
	Asynchronous                bool          `json:"asynchronous" yaml:"asynchronous"`
	Timeout                     string        `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ThermodynamicParametersPath string        `json:"thermodynamic_parameters_path,omitempty" yaml:"thermodynamic_parameters_path,omitempty"`
	Sequences                   []Sequence    `json:"sequences" yaml:"sequences"`
	Primer3                     *Primer3Prefs `json:"primer3,omitempty" yaml:"primer3,omitempty"`
	Ledger                      *Ledger       `json:"ledger,omitempty" yaml:"ledger,omitempty"`
	Poll                        *Poll         `json:"poll,omitempty" yaml:"poll,omitempty"`
	Service                     Service       `json:"service" yaml:"service"`
}

// Sequence describes a configured FASTA database a job can run against.
type Sequence struct {
	Name          string `json:"name" yaml:"name"`
	FastaFilename string `json:"fasta_filename" yaml:"fasta_filename"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	Active        bool   `json:"active" yaml:"active"`
}

type Ledger struct {
	Path string `json:"path" yaml:"path"`
}

// Poll schedules periodic status refresh of in-flight jobs.
// Exactly one of Every or Cron is expected.
type Poll struct {
	Every string `json:"every,omitempty" yaml:"every,omitempty"`
	Cron  string `json:"cron,omitempty" yaml:"cron,omitempty"`
}

type Service struct {
	Verbose bool   `json:"verbose" yaml:"verbose"`
	Log     string `json:"log,omitempty" yaml:"log,omitempty"` // "stderr"|"stdout"|"discard"
}

// LoadConfig validates YAML (or JSON) from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),
		cue.Concrete(true),
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// Validate checks the constraints which span more than a single field.
func (c Config) Validate() error {
	var errs []error
	if c.WorkingDirectory == "" {
		errs = append(errs, errors.New("working_directory is required"))
	}
	if c.Tool == ToolSystem && c.Executable == "" {
		errs = append(errs, errors.New("executable is required for the system tool"))
	}
	if len(c.Sequences) == 0 {
		errs = append(errs, errors.New("at least one sequence is required"))
	}
	seen := make(map[string]struct{}, len(c.Sequences))
	for _, s := range c.Sequences {
		if _, ok := seen[s.Name]; ok {
			errs = append(errs, fmt.Errorf("duplicate sequence %q", s.Name))
		}
		seen[s.Name] = struct{}{}
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("timeout: %w", err))
		}
	}
	if c.Primer3 != nil && c.Primer3.ProductSizeRangeMin > c.Primer3.ProductSizeRangeMax {
		errs = append(errs, errors.New("primer3: product_size_range_min is greater than product_size_range_max"))
	}
	if c.Poll != nil {
		switch {
		case c.Poll.Every != "" && c.Poll.Cron != "":
			errs = append(errs, errors.New("poll: both every and cron are set"))
		case c.Poll.Cron != "":
			if err := ParseCron(c.Poll.Cron); err != nil {
				errs = append(errs, fmt.Errorf("poll.cron: %w", err))
			}
		case c.Poll.Every != "":
			if _, err := ParseCueDuration(c.Poll.Every); err != nil {
				errs = append(errs, fmt.Errorf("poll.every: %w", err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Sequence returns the descriptor with a given name.
func (c Config) Sequence(name string) (*Sequence, bool) {
	for i := range c.Sequences {
		if c.Sequences[i].Name == name {
			return &c.Sequences[i], true
		}
	}
	return nil, false
}

// ActiveSequences returns the descriptors searched by default.
func (c Config) ActiveSequences() []*Sequence {
	var ret []*Sequence
	for i := range c.Sequences {
		if c.Sequences[i].Active {
			ret = append(ret, &c.Sequences[i])
		}
	}
	return ret
}

// ProcessTimeout returns the configured timeout of an external process,
// zero means no timeout.
func (c Config) ProcessTimeout() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// DefaultConfig returns a configuration stored when there is none.
func DefaultConfig(workingDir string) Config {
	return Config{
		Version:          0,
		WorkingDirectory: workingDir,
		Tool:             ToolSystem,
		Aligner:          AlignerExonerate,
		Executable:       "polymarker.rb",
		Asynchronous:     true,
		Sequences: []Sequence{
			{
				Name:          "IWGSC",
				FastaFilename: "/opt/polymarker/databases/IWGSC_CSS_all_scaff_v1.fa",
				Description:   "Chinese Spring survey sequence",
				Active:        true,
			},
		},
		Service: Service{
			Log: LogStderr,
		},
	}
}
