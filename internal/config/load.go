package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"gopkg.in/yaml.v3"
)

// hclFile mirrors Config for HCL, where every block is optional.
type hclFile struct {
	LogLevel     string              `hcl:"log_level,optional"`
	Workers      int                 `hcl:"workers,optional"`
	Orientation  *OrientationConfig  `hcl:"orientation,block"`
	Coefficients *CoefficientsConfig `hcl:"coefficients,block"`
	HTTP         *HTTPConfig         `hcl:"http,block"`
	Auth         *AuthConfig         `hcl:"auth,block"`
	Stream       *StreamConfig       `hcl:"stream,block"`
}

// Load reads the configuration file at path. Files ending in .hcl are
// decoded as HCL, everything else as YAML. An empty path returns Default().
// Unset fields receive their defaults; the result is not yet validated.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		cfg, err = decodeHCL(data, filepath.Base(path))
	default:
		cfg, err = decodeYAML(data)
	}
	if err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func decodeYAML(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func decodeHCL(data []byte, filename string) (Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("parse config: %s", diags.Error())
	}

	var raw hclFile
	diags = gohcl.DecodeBody(file.Body, evalContext(), &raw)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("decode config: %s", diags.Error())
	}

	cfg := Config{LogLevel: raw.LogLevel, Workers: raw.Workers}
	if raw.Orientation != nil {
		cfg.Orientation = *raw.Orientation
	}
	if raw.Coefficients != nil {
		cfg.Coefficients = *raw.Coefficients
	}
	if raw.HTTP != nil {
		cfg.HTTP = *raw.HTTP
	}
	if raw.Auth != nil {
		cfg.Auth = *raw.Auth
	}
	if raw.Stream != nil {
		cfg.Stream = *raw.Stream
	}
	return cfg, nil
}

// evalContext exposes env("NAME") to HCL expressions so secrets such as the
// auth token need not be written into the file.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"env": function.New(&function.Spec{
				Params: []function.Parameter{
					{
						Name: "name",
						Type: cty.String,
					},
				},
				Type: function.StaticReturnType(cty.String),
				Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
					return cty.StringVal(os.Getenv(args[0].AsString())), nil
				},
			}),
		},
	}
}
