// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// hclHead is decoded first so the jdk block can feed java_home to the rest
type hclHead struct {
	JDK    *JDKArgs `hcl:"jdk,block"`
	Remain hcl.Body `hcl:",remain"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte, filename string, vars Vars) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	var head hclHead
	diags = gohcl.DecodeBody(hclFile.Body, evalContext(vars), &head)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	vars, err := resolveJavaHome(head.JDK, vars)
	if err != nil {
		return nil, err
	}

	var cfg Config
	diags = gohcl.DecodeBody(head.Remain, evalContext(vars), &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg.JDK = head.JDK
	cfg.Workspace = vars.Workspace
	cfg.JavaHome = vars.JavaHome
	return &cfg, nil
}

// evalContext exposes vars and a few string functions to expressions.
func evalContext(vars Vars) *hcl.EvalContext {
	variables := map[string]cty.Value{}
	for k, v := range vars.Map() {
		variables[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: variables,
		Functions: map[string]function.Function{
			"format":  stdlib.FormatFunc,
			"join":    stdlib.JoinFunc,
			"lower":   stdlib.LowerFunc,
			"upper":   stdlib.UpperFunc,
			"replace": stdlib.ReplaceFunc,
		},
	}
}
