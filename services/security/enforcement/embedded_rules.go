// Copyright (C) 2025 DataClinic
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file bridges the build system and the runtime detection logic. It uses
the Go embed package to bake prompt_injection_rules.yaml directly into the
compiled binary, so the rule table is immutable at runtime and travels with
the executable.
*/

package enforcement

import (
	_ "embed"
)

// PromptInjectionRules holds the raw byte content of 'prompt_injection_rules.yaml'.
//
// The variable is populated at compile time via the Go 'embed' directive.
// Baking the YAML into the binary means the detection rules cannot be
// tampered with on the host filesystem without recompiling the gateway.
//
// Usage:
//
//	// Pass these bytes directly to yaml.Unmarshal
//	err := yaml.Unmarshal(enforcement.PromptInjectionRules, &targetStruct)
//
//go:embed prompt_injection_rules.yaml
var PromptInjectionRules []byte
