// Package configs holds the commented configuration templates written by
// 'edm config init'.
//
// Configuration layering (see internal/config Load):
//  1. Built-in defaults
//  2. User config (~/.config/edm/config.yaml)
//  3. Project config (.edm.yaml)
//  4. Environment variables (EDM_*)
//
// Every setting in the templates is commented out, so a freshly written file
// loads as the built-in defaults.
package configs

import _ "embed"

// UserConfigTemplate is written to ~/.config/edm/config.yaml by
// 'edm config init'.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written to .edm.yaml by 'edm config init --project'.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
