package dotnet

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrToolNotFound reports that a required external tool could not be located.
var ErrToolNotFound = errors.New("required tool not found")

// Tools holds the resolved external tooling the provider shells out to.
// InstallScript is optional; without it SDK installation is skipped.
type Tools struct {
	DotnetCmd     string
	InstallScript string
}

// Provider-specific configuration keys.
const (
	dotnetPathKey    = "dotnetPath"
	installScriptKey = "dotnetInstallScript"
)

// ResolveTools locates the dotnet binary and the optional dotnet-install
// script from the provider-specific configuration, falling back to PATH
// lookup for dotnet.
func ResolveTools(cfg map[string]any) (Tools, error) {
	var tools Tools

	if v, ok := cfg[dotnetPathKey].(string); ok && v != "" {
		if _, err := os.Stat(v); err != nil {
			return Tools{}, fmt.Errorf("%w: configured dotnet path %q: %v", ErrToolNotFound, v, err)
		}
		tools.DotnetCmd = v
	} else {
		path, err := exec.LookPath("dotnet")
		if err != nil {
			return Tools{}, fmt.Errorf("%w: dotnet not on PATH and %s not configured", ErrToolNotFound, dotnetPathKey)
		}
		tools.DotnetCmd = path
	}

	if v, ok := cfg[installScriptKey].(string); ok && v != "" {
		if _, err := os.Stat(v); err != nil {
			return Tools{}, fmt.Errorf("%w: configured install script %q: %v", ErrToolNotFound, v, err)
		}
		tools.InstallScript = v
	}

	return tools, nil
}
