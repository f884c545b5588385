package dotnet

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// InstallSDK provisions the SDK for fw by running the dotnet-install script
// and returns the install directory. The caller decides whether a failure is
// fatal; during provider init it never is.
func InstallSDK(ctx context.Context, fw Framework, installScript string) (string, error) {
	installDir := defaultInstallDir()
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return "", fmt.Errorf("create install dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, installScript,
		"--channel", fw.Channel(),
		"--install-dir", installDir,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("dotnet-install --channel %s: %w: %s", fw.Channel(), err, strings.TrimSpace(string(out)))
	}
	return installDir, nil
}

func defaultInstallDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".dotnet")
	}
	return filepath.Join(os.TempDir(), "dotnet-sdk")
}

// FindSDKMetadataFiles enumerates the reference-assembly XML documentation
// files an installed SDK ships for fw. Paths are returned sorted so callers
// load them in a stable order.
func FindSDKMetadataFiles(sdkPath string, fw Framework) ([]string, error) {
	tfm := strings.ToLower(fw.TFM)
	var files []string
	err := filepath.WalkDir(sdkPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}
		lower := strings.ToLower(path)
		// Reference docs live under packs/<pack>/<version>/ref/<tfm>/.
		if strings.Contains(lower, string(filepath.Separator)+"ref"+string(filepath.Separator)) ||
			strings.Contains(lower, tfm) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk SDK at %s: %w", sdkPath, err)
	}
	sort.Strings(files)
	return files, nil
}
