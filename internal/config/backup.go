package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/edm/configs"
)

const (
	// MaxBackups is the number of user config backups kept.
	MaxBackups = 3

	BackupSuffix = ".bak"
)

// BackupUserConfig copies the user config to a timestamped sibling file and
// prunes old copies. It returns "" when there is nothing to back up.
func BackupUserConfig() (string, error) {
	configPath := GetUserConfigPath()
	if !UserConfigExists() {
		return "", nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s%s.%s", configPath, BackupSuffix, time.Now().Format("20060102-150405.000"))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	pruneBackups()
	return backupPath, nil
}

// ListUserConfigBackups returns backups newest first.
func ListUserConfigBackups() ([]string, error) {
	configPath := GetUserConfigPath()
	dir := filepath.Dir(configPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	prefix := filepath.Base(configPath) + BackupSuffix + "."
	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}

	// Timestamps sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

func pruneBackups() {
	backups, err := ListUserConfigBackups()
	if err != nil || len(backups) <= MaxBackups {
		return
	}
	for _, old := range backups[MaxBackups:] {
		_ = os.Remove(old)
	}
}

// InitUserConfig writes the commented user template to the user config
// path. An existing file is kept unless force is set, in which case it is
// backed up first.
func InitUserConfig(force bool) (path string, backup string, err error) {
	path = GetUserConfigPath()
	if UserConfigExists() {
		if !force {
			return path, "", fmt.Errorf("user config already exists at %s (use --force to overwrite)", path)
		}
		if backup, err = BackupUserConfig(); err != nil {
			return path, "", err
		}
	}
	if err := writeTemplate(path, configs.UserConfigTemplate); err != nil {
		return path, backup, err
	}
	return path, backup, nil
}

// InitProjectConfig writes the commented project template to .edm.yaml in
// dir. An existing file is only replaced with force; project files live
// next to the data and are not backed up.
func InitProjectConfig(dir string, force bool) (string, error) {
	path := filepath.Join(dir, ".edm.yaml")
	if fileExists(path) && !force {
		return path, fmt.Errorf("project config already exists at %s (use --force to overwrite)", path)
	}
	return path, writeTemplate(path, configs.ProjectConfigTemplate)
}

func writeTemplate(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
