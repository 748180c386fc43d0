package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	projectDir := filepath.Join(tmpDir, ProjectDirName)
	if err := os.Mkdir(projectDir, 0755); err != nil {
		t.Fatalf("failed to create .localsearch dir: %v", err)
	}

	configContent := `index-recursive-directories:
  - path: /tmp/code
index-single-directories:
  - path: /tmp/downloads

ignored-files:
  - "*.tmp"

ignored-directories:
  - ".git"

enable-monitors: true
index-removable-devices: false
`
	configPath := filepath.Join(projectDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("failed to restore working directory: %v", err)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.IndexRecursiveDirectories) != 1 || cfg.IndexRecursiveDirectories[0].Path != "/tmp/code" {
		t.Errorf("IndexRecursiveDirectories = %+v, want [{/tmp/code}]", cfg.IndexRecursiveDirectories)
	}
	if len(cfg.IndexSingleDirectories) != 1 || cfg.IndexSingleDirectories[0].Path != "/tmp/downloads" {
		t.Errorf("IndexSingleDirectories = %+v, want [{/tmp/downloads}]", cfg.IndexSingleDirectories)
	}
	if len(cfg.IgnoredFiles) != 1 || cfg.IgnoredFiles[0] != "*.tmp" {
		t.Errorf("IgnoredFiles = %v, want [*.tmp]", cfg.IgnoredFiles)
	}
	if !cfg.EnableMonitors {
		t.Error("EnableMonitors = false, want true")
	}
	if cfg.IndexRemovableDevices {
		t.Error("IndexRemovableDevices = true, want false")
	}
	if cfg.ConfigDir != projectDir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, projectDir)
	}
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("failed to restore working directory: %v", err)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	wantIgnoredDirs := []string{".git", "node_modules", "__pycache__"}
	if diff := cmp.Diff(wantIgnoredDirs, cfg.IgnoredDirectories); diff != "" {
		t.Errorf("IgnoredDirectories mismatch (-want +got):\n%s", diff)
	}
	wantAllowlist := []string{"text/plain", "text/markdown", "text/x-go"}
	if diff := cmp.Diff(wantAllowlist, cfg.TextAllowlist); diff != "" {
		t.Errorf("TextAllowlist mismatch (-want +got):\n%s", diff)
	}
	if !cfg.EnableMonitors {
		t.Error("EnableMonitors default should be true")
	}
	if cfg.IndexRemovableDevices {
		t.Error("IndexRemovableDevices default should be false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "no roots configured",
			cfg:     Config{},
			wantErr: true,
			errMsg:  "at least one",
		},
		{
			name: "empty recursive path",
			cfg: Config{
				IndexRecursiveDirectories: []IndexRootConfig{{Path: ""}},
			},
			wantErr: true,
			errMsg:  "path is required",
		},
		{
			name: "relative recursive path",
			cfg: Config{
				IndexRecursiveDirectories: []IndexRootConfig{{Path: "relative/path"}},
			},
			wantErr: true,
			errMsg:  "must be absolute",
		},
		{
			name: "single path duplicates recursive path",
			cfg: Config{
				IndexRecursiveDirectories: []IndexRootConfig{{Path: "/a"}},
				IndexSingleDirectories:    []IndexRootConfig{{Path: "/a"}},
			},
			wantErr: true,
			errMsg:  "already configured as recursive",
		},
		{
			name: "valid config",
			cfg: Config{
				IndexRecursiveDirectories: []IndexRootConfig{{Path: "/a"}},
				IndexSingleDirectories:    []IndexRootConfig{{Path: "/b"}},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Validate() error = nil, want error containing %q", tt.errMsg)
				} else if tt.errMsg != "" && !contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.errMsg)
				}
			} else if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestDiscoverProjectDir(t *testing.T) {
	tmpDir := t.TempDir()
	sub1 := filepath.Join(tmpDir, "sub1")
	sub2 := filepath.Join(sub1, "sub2")
	if err := os.MkdirAll(sub2, 0755); err != nil {
		t.Fatalf("create subdirs: %v", err)
	}
	projectDir := filepath.Join(tmpDir, ProjectDirName)
	if err := os.Mkdir(projectDir, 0755); err != nil {
		t.Fatalf("create .localsearch: %v", err)
	}

	got := DiscoverProjectDir(sub2)
	if got != projectDir {
		t.Errorf("DiscoverProjectDir(%q) = %q, want %q", sub2, got, projectDir)
	}

	got = DiscoverProjectDir(sub1)
	if got != projectDir {
		t.Errorf("DiscoverProjectDir(%q) = %q, want %q", sub1, got, projectDir)
	}

	got = DiscoverProjectDir(tmpDir)
	if got != projectDir {
		t.Errorf("DiscoverProjectDir(%q) = %q, want %q", tmpDir, got, projectDir)
	}

	isolatedDir := t.TempDir()
	got = DiscoverProjectDir(isolatedDir)
	if got != "" {
		t.Errorf("DiscoverProjectDir(%q) = %q, want empty", isolatedDir, got)
	}
}

func TestLoadFromProjectDir(t *testing.T) {
	tmpDir := t.TempDir()
	projectDir := filepath.Join(tmpDir, ProjectDirName)
	if err := os.Mkdir(projectDir, 0755); err != nil {
		t.Fatalf("create .localsearch: %v", err)
	}

	configContent := `index-recursive-directories:
  - path: /tmp/repo1
store-path: /custom/store/path
`
	if err := os.WriteFile(filepath.Join(projectDir, ProjectConfigFile), []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	subDir := filepath.Join(tmpDir, "deep", "sub")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("create subdirs: %v", err)
	}

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("get cwd: %v", err)
	}
	if err := os.Chdir(subDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() { _ = os.Chdir(origDir) }()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ConfigDir != projectDir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, projectDir)
	}
	if cfg.StorePath != "/custom/store/path" {
		t.Errorf("StorePath = %q, want %q", cfg.StorePath, "/custom/store/path")
	}
}

func TestResolveStorePath(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		flagValue string
		want      string
	}{
		{
			name:      "flag takes priority",
			cfg:       Config{StorePath: "/yaml/path", ConfigDir: "/proj/.localsearch"},
			flagValue: "/flag/path",
			want:      "/flag/path",
		},
		{
			name:      "yaml store-path second",
			cfg:       Config{StorePath: "/yaml/path", ConfigDir: "/proj/.localsearch"},
			flagValue: "",
			want:      "/yaml/path",
		},
		{
			name:      "config dir default",
			cfg:       Config{ConfigDir: "/proj/.localsearch"},
			flagValue: "",
			want:      "/proj/.localsearch/index.db",
		},
		{
			name:      "all empty",
			cfg:       Config{},
			flagValue: "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.ResolveStorePath(tt.flagValue)
			if got != tt.want {
				t.Errorf("ResolveStorePath(%q) = %q, want %q", tt.flagValue, got, tt.want)
			}
		})
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
