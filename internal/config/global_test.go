package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestGlobalConfig_Hosts(t *testing.T) {
	cfg := DefaultGlobalConfig()

	if err := cfg.AddHost("drone1", HostConfig{Host: "10.1.100.121"}); err != nil {
		t.Fatalf("AddHost() error = %v", err)
	}
	if err := cfg.AddHost("radxa", HostConfig{Host: "radxa-zero.local", User: "radxa", Port: 2222}); err != nil {
		t.Fatalf("AddHost() error = %v", err)
	}

	host, err := cfg.GetHost("drone1")
	if err != nil {
		t.Fatalf("GetHost() error = %v", err)
	}
	if host.User != "pi" || host.Port != 22 {
		t.Errorf("expected defaults user=pi port=22, got %+v", host)
	}

	if err := cfg.AddHost("drone1", HostConfig{Host: "10.1.100.122"}); err == nil {
		t.Error("expected duplicate host to be rejected")
	}
	if err := cfg.AddHost("bad name", HostConfig{Host: "10.1.100.122"}); err == nil {
		t.Error("expected invalid host name to be rejected")
	}
	if err := cfg.AddHost("nouser", HostConfig{Host: "10.1.100.122", User: "Pi"}); err == nil {
		t.Error("expected invalid user to be rejected")
	}

	names := cfg.ListHosts()
	if len(names) != 2 || names[0] != "drone1" || names[1] != "radxa" {
		t.Errorf("ListHosts() = %v", names)
	}

	if err := cfg.RemoveHost("drone1"); err != nil {
		t.Fatalf("RemoveHost() error = %v", err)
	}
	if _, err := cfg.GetHost("drone1"); err == nil {
		t.Error("expected removed host to be gone")
	}
	if err := cfg.RemoveHost("drone1"); err == nil {
		t.Error("expected error removing unknown host")
	}
}

func TestGlobalConfig_SaveLoad(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only drives os.UserConfigDir on Linux")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if len(cfg.Hosts) != 0 {
		t.Errorf("expected empty registry, got %v", cfg.Hosts)
	}

	if err := cfg.AddHost("drone1", HostConfig{Host: "10.1.100.121", InsecureHostKey: true}); err != nil {
		t.Fatal(err)
	}
	if err := SaveGlobalConfig(cfg); err != nil {
		t.Fatalf("SaveGlobalConfig() error = %v", err)
	}

	path, err := GetGlobalConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %o, want 600", info.Mode().Perm())
	}
	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if dirInfo.Mode().Perm() != 0700 {
		t.Errorf("config dir mode = %o, want 700", dirInfo.Mode().Perm())
	}

	loaded, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	host, err := loaded.GetHost("drone1")
	if err != nil {
		t.Fatal(err)
	}
	if !host.InsecureHostKey || host.Host != "10.1.100.121" {
		t.Errorf("unexpected host after reload: %+v", host)
	}
}
