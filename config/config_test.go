package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMergesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	body := `
listen_port = 9000
debug = true

[history]
file = ""
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if conf.ListenPort != 9000 {
		t.Fatalf("expected overridden listen_port 9000, got %d", conf.ListenPort)
	}
	if !conf.Debug {
		t.Fatal("expected debug to be overridden to true")
	}
	if conf.ListenHost != defaultConfig.ListenHost {
		t.Fatalf("expected listen_host to keep its default, got %s", conf.ListenHost)
	}
	if conf.History.File != "" {
		t.Fatalf("expected history.file to be overridden empty, got %q", conf.History.File)
	}
	if conf.ReadTimeoutMS != defaultConfig.ReadTimeoutMS {
		t.Fatalf("expected read_timeout_ms to keep its default, got %d", conf.ReadTimeoutMS)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestAddrFormatting(t *testing.T) {
	conf := DefaultConfig()
	conf.ListenHost = "127.0.0.1"
	conf.ListenPort = 4000
	if got, want := conf.Addr(), "127.0.0.1:4000"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLoadClientMergesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")
	body := `login_name = "alice"`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	conf, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if conf.LoginName != "alice" {
		t.Fatalf("expected login_name alice, got %s", conf.LoginName)
	}
	if conf.ServerAddr != defaultClientConfig.ServerAddr {
		t.Fatalf("expected server_addr to keep its default, got %s", conf.ServerAddr)
	}
}
