// Package config loads server and client configuration from a TOML
// file, following the teacher's readConf/openConf/defaultConfig
// pattern: DefaultConfig and DefaultClientConfig hold the built-in
// defaults, and a file on disk only overrides what it mentions.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// HistoryConf controls the optional match-history audit log.
type HistoryConf struct {
	// File is the sqlite3 database path. An empty File disables
	// history recording entirely.
	File    string `toml:"file"`
	Threads uint   `toml:"threads"`
}

// Conf is the server's configuration.
type Conf struct {
	Debug bool `toml:"debug"`

	ListenHost string `toml:"listen_host"`
	ListenPort uint   `toml:"listen_port"`

	// MaxClients bounds how many connections the Connection Manager
	// will accept at once. 0 means unbounded.
	MaxClients uint `toml:"max_clients"`

	// ReadTimeoutMS is the per-read deadline a reader goroutine arms,
	// in milliseconds. A reader that times out keeps its client and
	// reads again; 0 disables the deadline.
	ReadTimeoutMS uint `toml:"read_timeout_ms"`

	History HistoryConf `toml:"history"`

	file string
}

var defaultConfig = Conf{
	Debug:         false,
	ListenHost:    "0.0.0.0",
	ListenPort:    4000,
	MaxClients:    0,
	ReadTimeoutMS: 500,
	History: HistoryConf{
		File:    "othello-history.sqlite3",
		Threads: 1,
	},
}

// DefaultConfig returns a copy of the built-in defaults.
func DefaultConfig() Conf {
	return defaultConfig
}

// ReadTimeout returns ReadTimeoutMS as a time.Duration.
func (c Conf) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// Addr returns the listen address in host:port form.
func (c Conf) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// Load reads name, merging it on top of the built-in defaults. name
// is recorded on the returned Conf so a future reload can re-read the
// same file.
func Load(name string) (*Conf, error) {
	conf := defaultConfig
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, err := toml.NewDecoder(file).Decode(&conf); err != nil {
		return nil, err
	}
	conf.file = name
	return &conf, nil
}

// Reload re-reads the file this Conf was originally loaded from. It
// is a no-op returning the receiver unchanged if Conf was never
// loaded from a file (e.g. it is the built-in default).
func (c *Conf) Reload() (*Conf, error) {
	if c.file == "" {
		return c, nil
	}
	return Load(c.file)
}

// ClientConf is the client's configuration.
type ClientConf struct {
	ServerAddr string `toml:"server_addr"`
	LoginName  string `toml:"login_name"`

	// DialTimeoutMS bounds how long Connect waits for the initial TCP
	// handshake before giving up.
	DialTimeoutMS uint `toml:"dial_timeout_ms"`
}

var defaultClientConfig = ClientConf{
	ServerAddr:    "127.0.0.1:4000",
	LoginName:     "",
	DialTimeoutMS: 5000,
}

// DefaultClientConfig returns a copy of the built-in client defaults.
func DefaultClientConfig() ClientConf {
	return defaultClientConfig
}

// DialTimeout returns DialTimeoutMS as a time.Duration.
func (c ClientConf) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

// LoadClient reads name, merging it on top of the built-in client
// defaults.
func LoadClient(name string) (*ClientConf, error) {
	conf := defaultClientConfig
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, err := toml.NewDecoder(file).Decode(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}
