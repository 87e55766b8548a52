package cfg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creativeprojects/pop3/lib"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

type Config struct {
	Accounts map[string]Account `yaml:"accounts" toml:"accounts"`
}

type Account struct {
	Host                string        `yaml:"host" toml:"host"`
	Port                int           `yaml:"port" toml:"port"`
	TLS                 bool          `yaml:"tls" toml:"tls"`
	SkipTLSVerification bool          `yaml:"skipTLSVerification" toml:"skipTLSVerification"`
	Username            string        `yaml:"username" toml:"username"`
	Password            string        `yaml:"password" toml:"password"`
	Timeout             time.Duration `yaml:"timeout" toml:"timeout"`
	// RateLimit is the maximum bandwidth in bytes per second
	RateLimit float64 `yaml:"rateLimit" toml:"rateLimit"`
}

func newConfig() *Config {
	return &Config{
		Accounts: make(map[string]Account),
	}
}

// LoadFromFile loads the configuration from the file. Files ending in .toml are read as TOML, anything else as YAML.
func LoadFromFile(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	format := YAML
	if strings.EqualFold(filepath.Ext(fileName), ".toml") {
		format = TOML
	}
	return loadConfig(file, format)
}

// loadConfig from a io.ReadCloser
func loadConfig(reader io.ReadCloser, format Format) (*Config, error) {
	defer reader.Close()
	config := newConfig()
	var err error
	switch format {
	case TOML:
		_, err = toml.NewDecoder(reader).Decode(config)
	default:
		err = yaml.NewDecoder(reader).Decode(config)
	}
	if err != nil && err != io.EOF {
		return nil, err
	}
	if err := validateConfiguration(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfiguration(config *Config) error {
	for name, account := range config.Accounts {
		if account.Host == "" {
			return fmt.Errorf("account %q: %w", name, lib.ErrMissingHost)
		}
		if account.Username == "" {
			return fmt.Errorf("account %q: %w", name, lib.ErrMissingUsername)
		}
		if account.Port < 0 || account.Port > 65535 {
			return fmt.Errorf("account %q: invalid port %d", name, account.Port)
		}
	}
	return nil
}

// Account returns the account by name
func (c *Config) Account(name string) (Account, error) {
	if name == "" {
		return Account{}, lib.ErrMissingAccount
	}
	account, ok := c.Accounts[name]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", lib.ErrAccountNotFound, name)
	}
	return account, nil
}

// Address is host:port, using the default POP3 or POP3S port when none is set
func (a Account) Address() string {
	return lib.Address(a.Host, a.Port, a.TLS)
}
