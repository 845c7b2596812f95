package config

import (
	"agp/constants"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	HOST_GITHUB = "github"
	HOST_GITEA  = "gitea"
)

const (
	githubBaseUrl = "https://github.com"
	githubApiUrl  = "https://api.github.com"
	githubRawUrl  = "https://raw.githubusercontent.com"
)

type Config struct {
	Host        Host          `yaml:"host"`
	Username    string        `yaml:"username"`
	Token       string        `yaml:"token"`
	Bot         Bot           `yaml:"bot"`
	ScratchDir  string        `yaml:"scratch_dir"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Host struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	BaseUrl string `yaml:"base"`
	// ApiUrl and RawUrl are only used for GitHub hosts.
	ApiUrl string `yaml:"api"`
	RawUrl string `yaml:"raw"`
}

type Bot struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Host: Host{Type: HOST_GITHUB},
		Bot: Bot{
			Name:  constants.DEFAULT_BOT_NAME,
			Email: constants.DEFAULT_BOT_EMAIL,
		},
		ScratchDir:  filepath.Join(os.TempDir(), "agp"),
		Concurrency: 8,
		Timeout:     10 * time.Minute,
	}
}

func readEnvVar(logger zerolog.Logger, val *string) error {
	if strings.HasPrefix(*val, "$") {
		name := strings.TrimPrefix(*val, "$")
		value, exists := os.LookupEnv(name)
		if exists {
			logger.Debug().Msgf("Looked up value from %s", *val)
			*val = value
		} else {
			return fmt.Errorf("missing environment variable %s", *val)
		}
	}

	return nil
}

func (host *Host) massageConfig() error {
	logger := log.With().Str("host", host.Name).Logger()

	err := readEnvVar(logger, &host.BaseUrl)
	if err != nil {
		return err
	}

	if host.Type == "" {
		host.Type = HOST_GITHUB
	}

	switch host.Type {
	case HOST_GITHUB:
		if host.BaseUrl == "" {
			host.BaseUrl = githubBaseUrl
		}

		if strings.TrimSuffix(host.BaseUrl, "/") == githubBaseUrl {
			if host.ApiUrl == "" {
				host.ApiUrl = githubApiUrl
			}
			if host.RawUrl == "" {
				host.RawUrl = githubRawUrl
			}
		} else if host.ApiUrl == "" || host.RawUrl == "" {
			return errors.New("api and raw urls are required for a GitHub Enterprise host")
		}
	case HOST_GITEA:
		if host.BaseUrl == "" {
			return errors.New("a base url is required for a gitea host")
		}
	default:
		return fmt.Errorf("invalid host type: %s", host.Type)
	}

	if host.Name == "" {
		logger.Debug().Msgf("Defaulted name to type (%s)", host.Type)
		host.Name = host.Type
	}

	host.BaseUrl = strings.TrimSuffix(host.BaseUrl, "/")
	host.ApiUrl = strings.TrimSuffix(host.ApiUrl, "/")
	host.RawUrl = strings.TrimSuffix(host.RawUrl, "/")

	return nil
}

// Finalize resolves environment indirections and defaults, then validates the result.
// It must run after command line overrides are applied.
func (config *Config) Finalize() error {
	err := config.Host.massageConfig()
	if err != nil {
		return err
	}

	logger := log.With().Str("host", config.Host.Name).Logger()

	for _, val := range []*string{&config.Username, &config.Token, &config.Bot.Name, &config.Bot.Email} {
		err := readEnvVar(logger, val)
		if err != nil {
			return err
		}
	}

	if config.Username == "" {
		config.Username = os.Getenv(constants.ACTOR_ENV)
	}
	if config.Username == "" {
		return fmt.Errorf("missing username: use --username or set %s", constants.ACTOR_ENV)
	}

	if config.Token == "" {
		config.Token = os.Getenv(constants.TOKEN_ENV)
	}
	if config.Token == "" {
		logger.Warn().Msg("No token configured, cloning over ssh")
	}

	if config.Bot.Name == "" || config.Bot.Email == "" {
		return errors.New("bot name and email must not be empty")
	}

	if config.ScratchDir == "" {
		return errors.New("missing scratch directory")
	}

	if config.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", config.Concurrency)
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}

	return nil
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(raw, config)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return config, nil
}
