package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cozy-creator/img2img/internal/types"
	"github.com/cozy-creator/img2img/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment   string        `mapstructure:"environment"`
	Home          string        `mapstructure:"home"`
	ModelID       string        `mapstructure:"model_id"`
	Device        string        `mapstructure:"device"`
	Backend       string        `mapstructure:"backend"`
	Source        string        `mapstructure:"source"`
	Prompt        string        `mapstructure:"prompt"`
	Output        string        `mapstructure:"output"`
	SafetyChecker bool          `mapstructure:"safety_checker"`
	HFCacheDir    string        `mapstructure:"hf_cache_dir"`
	Download      bool          `mapstructure:"download"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	AssetsDir     string        `mapstructure:"assets_dir"`
	Filesystem    string        `mapstructure:"filesystem_type"`
	Worker        *WorkerConfig `mapstructure:"worker"`
	S3            *S3Config     `mapstructure:"s3"`
}

type WorkerConfig struct {
	Address  string `mapstructure:"address"`
	Timeout  int    `mapstructure:"timeout"`
	PoolSize int    `mapstructure:"pool_size"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder"`
	Region      string `mapstructure:"region_name"`
	Bucket      string `mapstructure:"bucket_name"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	EndpointUrl string `mapstructure:"endpoint_url"`
	VanityUrl   string `mapstructure:"vanity_url"`
}

var config *Config

// SetDefaults registers the built-in values. Running with no config file and
// no environment reproduces the stock generation.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("home", DefaultHome)
	v.SetDefault("model_id", DefaultModelID)
	v.SetDefault("device", "")
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("source", DefaultSource)
	v.SetDefault("prompt", DefaultPrompt)
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("safety_checker", false)
	v.SetDefault("download", true)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("assets_dir", DefaultAssets)
	v.SetDefault("filesystem_type", FilesystemLocal)
	v.SetDefault("worker.address", DefaultWorker)
	v.SetDefault("worker.timeout", int(DefaultWorkerTimeout.Seconds()))
	v.SetDefault("worker.pool_size", DefaultPoolSize)
}

// LoadEnvAndConfigFiles reads the optional .env and config.yaml from the home
// directory (or the paths given by env_file and config_file) into viper.
func LoadEnvAndConfigFiles(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`-`, `_`, `.`, `_`))
	v.AutomaticEnv()

	home, err := pathutil.ExpandPath(v.GetString("home"))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHomeExpand, err)
	}
	v.Set("home", home)

	envFile := v.GetString("env_file")
	if envFile == "" {
		envFile = filepath.Join(home, ".env")
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	configFile := v.GetString("config_file")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName("config")
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg, err := Unmarshal(v)
	if err != nil {
		return err
	}

	config = cfg
	return nil
}

// Unmarshal decodes and validates the configuration held by v.
func Unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendWorker, BackendPreview:
	default:
		return types.Errorf(types.ErrConfiguration, "unknown backend %q", c.Backend)
	}

	switch strings.ToLower(c.Filesystem) {
	case FilesystemLocal:
	case FilesystemS3:
		if c.S3 == nil || c.S3.Bucket == "" {
			return types.Errorf(types.ErrConfiguration, "s3 filesystem requires s3.bucket_name")
		}
	default:
		return types.Errorf(types.ErrConfiguration, "invalid filesystem type %q", c.Filesystem)
	}

	if c.Worker == nil {
		c.Worker = &WorkerConfig{Address: DefaultWorker, Timeout: int(DefaultWorkerTimeout.Seconds()), PoolSize: DefaultPoolSize}
	}

	assetsDir, err := pathutil.ExpandPath(c.AssetsDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHomeExpand, err)
	}
	c.AssetsDir = assetsDir

	return nil
}

func GetConfig() (*Config, error) {
	if config == nil {
		return nil, ErrConfigNotLoaded
	}

	return config, nil
}

func MustGetConfig() *Config {
	cfg, err := GetConfig()
	if err != nil {
		panic(err)
	}

	return cfg
}
