package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/javanstorm/toolchainqa/pkg/hypervisor"
)

// EnvPrefix prefixes every environment override, e.g.
// TOOLCHAINQA_VM_MEMORY_MB.
const EnvPrefix = "TOOLCHAINQA"

// Config holds all toolchainqa configuration.
type Config struct {
	Build   BuildConfig   `mapstructure:"build" yaml:"build"`
	VM      VMConfig      `mapstructure:"vm" yaml:"vm"`
	SSH     SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	NFS     NFSConfig     `mapstructure:"nfs" yaml:"nfs"`
	Targets TargetsConfig `mapstructure:"targets" yaml:"targets"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	source string
}

// BuildConfig locates the build environment.
type BuildConfig struct {
	// Dir is the initialized build directory (empty = current directory).
	Dir string `mapstructure:"dir" yaml:"dir"`

	// BitBake is the bitbake executable.
	BitBake string `mapstructure:"bitbake" yaml:"bitbake"`
}

// VMConfig describes the guest used for on-target testing.
type VMConfig struct {
	RunQemu     string        `mapstructure:"runqemu" yaml:"runqemu"`
	Image       string        `mapstructure:"image" yaml:"image"`
	Display     string        `mapstructure:"display" yaml:"display"`
	MemoryMB    int           `mapstructure:"memory_mb" yaml:"memory_mb"`
	BootTimeout time.Duration `mapstructure:"boot_timeout" yaml:"boot_timeout"`

	// GuestIP and ServerIP skip address discovery when both are set.
	GuestIP  string `mapstructure:"guest_ip" yaml:"guest_ip"`
	ServerIP string `mapstructure:"server_ip" yaml:"server_ip"`
}

// SSHConfig holds guest login settings.
type SSHConfig struct {
	User    string `mapstructure:"user" yaml:"user"`
	Port    int    `mapstructure:"port" yaml:"port"`
	KeyPath string `mapstructure:"key_path" yaml:"key_path"`
}

// RemoteConfig bounds remote commands.
type RemoteConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// NFSConfig configures the build tree export.
type NFSConfig struct {
	Unfsd string `mapstructure:"unfsd" yaml:"unfsd"`
	UDP   bool   `mapstructure:"udp" yaml:"udp"`
}

// TargetsConfig selects the on-target test runs.
type TargetsConfig struct {
	Triplet string `mapstructure:"triplet" yaml:"triplet"`
	Version string `mapstructure:"version" yaml:"version"`

	// File optionally replaces the built-in test runs.
	File string `mapstructure:"file" yaml:"file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{BitBake: "bitbake"},
		VM: VMConfig{
			RunQemu:     "runqemu",
			Image:       "core-image-minimal",
			Display:     "nographic",
			MemoryMB:    8192,
			BootTimeout: hypervisor.DefaultBootTimeout,
		},
		SSH:     SSHConfig{User: "root", Port: 22},
		Remote:  RemoteConfig{CommandTimeout: 300 * time.Second},
		NFS:     NFSConfig{Unfsd: "unfsd", UDP: true},
		Targets: TargetsConfig{Triplet: "x86-64-v3-oe-linux", Version: "21.1.4"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigFile is an explicit config file; it must exist when set.
	ConfigFile string

	// EnvFile is a dotenv file loaded into the environment if present
	// (default ".env"). Variables already set are not overridden.
	EnvFile string

	// SearchPaths are searched for toolchainqa.yaml when ConfigFile is
	// empty (default: the working directory and the user config dir).
	SearchPaths []string
}

// Load reads configuration from file, environment, and defaults.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("toolchainqa")
		v.SetConfigType("yaml")
		searchPaths := opts.SearchPaths
		if searchPaths == nil {
			searchPaths = []string{"."}
			if paths, err := GetPaths(); err == nil {
				searchPaths = append(searchPaths, paths.ConfigDir)
			}
		}
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.source = v.ConfigFileUsed()
	return cfg, nil
}

// Source returns the config file that was read, or "".
func (c *Config) Source() string {
	return c.source
}

// Launch returns the emulator launch template.
func (c *Config) Launch() hypervisor.VMConfig {
	return hypervisor.VMConfig{
		Image:       c.VM.Image,
		Display:     c.VM.Display,
		MemoryMB:    c.VM.MemoryMB,
		BootTimeout: c.VM.BootTimeout,
		GuestIP:     c.VM.GuestIP,
		ServerIP:    c.VM.ServerIP,
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("build.dir", d.Build.Dir)
	v.SetDefault("build.bitbake", d.Build.BitBake)
	v.SetDefault("vm.runqemu", d.VM.RunQemu)
	v.SetDefault("vm.image", d.VM.Image)
	v.SetDefault("vm.display", d.VM.Display)
	v.SetDefault("vm.memory_mb", d.VM.MemoryMB)
	v.SetDefault("vm.boot_timeout", d.VM.BootTimeout)
	v.SetDefault("vm.guest_ip", d.VM.GuestIP)
	v.SetDefault("vm.server_ip", d.VM.ServerIP)
	v.SetDefault("ssh.user", d.SSH.User)
	v.SetDefault("ssh.port", d.SSH.Port)
	v.SetDefault("ssh.key_path", d.SSH.KeyPath)
	v.SetDefault("remote.command_timeout", d.Remote.CommandTimeout)
	v.SetDefault("nfs.unfsd", d.NFS.Unfsd)
	v.SetDefault("nfs.udp", d.NFS.UDP)
	v.SetDefault("targets.triplet", d.Targets.Triplet)
	v.SetDefault("targets.version", d.Targets.Version)
	v.SetDefault("targets.file", d.Targets.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
