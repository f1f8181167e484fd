package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ValidationError represents a configuration issue.
type ValidationError struct {
	Field   string
	Message string
	Fatal   bool // true = can't proceed, false = will be ignored
}

// Validate checks the configuration. Returns a list of validation
// errors/warnings.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	fatal := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Fatal: true})
	}

	launch := cfg.Launch()
	if err := launch.Validate(); err != nil {
		fatal("vm", "%v", err)
	}
	if cfg.VM.BootTimeout < 0 {
		fatal("vm.boot_timeout", "must not be negative")
	}
	if (cfg.VM.GuestIP == "") != (cfg.VM.ServerIP == "") {
		errs = append(errs, ValidationError{
			Field:   "vm.guest_ip",
			Message: "guest_ip and server_ip must both be set to skip address discovery; addresses will be discovered",
		})
	}

	if cfg.SSH.Port < 1 || cfg.SSH.Port > 65535 {
		fatal("ssh.port", "%d is out of range", cfg.SSH.Port)
	}
	if cfg.SSH.KeyPath != "" {
		if _, err := os.Stat(cfg.SSH.KeyPath); err != nil {
			fatal("ssh.key_path", "%v", err)
		}
	}

	if cfg.Remote.CommandTimeout <= 0 {
		fatal("remote.command_timeout", "must be positive")
	}

	if cfg.Build.Dir != "" {
		if info, err := os.Stat(cfg.Build.Dir); err != nil || !info.IsDir() {
			fatal("build.dir", "%s is not a directory", cfg.Build.Dir)
		}
	}

	if cfg.Targets.File != "" {
		if _, err := os.Stat(cfg.Targets.File); err != nil {
			fatal("targets.file", "%v", err)
		}
	}
	if cfg.Targets.Triplet == "" || cfg.Targets.Version == "" {
		fatal("targets", "triplet and version are required")
	}

	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		fatal("log.level", "%v", err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		fatal("log.format", "%q must be text or json", cfg.Log.Format)
	}

	return errs
}

// HasFatal reports whether any issue is fatal.
func HasFatal(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Fatal {
			return true
		}
	}
	return false
}

// FormatValidationErrors returns human-readable error summary.
func FormatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Configuration problems:\n")
	for _, e := range errors {
		prefix := "Warning"
		if e.Fatal {
			prefix = "Error"
		}
		fmt.Fprintf(&b, "  %s [%s]: %s\n", prefix, e.Field, e.Message)
	}
	return b.String()
}
