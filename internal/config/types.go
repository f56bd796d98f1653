// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/invowk/imgexport/internal/naming"
)

const (
	// ContainerEnginePodman uses Podman as the container engine.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker as the container engine.
	ContainerEngineDocker ContainerEngine = "docker"

	// InitStrategyAuto picks the root preparation from the target OS.
	InitStrategyAuto InitStrategy = "auto"
	// InitStrategyContainer always adds users, groups and /init.sh.
	InitStrategyContainer InitStrategy = "container"
	// InitStrategyNative relies on the platform init.
	InitStrategyNative InitStrategy = "native"

	// DefaultReportDir is where the build report is written by default.
	DefaultReportDir = "results"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidInitStrategy is returned when an InitStrategy value is not recognized.
	ErrInvalidInitStrategy = errors.New("invalid init strategy")
	// ErrInvalidMemory is returned when a memory limit is not a number with an optional unit.
	ErrInvalidMemory = errors.New("invalid memory limit")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	// memoryPattern matches config_schema.cue's memory constraint.
	memoryPattern = regexp.MustCompile(`^([0-9]+[bkmgBKMG]?)?$`)
)

type (
	// ContainerEngine specifies which container engine to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// InitStrategy selects how the build root is prepared.
	InitStrategy string

	// InvalidInitStrategyError is returned when an InitStrategy value is not recognized.
	InvalidInitStrategyError struct {
		Value InitStrategy
	}

	// InvalidMemoryError is returned when a memory limit does not match
	// <digits>[b|k|m|g].
	InvalidMemoryError struct {
		Value string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// ContainerEngine specifies whether to use "podman" or "docker"
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// RegistryURL is the registry pushed to; empty means Docker Hub
		RegistryURL string `json:"registry_url" mapstructure:"registry_url"`
		// Memory is the build memory limit passed to the engine (e.g. "2g")
		Memory string `json:"memory" mapstructure:"memory"`
		// ReportDir is where last_docker_export.env is written
		ReportDir string `json:"report_dir" mapstructure:"report_dir"`
		// StagingDir is the parent of temporary build roots; empty uses the default
		StagingDir string `json:"staging_dir" mapstructure:"staging_dir"`
		// InitStrategy selects the root preparation pipeline
		InitStrategy InitStrategy `json:"init_strategy" mapstructure:"init_strategy"`
		// Naming configures image names and tags
		Naming NamingConfig `json:"naming" mapstructure:"naming"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// NamingConfig mirrors naming.Policy without the registry, which lives at the top level.
	NamingConfig struct {
		// ImageName is a text/template over Origin, Name, Version, Release and Channel
		ImageName string `json:"image_name" mapstructure:"image_name"`
		// LatestTag adds the "latest" tag
		LatestTag bool `json:"latest_tag" mapstructure:"latest_tag"`
		// VersionTag adds the package version as a tag
		VersionTag bool `json:"version_tag" mapstructure:"version_tag"`
		// VersionReleaseTag adds "<version>-<release>" as a tag
		VersionReleaseTag bool `json:"version_release_tag" mapstructure:"version_release_tag"`
		// CustomTag is an optional text/template rendered into one more tag
		CustomTag string `json:"custom_tag" mapstructure:"custom_tag"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging and full error chains
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: podman, docker)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

func (ce ContainerEngine) String() string { return string(ce) }

// IsValid returns whether the ContainerEngine is one of the defined engines,
// and a list of validation errors if it is not.
func (ce ContainerEngine) IsValid() (bool, []error) {
	switch ce {
	case ContainerEnginePodman, ContainerEngineDocker:
		return true, nil
	default:
		return false, []error{&InvalidContainerEngineError{Value: ce}}
	}
}

func (e *InvalidInitStrategyError) Error() string {
	return fmt.Sprintf("invalid init strategy %q (valid: auto, container, native)", e.Value)
}

// Unwrap returns ErrInvalidInitStrategy for errors.Is() compatibility.
func (e *InvalidInitStrategyError) Unwrap() error { return ErrInvalidInitStrategy }

func (s InitStrategy) String() string { return string(s) }

// IsValid returns whether the InitStrategy is one of the defined strategies.
func (s InitStrategy) IsValid() (bool, []error) {
	switch s {
	case InitStrategyAuto, InitStrategyContainer, InitStrategyNative:
		return true, nil
	default:
		return false, []error{&InvalidInitStrategyError{Value: s}}
	}
}

func (e *InvalidMemoryError) Error() string {
	return fmt.Sprintf("invalid memory limit %q (expected digits with an optional b, k, m or g unit)", e.Value)
}

// Unwrap returns ErrInvalidMemory for errors.Is() compatibility.
func (e *InvalidMemoryError) Unwrap() error { return ErrInvalidMemory }

// ValidateMemory checks a build memory limit. The empty string means no limit.
func ValidateMemory(s string) error {
	if !memoryPattern.MatchString(s) {
		return &InvalidMemoryError{Value: s}
	}
	return nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid validates the enumerated fields of c. Shape constraints are
// enforced by the CUE schema when the file is loaded; this also catches
// values injected through environment overrides.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if ok, fieldErrs := c.ContainerEngine.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.InitStrategy.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if err := ValidateMemory(c.Memory); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.ReportDir) == "" {
		errs = append(errs, errors.New("report_dir must not be empty"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// NamingPolicy returns the naming policy described by c.
func (c Config) NamingPolicy() naming.Policy {
	return naming.Policy{
		ImageName:         c.Naming.ImageName,
		LatestTag:         c.Naming.LatestTag,
		VersionTag:        c.Naming.VersionTag,
		VersionReleaseTag: c.Naming.VersionReleaseTag,
		CustomTag:         c.Naming.CustomTag,
		RegistryURL:       c.RegistryURL,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	policy := naming.DefaultPolicy()
	return &Config{
		ContainerEngine: ContainerEngineDocker,
		ReportDir:       DefaultReportDir,
		InitStrategy:    InitStrategyAuto,
		Naming: NamingConfig{
			ImageName:         policy.ImageName,
			LatestTag:         policy.LatestTag,
			VersionTag:        policy.VersionTag,
			VersionReleaseTag: policy.VersionReleaseTag,
		},
	}
}
