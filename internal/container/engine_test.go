// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"testing"
)

// Compile-time interface checks.
var (
	_ Engine = (*DockerEngine)(nil)
	_ Engine = (*PodmanEngine)(nil)
)

func TestEngineNotAvailableError_Error(t *testing.T) {
	t.Parallel()

	err := &EngineNotAvailableError{
		Engine: "podman",
		Reason: "not installed",
	}

	expected := "container engine 'podman' is not available: not installed"
	if err.Error() != expected {
		t.Errorf("EngineNotAvailableError.Error() = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, ErrNoEngineAvailable) {
		t.Error("EngineNotAvailableError should unwrap to ErrNoEngineAvailable")
	}
}

func TestDockerEngine_AvailableWithNoPath(t *testing.T) {
	t.Parallel()

	engine := &DockerEngine{BaseCLIEngine: NewBaseCLIEngine("")}
	if engine.Available() {
		t.Error("DockerEngine with empty path should not be available")
	}
}

func TestPodmanEngine_AvailableWithNoPath(t *testing.T) {
	t.Parallel()

	engine := &PodmanEngine{BaseCLIEngine: NewBaseCLIEngine("")}
	if engine.Available() {
		t.Error("PodmanEngine with empty path should not be available")
	}
}

func TestNewEngine_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewEngine("unknown")
	if !errors.Is(err, ErrInvalidEngineType) {
		t.Errorf("NewEngine(unknown) error = %v, want ErrInvalidEngineType", err)
	}
}

func TestParseEngineType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    EngineType
		wantErr bool
	}{
		{input: "docker", want: EngineTypeDocker},
		{input: "Podman", want: EngineTypePodman},
		{input: " docker ", want: EngineTypeDocker},
		{input: "containerd", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseEngineType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEngineType) {
					t.Errorf("ParseEngineType(%q) error = %v, want ErrInvalidEngineType", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseEngineType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildOptions_Validate(t *testing.T) {
	t.Parallel()

	if err := (BuildOptions{ContextDir: "/tmp", Tags: []string{"a"}}).Validate(); err != nil {
		t.Errorf("valid options returned %v", err)
	}
	if err := (BuildOptions{Tags: []string{"a"}}).Validate(); !errors.Is(err, ErrInvalidBuildOptions) {
		t.Errorf("missing context returned %v", err)
	}
	if err := (BuildOptions{ContextDir: "/tmp"}).Validate(); !errors.Is(err, ErrInvalidBuildOptions) {
		t.Errorf("missing tags returned %v", err)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	if !ExitCode(0).IsSuccess() {
		t.Error("0 should be success")
	}
	if ExitCode(125).IsSuccess() {
		t.Error("125 should not be success")
	}
	if ExitCode(125).String() != "125" {
		t.Errorf("String() = %q", ExitCode(125).String())
	}
}
