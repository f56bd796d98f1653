// SPDX-License-Identifier: MPL-2.0

package naming

import (
	"errors"
	"slices"
	"testing"

	"github.com/invowk/imgexport/pkg/pkgident"
)

var redis = pkgident.MustParse("core/redis/4.0.14/20190319155852")

func TestPolicy_ImageIdentifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		policy   Policy
		wantName string
		wantTags []string
	}{
		{
			name:     "default policy",
			policy:   DefaultPolicy(),
			wantName: "core/redis",
			wantTags: []string{"latest", "4.0.14", "4.0.14-20190319155852"},
		},
		{
			name:     "no tags",
			policy:   Policy{},
			wantName: "core/redis",
			wantTags: nil,
		},
		{
			name: "custom tag comes last",
			policy: Policy{
				LatestTag: true,
				CustomTag: "{{.Channel}}-{{.Release}}",
			},
			wantName: "core/redis",
			wantTags: []string{"latest", "stable-20190319155852"},
		},
		{
			name:     "name template is lower-cased",
			policy:   Policy{ImageName: "ACME/{{.Name}}-{{.Channel}}", VersionTag: true},
			wantName: "acme/redis-stable",
			wantTags: []string{"4.0.14"},
		},
		{
			name:     "registry prefix without scheme",
			policy:   Policy{RegistryURL: "https://registry.example.com:5000/", LatestTag: true},
			wantName: "registry.example.com:5000/core/redis",
			wantTags: []string{"latest"},
		},
		{
			name:     "empty custom tag is skipped",
			policy:   Policy{CustomTag: "{{if eq .Channel \"unstable\"}}edge{{end}}"},
			wantName: "core/redis",
			wantTags: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			name, tags, err := tt.policy.ImageIdentifiers(redis, "stable")
			if err != nil {
				t.Fatalf("ImageIdentifiers() unexpected error: %v", err)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if !slices.Equal(tags, tt.wantTags) {
				t.Errorf("tags = %v, want %v", tags, tt.wantTags)
			}
		})
	}
}

func TestPolicy_ImageIdentifiers_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not fully qualified", func(t *testing.T) {
		t.Parallel()

		_, _, err := DefaultPolicy().ImageIdentifiers(pkgident.MustParse("core/redis/4.0.14"), "stable")
		if !errors.Is(err, ErrNotFullyQualified) {
			t.Errorf("error = %v, want ErrNotFullyQualified", err)
		}
	})

	t.Run("invalid image name", func(t *testing.T) {
		t.Parallel()

		_, _, err := Policy{ImageName: "{{.Origin}} {{.Name}}"}.ImageIdentifiers(redis, "stable")
		var refErr *InvalidReferenceError
		if !errors.As(err, &refErr) {
			t.Fatalf("error = %v, want InvalidReferenceError", err)
		}
		if refErr.Reference != "core redis" {
			t.Errorf("Reference = %q", refErr.Reference)
		}
		if !errors.Is(err, ErrInvalidReference) {
			t.Error("error should match ErrInvalidReference")
		}
	})

	t.Run("invalid custom tag", func(t *testing.T) {
		t.Parallel()

		_, _, err := Policy{CustomTag: "bad tag!"}.ImageIdentifiers(redis, "stable")
		if !errors.Is(err, ErrInvalidReference) {
			t.Errorf("error = %v, want ErrInvalidReference", err)
		}
	})

	t.Run("unknown template field", func(t *testing.T) {
		t.Parallel()

		if _, _, err := (Policy{ImageName: "{{.Nope}}"}).ImageIdentifiers(redis, "stable"); err == nil {
			t.Error("expected template error")
		}
	})

	t.Run("template syntax error", func(t *testing.T) {
		t.Parallel()

		if _, _, err := (Policy{CustomTag: "{{.Name"}).ImageIdentifiers(redis, "stable"); err == nil {
			t.Error("expected parse error")
		}
	})
}
