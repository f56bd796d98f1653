// SPDX-License-Identifier: MPL-2.0

package buildctx

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/invowk/imgexport/pkg/cueutil"
)

// ManifestFileName is the conventional manifest name inside a build directory.
const ManifestFileName = "export.cue"

//go:embed manifest_schema.cue
var manifestSchema []byte

type (
	// Manifest is the decoded form of an export manifest.
	Manifest struct {
		BaseImage      string            `json:"base_image"`
		RootFS         string            `json:"rootfs"`
		EnvPath        string            `json:"env_path"`
		Exposes        []string          `json:"exposes"`
		MultiLayer     bool              `json:"multi_layer"`
		PrimaryService string            `json:"primary_service"`
		Channel        string            `json:"channel"`
		Packages       []Package         `json:"packages"`
		Environment    map[string]string `json:"environment"`
		Users          []User            `json:"users"`
		Groups         []Group           `json:"groups"`
		Supervisor     string            `json:"supervisor"`
		Shell          string            `json:"shell"`
		BinPath        string            `json:"bin_path"`
	}

	// Package is an installed package and the packages it depends on.
	Package struct {
		Ident string   `json:"ident"`
		Deps  []string `json:"deps"`
	}

	// User is an account added to the image's passwd database.
	User struct {
		Name  string `json:"name"`
		UID   int    `json:"uid"`
		GID   int    `json:"gid"`
		Gecos string `json:"gecos"`
		Home  string `json:"home"`
		Shell string `json:"shell"`
	}

	// Group is an entry added to the image's group database.
	Group struct {
		Name    string   `json:"name"`
		GID     int      `json:"gid"`
		Members []string `json:"members"`
	}
)

// String renders u as a passwd(5) line without the trailing newline.
func (u User) String() string {
	return strings.Join([]string{
		u.Name, "x", strconv.Itoa(u.UID), strconv.Itoa(u.GID), u.Gecos, u.Home, u.Shell,
	}, ":")
}

// String renders g as a group(5) line without the trailing newline.
func (g Group) String() string {
	return fmt.Sprintf("%s:x:%d:%s", g.Name, g.GID, strings.Join(g.Members, ","))
}

// ParseManifest validates data against the #Manifest schema and decodes it.
// filename is only used in error messages.
func ParseManifest(data []byte, filename string) (*Manifest, error) {
	result, err := cueutil.ParseAndDecode[Manifest](manifestSchema, data, "#Manifest",
		cueutil.WithConcrete(true), cueutil.WithFilename(filename))
	if err != nil {
		return nil, &InvalidManifestError{Path: filename, Cause: err}
	}
	return result.Value, nil
}

// ReadManifest reads and validates the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	result, err := cueutil.ParseFile[Manifest](manifestSchema, path, "#Manifest", cueutil.WithConcrete(true))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, &InvalidManifestError{Path: path, Cause: err}
	}
	return result.Value, nil
}
