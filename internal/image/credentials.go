// SPDX-License-Identifier: MPL-2.0

package image

import (
	"encoding/base64"
	"encoding/json"
)

// DefaultRegistryURL is the auth key used when no registry URL is given.
const DefaultRegistryURL = "https://index.docker.io/v1/"

type (
	// Credentials carries an opaque registry auth token.
	Credentials struct {
		Token string
	}

	dockerConfig struct {
		Auths map[string]dockerAuth `json:"auths"`
	}

	dockerAuth struct {
		Auth string `json:"auth"`
	}
)

// CredentialsFromLogin encodes a username and password as base64("user:password").
func CredentialsFromLogin(username, password string) Credentials {
	return Credentials{Token: base64.StdEncoding.EncodeToString([]byte(username + ":" + password))}
}

// renderDockerConfig returns the compact JSON auth document
// {"auths":{"<registry>":{"auth":"<token>"}}}.
func renderDockerConfig(creds Credentials, registryURL string) ([]byte, error) {
	if registryURL == "" {
		registryURL = DefaultRegistryURL
	}
	return json.Marshal(dockerConfig{
		Auths: map[string]dockerAuth{registryURL: {Auth: creds.Token}},
	})
}
