// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"os"

	"github.com/invowk/imgexport/internal/config"
	"github.com/invowk/imgexport/internal/container"
)

// RegistryTokenEnv names the environment variable holding a ready-made
// registry auth token.
const RegistryTokenEnv = "IMGEXPORT_REGISTRY_TOKEN"

type (
	// EngineFactory resolves the container engine named by the configuration.
	EngineFactory func(engine config.ContainerEngine) (container.Engine, error)

	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference and delegate through it.
	App struct {
		Config  config.Provider
		Engines EngineFactory
		getenv  func(string) string
		stdout  io.Writer
		stderr  io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config  config.Provider
		Engines EngineFactory
		Getenv  func(string) string
		Stdout  io.Writer
		Stderr  io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Engines == nil {
		deps.Engines = defaultEngineFactory
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}

	return &App{
		Config:  deps.Config,
		Engines: deps.Engines,
		getenv:  deps.Getenv,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
	}
}

// defaultEngineFactory prefers the configured engine and falls back to the
// other one when it is not installed.
func defaultEngineFactory(engine config.ContainerEngine) (container.Engine, error) {
	engineType, err := container.ParseEngineType(string(engine))
	if err != nil {
		return nil, err
	}
	return container.NewEngine(engineType)
}
