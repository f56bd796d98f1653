// SPDX-License-Identifier: MPL-2.0

package buildroot

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ContainerInit prepares a root that starts through /init.sh, with the
	// users and groups the service runs as.
	ContainerInit Strategy = "container"
	// NativeInit prepares a root that relies on the platform's own init and
	// only needs a Dockerfile.
	NativeInit Strategy = "native"

	// strategyAuto selects the strategy from the target OS.
	strategyAuto = "auto"
)

// ErrInvalidStrategy is returned for an unknown strategy name.
var ErrInvalidStrategy = errors.New("invalid init strategy")

// Strategy selects the root preparation pipeline.
type Strategy string

// StrategyFor returns the strategy for a target OS, as named by GOOS.
// Windows images have no POSIX init and take the native path.
func StrategyFor(goos string) Strategy {
	if goos == "windows" {
		return NativeInit
	}
	return ContainerInit
}

// ResolveStrategy maps a configured name to a Strategy. "auto" and the empty
// string defer to StrategyFor(goos).
func ResolveStrategy(name, goos string) (Strategy, error) {
	switch s := strings.ToLower(strings.TrimSpace(name)); s {
	case "", strategyAuto:
		return StrategyFor(goos), nil
	case string(ContainerInit), string(NativeInit):
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q (expected auto, container or native)", ErrInvalidStrategy, name)
	}
}

func (s Strategy) String() string { return string(s) }
