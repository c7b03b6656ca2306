// Package config loads the daemon's TOML configuration file: which
// transport family to bind, the QoS cube catalog, auth policy defaults, and
// timer overrides.
package config

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml"

	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/naming"
)

// PolicyConfig selects and parameterizes one registered auth-type.
type PolicyConfig struct {
	Name   string            `toml:"name"`
	Params map[string]string `toml:"params"`
}

// CubeConfig is one configured QoS cube.
type CubeConfig struct {
	ID                  uint32 `toml:"id"`
	Name                string `toml:"name"`
	AverageBandwidth    uint64 `toml:"average_bandwidth"`
	AverageBandwidthSet bool   `toml:"average_bandwidth_set"`
	LossPPM             uint32 `toml:"loss_ppm"`
	LossPPMSet          bool   `toml:"loss_ppm_set"`
	MaxDelayUs          uint32 `toml:"max_delay_us"`
	MaxDelayUsSet       bool   `toml:"max_delay_us_set"`
	OrderedDelivery     bool   `toml:"ordered_delivery"`
}

// Config is the daemon's full configuration.
type Config struct {
	FamilyName string `toml:"family_name"`

	// DHGroupOverride is parsed from dh_group_override but not read by any
	// component: the SSH2 policy set always uses the built-in 2048-bit MODP
	// group.
	DHGroupOverride string `toml:"dh_group_override"`

	DefaultPolicy PolicyConfig `toml:"default_policy"`
	Cubes         []CubeConfig `toml:"cubes"`

	ChallengeTimeoutSeconds int `toml:"challenge_timeout_seconds"`
	MPLSeconds              int `toml:"mpl_seconds"`
}

// ChallengeTimeout returns the configured password-policy challenge
// timeout, defaulting to 10s when unset.
func (c Config) ChallengeTimeout() time.Duration {
	if c.ChallengeTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ChallengeTimeoutSeconds) * time.Second
}

// MPL returns the configured Maximum Packet Lifetime, defaulting to 60s.
func (c Config) MPL() time.Duration {
	if c.MPLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.MPLSeconds) * time.Second
}

// QoSCubes converts the configured cube list to naming.QoSCube values.
func (c Config) QoSCubes() []naming.QoSCube {
	out := make([]naming.QoSCube, 0, len(c.Cubes))
	for _, cube := range c.Cubes {
		out = append(out, naming.QoSCube{
			ID:   cube.ID,
			Name: cube.Name,
			Bounds: naming.FlowSpec{
				AverageBandwidth:    cube.AverageBandwidth,
				AverageBandwidthSet: cube.AverageBandwidthSet,
				LossPPM:             cube.LossPPM,
				LossPPMSet:          cube.LossPPMSet,
				MaxDelayUs:          cube.MaxDelayUs,
				MaxDelayUsSet:       cube.MaxDelayUsSet,
				OrderedDelivery:     cube.OrderedDelivery,
			},
		})
	}
	return out
}

// Load reads and parses the TOML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: reading config %s: %v", errdefs.ErrInternal, path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parsing config %s: %v", errdefs.ErrMalformedMessage, path, err)
	}
	if cfg.FamilyName == "" {
		return Config{}, fmt.Errorf("%w: config %s is missing family_name", errdefs.ErrMalformedMessage, path)
	}
	return cfg, nil
}
