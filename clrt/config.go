package clrt

import (
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/goclrt/cl"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding the configuration file.
const (
	BackendEnv        = "GOCLRT_BACKEND"
	BuildOptionsEnv   = "GOCLRT_BUILD_OPTIONS"
	QueueProfilingEnv = "GOCLRT_QUEUE_PROFILING"
	TopologyEnv       = "GOCLRT_SIM_TOPOLOGY"
)

// Config of the runtime.
type Config struct {
	// Backend is the name of the registered cl back end to use, e.g. "sim" or "opencl".
	Backend string `yaml:"backend"`

	// Topology is the YAML file describing the simulated platforms, used by the "sim" back end.
	Topology string `yaml:"topology"`

	// BuildOptions are prepended to the options of every program compilation, e.g. "-cl-fast-relaxed-math".
	BuildOptions string `yaml:"build_options"`

	// QueueProfiling enables profiling on the devices' command queues.
	QueueProfiling bool `yaml:"queue_profiling"`
}

// DefaultConfig uses the simulator back end, with queue profiling enabled.
func DefaultConfig() Config {
	return Config{
		Backend:        "sim",
		QueueProfiling: true,
	}
}

// LoadConfig reads the YAML configuration file at path (if not empty) over DefaultConfig, and then applies the
// GOCLRT_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read configuration from %q", path)
		}
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse configuration in %q", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(BackendEnv); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(TopologyEnv); v != "" {
		c.Topology = v
	}
	if v, found := os.LookupEnv(BuildOptionsEnv); found {
		c.BuildOptions = v
	}
	if v := os.Getenv(QueueProfilingEnv); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid value %q for %s", v, QueueProfilingEnv)
		}
		c.QueueProfiling = enabled
	}
	return nil
}

// QueueProperties used to create the devices' command queues.
func (c Config) QueueProperties() cl.QueueProperties {
	if c.QueueProfiling {
		return cl.QueueProfilingEnable
	}
	return 0
}

// buildOptions joins the configured default options with the ones given for one compilation.
func (c Config) buildOptions(options string) string {
	return strings.TrimSpace(c.BuildOptions + " " + options)
}
