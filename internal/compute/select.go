package compute

import (
	"fmt"

	"github.com/bft-labs/rankflow/internal/ports"
	"github.com/bft-labs/rankflow/pkg/log"
)

// Preference names how the backend is chosen.
type Preference string

const (
	PreferAuto     Preference = "auto"
	PreferCPU      Preference = "cpu"
	PreferGPU      Preference = "gpu"
	PreferEmulated Preference = "emulated"
)

// ParsePreference validates s. An empty string means auto.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(s); p {
	case "":
		return PreferAuto, nil
	case PreferAuto, PreferCPU, PreferGPU, PreferEmulated:
		return p, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want auto, cpu, gpu or emulated)", s)
	}
}

// openDevice is replaced in tests.
var openDevice = OpenDevice

// Select probes once and returns the backend to use for the whole process.
func Select(pref Preference, logger log.Logger) (ports.ComputeBackend, error) {
	logger = log.OrNoop(logger)

	switch pref {
	case PreferCPU:
		return NewCPU(), nil
	case PreferEmulated:
		return NewGPU(NewEmulatedDevice()), nil
	case PreferGPU:
		dev, err := openDevice()
		if err != nil {
			return nil, fmt.Errorf("gpu backend requested: %w", err)
		}
		return NewGPU(dev), nil
	case PreferAuto, "":
		dev, err := openDevice()
		if err != nil {
			logger.Warn("GPU unavailable, using CPU backend", log.Err(err))
			return NewCPU(), nil
		}
		major, minor := dev.ComputeCapability()
		logger.Info("using GPU backend",
			log.String("device", dev.Name()),
			log.Int("capability_major", major),
			log.Int("capability_minor", minor),
		)
		return NewGPU(dev), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", pref)
	}
}
