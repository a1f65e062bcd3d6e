package config

import "strings"

// ControllerConfig holds configuration for the Huma run controller API.
type ControllerConfig struct {
	*Config

	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
}

// LoadController reads the batch configuration plus controller-only settings.
// The controller logs to its own file so both binaries can run side by side.
func LoadController() (*ControllerConfig, error) {
	base, err := Load()
	if err != nil {
		return nil, err
	}
	cfg := &ControllerConfig{
		Config:           base,
		BindAddr:         getEnvOrDefault("ROUTES_CONTROLLER_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   splitList(getEnvOrDefault("ROUTES_CONTROLLER_PORT_CANDIDATES", "127.0.0.1:8191,127.0.0.1:8192")),
		PortAutoFallback: getEnvBoolOrDefault("ROUTES_CONTROLLER_PORT_AUTO_FALLBACK", true),
	}
	cfg.LogLevel = strings.ToLower(getEnvOrDefault("ROUTES_CONTROLLER_LOG_LEVEL", cfg.LogLevel))
	cfg.LogFile = getEnvOrDefault("ROUTES_CONTROLLER_LOG_FILE", "logs/routes_controller.log")
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
