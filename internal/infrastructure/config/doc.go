// Package config handles loading and validating the SwitchBot bridge
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SWITCHBOT_* environment variables
//   - Validation of required fields and of every configured device
//   - Default value handling
//
// Security Considerations:
//   - Cloud token/secret and the JWT secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/switchbot.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Devices {
//	    fmt.Println(d.Device().Name)
//	}
package config
