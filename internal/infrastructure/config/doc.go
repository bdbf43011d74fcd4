// Package config handles loading and validating ugoku configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with UGOKU_* environment variables
//   - Validation of required fields
//   - Default value handling (camera retry tuning, motor serial settings)
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
//     set via environment variables
//
// Usage:
//
//	cfg, err := config.Load("configs/ugoku.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, w := range cfg.Warnings() {
//	    logger.Warn(w)
//	}
package config
