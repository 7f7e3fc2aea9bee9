// Package config handles loading and validating the RCP engine configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (RCP_*)
//   - Validation of required fields and device declarations
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, the JWT secret) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Protocol.Prefix)
package config
