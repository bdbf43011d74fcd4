package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/nerrad567/ugoku-core/internal/auth"
	"github.com/nerrad567/ugoku-core/internal/infrastructure/config"
)

// tokenCmd mints an API token signed with security.jwt.secret.
func tokenCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	cfgFlag := fs.String("config", "", "config file")
	subject := fs.String("subject", "operator", "token subject")
	role := fs.String("role", string(auth.RoleOperator), "viewer or operator")
	ttl := fs.Int("ttl", 0, "lifetime in minutes (default security.jwt.access_token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Decode(configPath(*cfgFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return fmt.Errorf("%w: set security.jwt.secret or UGOKU_JWT_SECRET", auth.ErrNoSecret)
	}
	if *ttl == 0 {
		*ttl = cfg.Security.JWT.AccessTokenTTL
	}

	token, err := auth.GenerateToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
