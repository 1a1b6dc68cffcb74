package config

import (
	"fmt"
	"log/slog"
	"net/url"
)

type SSLConfig struct {
	Mode     string
	RootCert string
	Cert     string
	Key      string
}

// GetDatabaseURL builds a postgres:// URL for pgxpool, with SSL parameters in
// the query string.
func (c *DatabaseConfig) GetDatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.Name,
	}

	q := url.Values{}
	q.Set("sslmode", c.SSL.Mode)
	if c.SSL.RootCert != "" {
		q.Set("sslrootcert", c.SSL.RootCert)
	}
	if c.SSL.Cert != "" {
		q.Set("sslcert", c.SSL.Cert)
	}
	if c.SSL.Key != "" {
		q.Set("sslkey", c.SSL.Key)
	}
	if c.Timeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.Timeout.Seconds())))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func (c *DatabaseConfig) ValidateSSLConfig() error {
	switch c.SSL.Mode {
	case "disable":
		return fmt.Errorf("SSL disable mode is not allowed")
	case "allow", "prefer":
		slog.Warn("database SSL is opportunistic", "sslmode", c.SSL.Mode)
		return nil
	case "require":
		return nil
	case "verify-ca", "verify-full":
		if c.SSL.RootCert == "" {
			return fmt.Errorf("SSL root certificate required for mode %s", c.SSL.Mode)
		}
		return nil
	default:
		return fmt.Errorf("invalid SSL mode: %s", c.SSL.Mode)
	}
}
