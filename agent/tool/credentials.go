package tool

import "strings"

// CredentialConfig carries the backend auth material and channel headers. All
// fields are optional; only what is configured gets sent.
type CredentialConfig struct {
	APIKey      string `envconfig:"API_KEY" split_words:"true"`
	CompanyID   string `envconfig:"COMPANY_ID" split_words:"true"`
	Credentials string `envconfig:"CREDENTIALS" split_words:"true"`
	DeviceID    string `envconfig:"DEVICE_ID" split_words:"true"`
	UserRole    string `envconfig:"USER_ROLE" split_words:"true"`
	ChannelName string `envconfig:"CHANNEL_NAME" split_words:"true"`
}

// EnvCredentials is the default credential provider, fed from configuration.
type EnvCredentials struct {
	cfg CredentialConfig
}

func NewEnvCredentials(cfg CredentialConfig) *EnvCredentials {
	return &EnvCredentials{cfg: cfg}
}

func (c *EnvCredentials) Headers() map[string]string {
	headers := make(map[string]string, 8)

	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		headers["Authorization"] = "Bearer " + key
	}
	for header, value := range map[string]string{
		"CompanyId":   c.cfg.CompanyID,
		"Credentials": c.cfg.Credentials,
		"DeviceId":    c.cfg.DeviceID,
		"UserRole":    c.cfg.UserRole,
		"ChannelName": c.cfg.ChannelName,
	} {
		if v := strings.TrimSpace(value); v != "" {
			headers[header] = v
		}
	}

	if len(headers) > 0 {
		headers["Content-Type"] = "application/json"
	}
	return headers
}
