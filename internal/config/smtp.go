package config

// SMTPConfig is the SMTP engine's configuration, field names and defaults
// taken from original_source's smtp/config.rs.
type SMTPConfig struct {
	Greeting           string         `toml:"greeting"`
	Capabilities       []string       `toml:"capabilities"`
	CapabilitiesTLS    []string       `toml:"capabilities_tls"`
	STLSResponse       string         `toml:"stls_response"`
	STLSMakeTransition bool           `toml:"stls_make_transition"`
	ImplicitTLS        bool           `toml:"implicit_tls"`
	PKCS12             *PKCS12Config  `toml:"pkcs12"`
	Override           OverrideConfig `toml:"override"`
}

// DefaultSMTPConfig returns the defaults from original_source's smtp/config.rs.
func DefaultSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Greeting: "220 smtp.example.com ESMTP fake\r\n",
		Capabilities: []string{
			"250-smtp.example.com",
			"250 8BITMIME",
		},
		CapabilitiesTLS: []string{
			"250-smtp.example.com",
			"250-STARTTLS",
			"250 8BITMIME",
		},
		STLSResponse:       "220 Ready to start TLS\r\n",
		STLSMakeTransition: true,
		ImplicitTLS:        false,
	}
}
