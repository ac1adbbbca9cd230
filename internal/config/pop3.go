package config

// POP3Config is the POP3 engine's configuration, field names and defaults
// taken from original_source's pop3/config.rs.
type POP3Config struct {
	Greeting           string         `toml:"greeting"`
	Capa               []string       `toml:"capa"`
	CapaAuth           []string       `toml:"capa_auth"`
	CapaTLS            []string       `toml:"capa_tls"`
	CapaTLSAuth        []string       `toml:"capa_tls_auth"`
	STLSResponse       string         `toml:"stls_response"`
	STLSMakeTransition bool           `toml:"stls_make_transition"`
	ImplicitTLS        bool           `toml:"implicit_tls"`
	PKCS12             *PKCS12Config  `toml:"pkcs12"`
	Override           OverrideConfig `toml:"override"`
}

// DefaultPOP3Config returns the defaults from original_source's pop3/config.rs.
func DefaultPOP3Config() POP3Config {
	return POP3Config{
		Greeting:           "+OK POP3 fake server ready.\r\n",
		Capa:               []string{"TOP", "UIDL", "USER"},
		CapaAuth:           []string{"TOP", "UIDL", "SASL PLAIN"},
		CapaTLS:            []string{"TOP", "UIDL", "USER", "STLS"},
		CapaTLSAuth:        []string{"TOP", "UIDL", "USER", "SASL PLAIN"},
		STLSResponse:       "+OK Begin fake TLS negotiation now.\r\n",
		STLSMakeTransition: true,
		ImplicitTLS:        false,
	}
}
