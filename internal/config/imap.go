package config

// IMAPConfig is the IMAP engine's configuration, field names and defaults
// taken from original_source's imap/config.rs.
type IMAPConfig struct {
	Greeting               string         `toml:"greeting"`
	Capabilities           []string       `toml:"capabilities"`
	CapabilitiesAuth       []string       `toml:"capabilities_auth"`
	CapabilitiesTLS        []string       `toml:"capabilities_tls"`
	CapabilitiesTLSAuth    []string       `toml:"capabilities_tls_auth"`
	StartTLSResponse       string         `toml:"starttls_response"`
	StartTLSTransition     bool           `toml:"starttls_transition"`
	ResponseAfterTLS       string         `toml:"response_after_tls"`
	ResponseAfterGreeting  string         `toml:"response_after_greeting"`
	OverrideAuthenticate   string         `toml:"override_authenticate"`
	OverrideLogin          string         `toml:"override_login"`
	OverrideSelect         string         `toml:"override_select"`
	ImplicitTLS            bool           `toml:"implicit_tls"`
	PKCS12                 *PKCS12Config  `toml:"pkcs12"`
	Override               OverrideConfig `toml:"override"`
	Folders                []string       `toml:"folders"`
	InitialState           string         `toml:"state"`
}

// DefaultIMAPConfig returns the defaults from original_source's imap/config.rs.
func DefaultIMAPConfig() IMAPConfig {
	return IMAPConfig{
		Greeting:     "* OK Fake IMAP server ready.\r\n",
		Capabilities: []string{"IMAP4rev1"},
		CapabilitiesAuth: []string{
			"IMAP4rev1", "IDLE",
		},
		CapabilitiesTLS: []string{
			"IMAP4rev1", "STARTTLS", "AUTH=PLAIN", "AUTH=LOGIN",
		},
		CapabilitiesTLSAuth: []string{
			"IMAP4rev1", "IDLE",
		},
		StartTLSTransition: true,
		Folders:            []string{"INBOX", "Sent", "sent", "Trash", "Drafts"},
		InitialState:       "not_authenticated",
	}
}
