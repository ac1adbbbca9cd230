// Package override implements the scriptable ignore/hide/raw-response
// dispatch layer applied before any protocol-level command handling,
// shared by the SMTP, POP3 and IMAP engines. Grounded on the three-layer
// precedence in original_source's imap/mod.rs, pop3/mod.rs and smtp/mod.rs
// run() loops.
package override

import "strings"

// Table holds the per-protocol override configuration. Keys in
// OverrideResponse are matched case-insensitively against the command
// name, same as HideCommands/IgnoreCommands/IgnoreCommandsTLS.
type Table struct {
	IgnoreCommands    []string
	IgnoreCommandsTLS []string
	HideCommands      []string
	OverrideResponse  map[string]string
}

// Result describes how the override layer disposed of a command.
type Result int

const (
	// NotMatched means no override layer matched; protocol dispatch
	// should proceed normally.
	NotMatched Result = iota
	// Ignored means the command must be silently dropped, no response sent.
	Ignored
	// Hidden means a protocol-specific "command not recognized" response
	// should be sent (the caller supplies the exact wire text).
	Hidden
	// Overridden means raw should be sent verbatim (after <tag> substitution).
	Overridden
)

// Apply checks a received command name against the table's three layers,
// in order: ignore, hide, raw override. isTLS selects whether
// IgnoreCommandsTLS or IgnoreCommands is consulted.
func (t Table) Apply(name string, isTLS bool) (result Result, raw string) {
	ignoreList := t.IgnoreCommands
	if isTLS {
		ignoreList = t.IgnoreCommandsTLS
	}
	if containsFold(ignoreList, name) {
		return Ignored, ""
	}
	if containsFold(t.HideCommands, name) {
		return Hidden, ""
	}
	if t.OverrideResponse != nil {
		for k, v := range t.OverrideResponse {
			if strings.EqualFold(k, name) {
				return Overridden, v
			}
		}
	}
	return NotMatched, ""
}

// Substitute replaces every occurrence of <tag> in raw with tag.
func Substitute(raw, tag string) string {
	return strings.ReplaceAll(raw, "<tag>", tag)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
