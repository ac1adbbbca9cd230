package imap

import (
	"fmt"
	"strings"

	"github.com/fhms-its/fakemaild/internal/mailbox"
)

// canonicalForm implements original_source's responses.rs::canonical_form:
// an empty mailbox_wildcard is a request for the hierarchy delimiter and
// root name, otherwise the canonical mailbox name is reference+wildcard
// concatenated verbatim (no break-out character handling).
func canonicalForm(reference, wildcard string) (hierarchy bool, canonical string) {
	if wildcard == "" {
		return true, ""
	}
	return false, reference + wildcard
}

// listResponses computes the set of "* LIST (...) "/" <mailbox>" lines a
// LIST or LSUB command should produce, given the configured folder names,
// following canonical_form's three cases: a hierarchy request, a "*"/"%"
// wildcard listing every folder, or an exact folder-name (or INBOX)
// match.
func listResponses(reference, wildcard string, folders []string) []string {
	hierarchy, canonical := canonicalForm(reference, wildcard)
	if hierarchy {
		return []string{"* LIST () \"/\" \"\"\r\n"}
	}

	if canonical == "*" || canonical == "%" {
		lines := make([]string, 0, len(folders))
		for _, name := range folders {
			lines = append(lines, fmt.Sprintf("* LIST () \"/\" %s\r\n", quoteMailbox(name)))
		}
		return lines
	}

	for _, name := range folders {
		if name == canonical {
			return []string{fmt.Sprintf("* LIST () \"/\" %s\r\n", quoteMailbox(name))}
		}
	}
	if strings.EqualFold(canonical, "INBOX") {
		return []string{"* LIST () \"/\" INBOX\r\n"}
	}
	return nil
}

func quoteMailbox(name string) string {
	if strings.EqualFold(name, "INBOX") {
		return "INBOX"
	}
	return fmt.Sprintf("%q", name)
}

// statusResponse renders the "* STATUS mailbox (...)" line for a real
// folder lookup, in the items' requested order.
func statusResponse(folder mailbox.Folder, items []string) string {
	var parts []string
	for _, item := range items {
		switch strings.ToUpper(item) {
		case "MESSAGES":
			parts = append(parts, fmt.Sprintf("MESSAGES %d", len(folder.Mails)))
		case "UNSEEN":
			parts = append(parts, fmt.Sprintf("UNSEEN %d", len(folder.Mails)))
		case "UIDVALIDITY":
			parts = append(parts, fmt.Sprintf("UIDVALIDITY %d", folder.UIDValidity))
		case "UIDNEXT":
			parts = append(parts, fmt.Sprintf("UIDNEXT %d", folder.UIDNext))
		case "RECENT":
			parts = append(parts, fmt.Sprintf("RECENT %d", len(folder.Mails)))
		}
	}
	return fmt.Sprintf("* STATUS %s (%s)\r\n", quoteMailbox(folder.Name), strings.Join(parts, " "))
}

// statusResponseFake renders the hardcoded zero-message STATUS fallback
// original_source sends for an unknown mailbox: UidValidity 123456,
// UidNext 1, everything else 0.
func statusResponseFake(mailboxName string, items []string) string {
	var parts []string
	for _, item := range items {
		switch strings.ToUpper(item) {
		case "MESSAGES":
			parts = append(parts, "MESSAGES 0")
		case "UNSEEN":
			parts = append(parts, "UNSEEN 0")
		case "UIDVALIDITY":
			parts = append(parts, "UIDVALIDITY 123456")
		case "UIDNEXT":
			parts = append(parts, "UIDNEXT 1")
		case "RECENT":
			parts = append(parts, "RECENT 0")
		}
	}
	return fmt.Sprintf("* STATUS %s (%s)\r\n", quoteMailbox(mailboxName), strings.Join(parts, " "))
}
