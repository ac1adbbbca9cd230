package imap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fhms-its/fakemaild/internal/mailbox"
)

// fetchMacros expands the three named FETCH macros, as imap_codec's
// MacroOrDataItems::Macro(..).expand() does.
var fetchMacros = map[string][]string{
	"ALL":  {"FLAGS", "INTERNALDATE", "RFC822.SIZE", "ENVELOPE"},
	"FAST": {"FLAGS", "INTERNALDATE", "RFC822.SIZE"},
	"FULL": {"FLAGS", "INTERNALDATE", "RFC822.SIZE", "ENVELOPE", "BODY"},
}

// parseFetchItems splits a FETCH items argument -- a macro name, a bare
// item, or a parenthesized list -- into individual item tokens,
// expanding macros and respecting bracketed sections (BODY[HEADER.FIELDS
// (To From)] must stay one token).
func parseFetchItems(raw string) []string {
	raw = strings.TrimSpace(raw)
	if macro, ok := fetchMacros[strings.ToUpper(raw)]; ok {
		return macro
	}
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")

	var items []string
	var cur strings.Builder
	depth := 0
	for _, r := range raw {
		switch {
		case r == '[':
			depth++
			cur.WriteRune(r)
		case r == ']':
			depth--
			cur.WriteRune(r)
		case r == ' ' && depth == 0:
			if cur.Len() > 0 {
				items = append(items, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		items = append(items, cur.String())
	}
	return items
}

// attrToData renders one FETCH data item for mail, mirroring
// original_source's responses.rs::attr_to_data. Item variants the
// original leaves unimplemented!() (bare BODY, RFC822, RFC822.TEXT, and
// any BODY[...] partial range with a nonzero starting offset) render as
// NIL here instead of crashing the session.
func attrToData(mail mailbox.Mail, item string) string {
	upper := strings.ToUpper(item)
	switch {
	case upper == "UID":
		return fmt.Sprintf("UID %d", mail.UID)
	case upper == "FLAGS":
		return "FLAGS (\\Recent)"
	case upper == "INTERNALDATE":
		return "INTERNALDATE \"01-Oct-2019 12:34:56 +0000\""
	case upper == "RFC822.SIZE":
		return fmt.Sprintf("RFC822.SIZE %d", len(mail.Body))
	case upper == "RFC822.HEADER":
		return fmt.Sprintf("RFC822.HEADER {%d}\r\n%s", len(mail.Header), mail.Header)
	case upper == "ENVELOPE":
		return "ENVELOPE \"\""
	case upper == "BODYSTRUCTURE":
		lines := strings.Count(mail.Body, "\n") + 1
		return fmt.Sprintf("BODYSTRUCTURE (\"TEXT\" \"PLAIN\" (\"CHARSET\" \"US-ASCII\") NIL NIL \"7BIT\" %d %d)", len(mail.Body), lines)
	case upper == "BODY", upper == "RFC822", upper == "RFC822.TEXT":
		return upper + " NIL"
	case strings.HasPrefix(upper, "BODY["), strings.HasPrefix(upper, "BODY.PEEK["):
		return fetchBodySection(mail, item)
	default:
		return item + " NIL"
	}
}

// fetchBodySection renders BODY[...] and BODY.PEEK[...] items: HEADER,
// HEADER.FIELDS (...), TEXT and the bare whole-message section, each
// optionally followed by a <first,max> partial range. Any other section
// kind (MIME, a numbered part, HEADER.FIELDS.NOT, or a partial range with
// first != 0) is a deliberate gap in the original too, and renders as
// NIL rather than crashing the session.
func fetchBodySection(mail mailbox.Mail, item string) string {
	open := strings.Index(item, "[")
	closeIdx := strings.LastIndex(item, "]")
	if open < 0 || closeIdx < open {
		return item + " NIL"
	}
	section := strings.TrimSpace(item[open+1 : closeIdx])
	partial := item[closeIdx+1:]

	label := "BODY[" + section + "]"

	var first, maximum int
	hasPartial := false
	if strings.HasPrefix(partial, "<") && strings.HasSuffix(partial, ">") {
		parts := strings.SplitN(strings.Trim(partial, "<>"), ".", 2)
		if len(parts) == 2 {
			first, _ = strconv.Atoi(parts[0])
			maximum, _ = strconv.Atoi(parts[1])
			hasPartial = true
		}
	}

	var body string
	switch {
	case section == "":
		body = mail.Body
	case strings.EqualFold(section, "TEXT"):
		body = mail.Body
	case strings.EqualFold(section, "HEADER"):
		label = "BODY[HEADER]"
		body = mail.Header
	case strings.HasPrefix(strings.ToUpper(section), "HEADER.FIELDS ") || strings.HasPrefix(strings.ToUpper(section), "HEADER.FIELDS("):
		label = "BODY[" + section + "]"
		body = mail.Header
	default:
		return label + " NIL"
	}

	if hasPartial {
		if first != 0 {
			return label + " NIL"
		}
		n := maximum
		if n > len(body) {
			n = len(body)
		}
		return fmt.Sprintf("%s<%d> {%d}\r\n%s", label, n, n, body[:n])
	}
	return fmt.Sprintf("%s {%d}\r\n%s", label, len(body), body)
}

// sequenceSet parses a FETCH/SEARCH sequence-set string (comma-separated
// ranges of numbers or "*") into the ordered, deduplicated list of
// sequence numbers it denotes, capped against largest the way
// imap_codec's Strategy::Naive iterator resolves "*".
func sequenceSet(raw string, largest uint32) []uint32 {
	var out []uint32
	seen := map[uint32]bool{}
	add := func(n uint32) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, ":"); idx >= 0 {
			lo := resolveSeq(part[:idx], largest)
			hi := resolveSeq(part[idx+1:], largest)
			if lo > hi {
				lo, hi = hi, lo
			}
			for n := lo; n <= hi; n++ {
				add(n)
			}
			continue
		}
		add(resolveSeq(part, largest))
	}
	return out
}

func resolveSeq(tok string, largest uint32) uint32 {
	if tok == "*" {
		return largest
	}
	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}
