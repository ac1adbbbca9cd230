package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fhms-its/fakemaild/internal/config"
	"github.com/fhms-its/fakemaild/internal/framer"
	"github.com/fhms-its/fakemaild/internal/logging"
	"github.com/fhms-its/fakemaild/internal/mailbox"
	"github.com/fhms-its/fakemaild/internal/metrics"
	"github.com/fhms-its/fakemaild/internal/override"
	"github.com/fhms-its/fakemaild/internal/server"
	"github.com/fhms-its/fakemaild/internal/transport"
	"github.com/fhms-its/fakemaild/internal/wire"
)

// maxFetchItems caps the number of sequence matches a single FETCH
// answers, matching original_source's .take(500).
const maxFetchItems = 500

// Handler builds a server.ConnectionHandler implementing the fake IMAP4rev1
// protocol engine described by cfg, serving mail fixtures from acct.
func Handler(cfg config.IMAPConfig, acct mailbox.Account, collector metrics.Collector) server.ConnectionHandler {
	overrides := override.Table{
		IgnoreCommands:    cfg.Override.IgnoreCommands,
		IgnoreCommandsTLS: cfg.Override.IgnoreCommandsTLS,
		HideCommands:      cfg.Override.HideCommands,
		OverrideResponse:  cfg.Override.OverrideResponse,
	}

	var tlsConfig *tls.Config
	if cfg.PKCS12 != nil {
		tc, err := transport.LoadTLSConfig(transport.Identity{File: cfg.PKCS12.File, Password: cfg.PKCS12.Password})
		if err != nil {
			slog.Default().Error("imap: failed to load TLS identity", slog.String("error", err.Error()))
		} else {
			tlsConfig = tc
		}
	}

	return func(ctx context.Context, conn *server.Connection) {
		logger := logging.FromContext(ctx)

		collector.ConnectionOpened("imap")
		defer collector.ConnectionClosed("imap")

		if cfg.ImplicitTLS && !conn.IsTLS() {
			if tlsConfig == nil {
				logger.Error("imap: implicit TLS configured but no identity loaded")
				return
			}
			if err := conn.UpgradeTLS(tlsConfig); err != nil {
				logger.Error("imap: implicit TLS handshake failed", slog.String("error", err.Error()))
				return
			}
		}
		if conn.IsTLS() {
			collector.TLSConnectionEstablished("imap")
		}

		f := framer.New(conn, logger)
		f.IncompleteHook = func(buf []byte) {
			s := string(buf)
			if strings.HasSuffix(s, "}\r\n") || strings.HasSuffix(s, "}\n") {
				_ = f.SendRaw([]byte("+ continue, please\r\n"))
			}
		}

		sess := NewSession(cfg, acct, conn.IsTLS)

		greeting := cfg.Greeting
		if raw, ok := overrideResponseRaw(cfg.Override.OverrideResponse, "greeting"); ok {
			greeting = raw
		}
		if f.SendRaw([]byte(greeting)) != nil {
			return
		}
		if cfg.ResponseAfterGreeting != "" {
			if f.SendRaw([]byte(cfg.ResponseAfterGreeting)) != nil {
				return
			}
		}

		d := &dispatcher{
			cfg:       cfg,
			f:         f,
			conn:      conn,
			sess:      sess,
			collector: collector,
			logger:    logger,
			overrides: overrides,
			tlsConfig: tlsConfig,
		}

		for {
			cmd, rem, err := framer.Recv(ctx, f, ParseCommand)
			if err != nil {
				if rem != nil {
					sendLaxFailure(f, rem)
					continue
				}
				logger.Debug("imap session ending", slog.String("error", err.Error()))
				return
			}

			if !d.dispatch(ctx, cmd) {
				return
			}
			if sess.state == StateLogout {
				return
			}
		}
	}
}

// sendLaxFailure mirrors original_source's run loop Err(rem) branch: a
// command that fails to parse gets a lax "<tag> OK keep going." reply
// using the first whitespace-separated token of the unparsed remainder as
// a best-guess tag, if the remainder decodes as UTF-8 and carries one.
// Anything else (binary garbage, a bare CRLF) is silently dropped, same
// as the original.
func sendLaxFailure(f *framer.Framer, rem []byte) {
	if !utf8.Valid(rem) {
		return
	}
	fields := strings.Fields(string(rem))
	if len(fields) == 0 {
		return
	}
	_ = f.SendRaw([]byte(fields[0] + " OK keep going.\r\n"))
}

func overrideResponseRaw(m map[string]string, name string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

type dispatcher struct {
	cfg       config.IMAPConfig
	f         *framer.Framer
	conn      *server.Connection
	sess      *Session
	collector metrics.Collector
	logger    *slog.Logger
	overrides override.Table
	tlsConfig *tls.Config
}

func (d *dispatcher) sendTagged(tag, status, text string) bool {
	return d.f.SendRaw([]byte(fmt.Sprintf("%s %s %s\r\n", tag, status, text))) == nil
}

func (d *dispatcher) sendTaggedCode(tag, status, code, text string) bool {
	return d.f.SendRaw([]byte(fmt.Sprintf("%s %s [%s] %s\r\n", tag, status, code, text))) == nil
}

func (d *dispatcher) sendUntagged(text string) bool {
	return d.f.SendRaw([]byte(fmt.Sprintf("* %s\r\n", text))) == nil
}

func (d *dispatcher) sendRaw(s string) bool {
	return d.f.SendRaw([]byte(s)) == nil
}

// dispatch processes one parsed command against the session's current
// state, mirroring original_source's ImapServer::transition. It returns
// false when the connection must close.
func (d *dispatcher) dispatch(ctx context.Context, cmd Command) bool {
	result, raw := d.overrides.Apply(cmd.Name, d.sess.IsTLS())
	switch result {
	case override.Ignored:
		d.collector.CommandIgnored("imap", cmd.Name)
		return true
	case override.Hidden:
		d.collector.CommandHidden("imap", cmd.Name)
		return d.sendTagged(cmd.Tag, "BAD", "unknown command.")
	case override.Overridden:
		d.collector.CommandOverridden("imap", cmd.Name)
		return d.sendRaw(override.Substitute(raw, cmd.Tag))
	}
	d.collector.CommandProcessed("imap", cmd.Name)

	switch d.sess.state {
	case StateNotAuthenticated:
		return d.dispatchNotAuthenticated(ctx, cmd)
	case StateAuthenticated:
		return d.dispatchAuthenticated(ctx, cmd)
	case StateSelected:
		return d.dispatchSelected(ctx, cmd)
	default:
		return true
	}
}

func (d *dispatcher) dispatchNotAuthenticated(ctx context.Context, cmd Command) bool {
	switch cmd.Name {
	case "APPEND":
		return d.sendTagged(cmd.Tag, "BAD", "Append not allowed.")

	case "CAPABILITY":
		caps := d.cfg.Capabilities
		if d.sess.IsTLS() {
			caps = d.cfg.CapabilitiesTLS
		}
		if !d.sendUntagged("CAPABILITY " + strings.Join(caps, " ")) {
			return false
		}
		return d.sendTagged(cmd.Tag, "OK", "capability done.")

	case "NOOP":
		return d.sendTagged(cmd.Tag, "OK", "noop done.")

	case "LOGOUT":
		if !d.sendUntagged("BYE bye done.") {
			return false
		}
		if !d.sendTagged(cmd.Tag, "OK", "logout done.") {
			return false
		}
		d.sess.state = StateLogout
		return true

	case "STARTTLS":
		return d.handleStartTLS(cmd)

	case "AUTHENTICATE":
		return d.handleAuthenticate(ctx, cmd)

	case "LOGIN":
		return d.handleLogin(cmd)

	default:
		return d.sendTagged(cmd.Tag, "BAD", cmd.Name+" not allowed.")
	}
}

func (d *dispatcher) dispatchAuthenticated(ctx context.Context, cmd Command) bool {
	switch cmd.Name {
	case "CAPABILITY":
		caps := d.cfg.CapabilitiesAuth
		if d.sess.IsTLS() {
			caps = d.cfg.CapabilitiesTLSAuth
		}
		if !d.sendUntagged("CAPABILITY " + strings.Join(caps, " ")) {
			return false
		}
		return d.sendTagged(cmd.Tag, "OK", "capability done.")

	case "STARTTLS":
		return d.sendTaggedCode(cmd.Tag, "NO", "CAPABILITY IMAP4rev1 AUTH=LOGIN", "not allowed due to RFC.")

	case "NOOP":
		return d.sendTagged(cmd.Tag, "OK", "noop done.")

	case "LOGOUT":
		if !d.sendUntagged("BYE bye done.") {
			return false
		}
		if !d.sendTagged(cmd.Tag, "OK", "logout done.") {
			return false
		}
		d.sess.state = StateLogout
		return true

	case "SELECT", "EXAMINE":
		return d.handleSelect(cmd, true)

	case "CREATE":
		return d.sendTagged(cmd.Tag, "OK", "create done.")
	case "DELETE", "RENAME":
		// original_source's unimplemented!() for these; never crash the
		// session on attacker/tester-controlled input.
		return d.sendTagged(cmd.Tag, "NO", "command not implemented.")
	case "SUBSCRIBE":
		return d.sendTagged(cmd.Tag, "OK", "subscribe done.")
	case "UNSUBSCRIBE":
		return d.sendTagged(cmd.Tag, "OK", "unsubscribe done.")

	case "LIST":
		return d.handleList(cmd, "list")
	case "LSUB":
		return d.handleList(cmd, "lsub")

	case "STATUS":
		return d.handleStatus(cmd)

	case "APPEND":
		return d.sendTagged(cmd.Tag, "OK", "append done.")

	case "ENABLE":
		if !d.sendUntagged("ENABLED " + strings.Join(cmd.Args, " ")) {
			return false
		}
		return d.sendTagged(cmd.Tag, "OK", "enable done.")

	case "IDLE":
		return d.handleIdle(ctx, cmd, "idle from auth.", time.Second)

	case "COMPRESS":
		if !d.sendTagged(cmd.Tag, "OK", "starting DEFLATE compression") {
			return false
		}
		if err := d.conn.UpgradeCompression(); err != nil {
			d.logger.Error("imap: compression upgrade failed", slog.String("error", err.Error()))
			return false
		}
		d.collector.CompressionEstablished("imap")
		return true

	default:
		return d.sendTagged(cmd.Tag, "BAD", cmd.Name+" not allowed.")
	}
}

func (d *dispatcher) dispatchSelected(ctx context.Context, cmd Command) bool {
	switch cmd.Name {
	case "CAPABILITY", "NOOP", "LOGOUT", "CREATE", "DELETE", "RENAME",
		"SUBSCRIBE", "UNSUBSCRIBE", "LIST", "LSUB", "STATUS", "APPEND":
		return d.dispatchAuthenticated(ctx, cmd)

	case "SELECT", "EXAMINE":
		return d.handleSelect(cmd, false)

	case "CHECK":
		return d.sendTagged(cmd.Tag, "OK", "check done.")

	case "CLOSE":
		if !d.sendTagged(cmd.Tag, "OK", "close done.") {
			return false
		}
		d.sess.closeMailbox()
		return true

	case "EXPUNGE":
		return d.sendTagged(cmd.Tag, "OK", "expunge done.")

	case "SEARCH":
		return d.handleSearch(cmd)

	case "FETCH":
		return d.handleFetch(cmd)

	case "STORE":
		return d.sendTagged(cmd.Tag, "OK", "store done.")
	case "COPY":
		return d.sendTagged(cmd.Tag, "OK", "copy done.")

	case "IDLE":
		return d.handleIdle(ctx, cmd, "idle from selected.", 3*time.Second)

	default:
		return d.sendTagged(cmd.Tag, "BAD", cmd.Name+" not allowed.")
	}
}

func (d *dispatcher) handleStartTLS(cmd Command) bool {
	response := d.cfg.StartTLSResponse
	if response == "" {
		response = fmt.Sprintf("%s OK begin TLS now.\r\n", cmd.Tag)
	} else {
		response = override.Substitute(response, cmd.Tag)
	}
	if !d.sendRaw(response) {
		return false
	}
	if d.cfg.StartTLSTransition {
		if d.tlsConfig == nil {
			d.logger.Error("imap: STARTTLS accepted but no TLS identity configured")
			return false
		}
		if err := d.conn.UpgradeTLS(d.tlsConfig); err != nil {
			d.logger.Error("imap: STARTTLS upgrade failed", slog.String("error", err.Error()))
			return false
		}
		d.collector.TLSConnectionEstablished("imap")
	}
	if d.cfg.ResponseAfterTLS != "" {
		if !d.sendRaw(d.cfg.ResponseAfterTLS) {
			return false
		}
	}
	return true
}

func (d *dispatcher) handleAuthenticate(ctx context.Context, cmd Command) bool {
	if len(cmd.Args) == 0 {
		return d.sendTagged(cmd.Tag, "BAD", "mechanism required.")
	}
	mechanism := strings.ToUpper(cmd.Args[0])
	var initial string
	if len(cmd.Args) > 1 {
		initial = cmd.Args[1]
	}

	switch mechanism {
	case wire.MechPlain:
		credentials := initial
		if credentials == "" {
			if !d.sendRaw("+ \r\n") {
				return false
			}
			line, _, err := framer.Recv(ctx, d.f, wire.ParseLine)
			if err != nil {
				return false
			}
			credentials = line
		}
		logDecoded(d.logger, "credentials", credentials)

	case wire.MechLogin:
		username := initial
		if username == "" {
			if !d.sendRaw("+ VXNlcm5hbWU6\r\n") {
				return false
			}
			line, _, err := framer.Recv(ctx, d.f, wire.ParseLine)
			if err != nil {
				return false
			}
			username = line
		}
		logDecoded(d.logger, "username", username)

		if !d.sendRaw("+ UGFzc3dvcmQ6\r\n") {
			return false
		}
		passLine, _, err := framer.Recv(ctx, d.f, wire.ParseLine)
		if err != nil {
			return false
		}
		logDecoded(d.logger, "password", passLine)

	default:
		d.logger.Warn("imap: auth mechanism not supported", slog.String("mechanism", mechanism))
		return d.sendTagged(cmd.Tag, "NO", "not supported.")
	}

	d.collector.AuthAttempt("imap", mechanism, true)

	if d.cfg.OverrideAuthenticate != "" {
		return d.sendOverrideStatus(d.cfg.OverrideAuthenticate, cmd.Tag)
	}

	if !d.sendTagged(cmd.Tag, "OK", "authenticate done.") {
		return false
	}
	d.sess.state = StateAuthenticated
	return true
}

func (d *dispatcher) handleLogin(cmd Command) bool {
	if len(cmd.Args) < 2 {
		return d.sendTagged(cmd.Tag, "BAD", "username and password required.")
	}
	d.logger.Info("imap login", slog.String("username", wire.Unquote(cmd.Args[0])), slog.String("password", wire.Unquote(cmd.Args[1])))
	d.collector.AuthAttempt("imap", "LOGIN", true)

	if d.cfg.OverrideLogin != "" {
		return d.sendOverrideStatus(d.cfg.OverrideLogin, cmd.Tag)
	}

	if !d.sendTagged(cmd.Tag, "OK", "login done.") {
		return false
	}
	d.sess.state = StateAuthenticated
	return true
}

// sendOverrideStatus sends raw with <tag> substituted, transitioning to
// Authenticated only when the substituted status word is OK, exactly as
// override_login/override_authenticate behave in original_source.
func (d *dispatcher) sendOverrideStatus(raw, tag string) bool {
	substituted := override.Substitute(raw, tag)
	if !d.sendRaw(substituted) {
		return false
	}
	fields := strings.Fields(substituted)
	if len(fields) >= 2 && strings.EqualFold(fields[1], "OK") {
		d.sess.state = StateAuthenticated
	}
	return true
}

func logDecoded(logger *slog.Logger, label, b64 string) {
	decoded, err := wire.DecodeBase64(strings.TrimSpace(b64))
	if err != nil {
		logger.Warn("imap auth data is not valid base64", slog.String("field", label), slog.String("raw", b64))
		return
	}
	logger.Info("imap credentials observed", slog.String("field", label), slog.String("value", string(decoded)))
}

func (d *dispatcher) handleSelect(cmd Command, checkOverride bool) bool {
	if len(cmd.Args) == 0 {
		return d.sendTagged(cmd.Tag, "BAD", "mailbox name required.")
	}
	name := wire.Unquote(cmd.Args[0])

	if checkOverride && d.cfg.OverrideSelect != "" {
		substituted := override.Substitute(d.cfg.OverrideSelect, cmd.Tag)
		if !d.sendRaw(substituted) {
			return false
		}
		fields := strings.Fields(substituted)
		if len(fields) >= 2 && strings.EqualFold(fields[1], "OK") {
			d.sess.selectMailbox(name)
		}
		return true
	}

	folder, ok := d.sess.Account().FindFolder(name)
	if !ok {
		d.logger.Debug("imap: select on unknown folder", slog.String("mailbox", name))
		return d.sendTagged(cmd.Tag, "NO", "no such folder.")
	}

	if !d.sendSelectData(folder) {
		return false
	}
	if !d.sendTaggedCode(cmd.Tag, "OK", "READ-WRITE", "select/examine done.") {
		return false
	}
	d.sess.selectMailbox(name)
	return true
}

// sendSelectData sends the exact 7-message sequence original_source's
// ret_select_data sends, in order.
func (d *dispatcher) sendSelectData(folder mailbox.Folder) bool {
	sends := []string{
		"FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)",
		fmt.Sprintf("%d EXISTS", len(folder.Mails)),
		fmt.Sprintf("%d RECENT", len(folder.Mails)),
		"OK [UNSEEN 1] first message without the \\Seen flag set.",
		"OK [PERMANENTFLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)] flags the client can change permanently.",
		fmt.Sprintf("OK [UIDNEXT %d] the next unique identifier value.", folder.UIDNext),
		fmt.Sprintf("OK [UIDVALIDITY %d] the unique identifier validity value.", folder.UIDValidity),
	}
	for _, line := range sends {
		if !d.sendUntagged(line) {
			return false
		}
	}
	return true
}

func (d *dispatcher) handleList(cmd Command, which string) bool {
	if len(cmd.Args) < 2 {
		return d.sendTagged(cmd.Tag, "BAD", "reference and mailbox required.")
	}
	reference := wire.Unquote(cmd.Args[0])
	wildcard := wire.Unquote(cmd.Args[1])

	for _, line := range listResponses(reference, wildcard, d.cfg.Folders) {
		if !d.sendRaw(line) {
			return false
		}
	}
	return d.sendTagged(cmd.Tag, "OK", which+" done.")
}

func (d *dispatcher) handleStatus(cmd Command) bool {
	if len(cmd.Args) < 2 {
		return d.sendTagged(cmd.Tag, "BAD", "mailbox and status items required.")
	}
	name := wire.Unquote(cmd.Args[0])
	items := parseFetchItems(strings.Join(cmd.Args[1:], " "))

	folder, ok := d.sess.Account().FindFolder(name)
	var line string
	if ok {
		line = statusResponse(folder, items)
	} else {
		line = statusResponseFake(name, items)
	}
	if !d.sendRaw(line) {
		return false
	}
	return d.sendTagged(cmd.Tag, "OK", "status done.")
}

func (d *dispatcher) handleSearch(cmd Command) bool {
	uid := false
	rest := cmd.Args
	if len(rest) > 0 && strings.EqualFold(rest[0], "UID") {
		uid = true
		rest = rest[1:]
	}
	isHeaderSearch := len(rest) > 0 && strings.EqualFold(rest[0], "HEADER")

	var hits []int
	switch {
	case uid && isHeaderSearch:
		hits = nil
	case uid:
		if strings.EqualFold(d.sess.Selected(), "INBOX") {
			hits = []int{1, 2, 3}
		}
	default:
		hits = nil
	}

	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("%d", h)
	}
	if !d.sendUntagged("SEARCH " + strings.Join(parts, " ")) {
		return false
	}
	return d.sendTagged(cmd.Tag, "OK", "search done.")
}

func (d *dispatcher) handleFetch(cmd Command) bool {
	folder, ok := d.sess.Account().FindFolder(d.sess.Selected())
	if !ok {
		return d.sendTagged(cmd.Tag, "NO", "no such folder.")
	}
	if len(folder.Mails) == 0 {
		return d.sendTagged(cmd.Tag, "OK", "mailbox is empty.")
	}
	if len(cmd.Args) < 2 {
		return d.sendTagged(cmd.Tag, "BAD", "sequence set and items required.")
	}

	uid := false
	rest := cmd.Args
	if strings.EqualFold(rest[0], "UID") {
		uid = true
		rest = rest[1:]
	}
	if len(rest) < 2 {
		return d.sendTagged(cmd.Tag, "BAD", "sequence set and items required.")
	}
	seqRaw := rest[0]
	itemsRaw := strings.Join(rest[1:], " ")
	items := parseFetchItems(itemsRaw)

	if uid {
		hasUID := false
		for _, it := range items {
			if strings.EqualFold(it, "UID") {
				hasUID = true
				break
			}
		}
		if !hasUID {
			items = append([]string{"UID"}, items...)
		}

		var largest uint32
		for _, m := range folder.Mails {
			if m.UID > largest {
				largest = m.UID
			}
		}
		sent := 0
		for _, u := range sequenceSet(seqRaw, largest) {
			if sent >= maxFetchItems {
				break
			}
			seq, mail, found := findByUID(folder, u)
			if !found {
				d.logger.Debug("imap: fetch uid has no match", slog.Uint64("uid", uint64(u)))
				continue
			}
			if !d.sendFetchLine(seq, mail, items) {
				return false
			}
			sent++
		}
	} else {
		largest := uint32(len(folder.Mails))
		sent := 0
		for _, seq := range sequenceSet(seqRaw, largest) {
			if sent >= maxFetchItems {
				break
			}
			if seq == 0 || int(seq) > len(folder.Mails) {
				d.logger.Debug("imap: fetch sequence has no match", slog.Uint64("seq", uint64(seq)))
				continue
			}
			mail := folder.Mails[seq-1]
			if !d.sendFetchLine(int(seq), mail, items) {
				return false
			}
			sent++
		}
	}

	return d.sendTagged(cmd.Tag, "OK", "fetch done.")
}

func (d *dispatcher) sendFetchLine(seq int, mail mailbox.Mail, items []string) bool {
	rendered := make([]string, len(items))
	for i, item := range items {
		rendered[i] = attrToData(mail, item)
	}
	line := fmt.Sprintf("* %d FETCH (%s)\r\n", seq, strings.Join(rendered, " "))
	return d.sendRaw(line)
}

func findByUID(folder mailbox.Folder, uid uint32) (seq int, mail mailbox.Mail, ok bool) {
	for i, m := range folder.Mails {
		if m.UID == uid {
			return i + 1, m, true
		}
	}
	return 0, mailbox.Mail{}, false
}

// handleIdle runs the IDLE exchange synchronously within one command,
// rather than splitting the entry continuation and the Data::Exists/
// sleep/DONE exchange across two command-loop iterations the way
// original_source's IdleAuthenticated/IdleSelected states do (the
// original relies on the next loop iteration re-parsing "DONE" through
// the same tagged-command grammar, which "DONE" cannot satisfy). Folding
// both halves into a single synchronous exchange here is the
// idiomatic-Go equivalent with the identical wire behavior a client
// observes.
func (d *dispatcher) handleIdle(ctx context.Context, cmd Command, label string, sleepFor time.Duration) bool {
	if !d.sendRaw(fmt.Sprintf("+ %s\r\n", label)) {
		return false
	}
	if !d.sendUntagged("4 EXISTS") {
		return false
	}

	time.Sleep(sleepFor)

	for {
		line, _, err := framer.Recv(ctx, d.f, wire.ParseLine)
		if err != nil {
			return false
		}
		if strings.EqualFold(strings.TrimSpace(line), "DONE") {
			break
		}
	}

	return d.sendTagged(cmd.Tag, "OK", "idle done.")
}
