// Package mailbox implements the fixed, read-only Account/Folder/Mail
// fixture model: loaded once from a directory of flat files at process
// start, cloned cheaply per session since it is never mutated during a
// session. Grounded on original_source's imap/account.rs.
package mailbox

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// Mail is a single fixture message: the raw file split on the first
// CRLF CRLF into header and body.
type Mail struct {
	UID    uint32
	Header string
	Body   string
}

// NewMail splits raw message bytes into header (including the terminating
// blank line) and body.
func NewMail(uid uint32, raw string) Mail {
	const sep = "\r\n\r\n"
	if idx := strings.Index(raw, sep); idx >= 0 {
		return Mail{UID: uid, Header: raw[:idx] + sep, Body: raw[idx+len(sep):]}
	}
	return Mail{UID: uid, Header: raw, Body: ""}
}

// Size returns the RFC822 octet size of the mail.
func (m Mail) Size() int {
	return len(m.Header) + len(m.Body)
}

// Raw returns the full RFC822 message.
func (m Mail) Raw() string {
	return m.Header + m.Body
}

// Folder is a single mailbox folder (INBOX or a configured empty folder).
type Folder struct {
	Name        string
	Flags       []string
	Sep         string
	UIDValidity uint32
	UIDNext     uint32
	Mails       []Mail
}

// Account is the full set of folders available in a session, built once
// at process start and cloned per session.
type Account struct {
	Folders []Folder
}

// FindFolder looks up a folder by exact name, as the original does (a
// linear scan, not a map: folder counts are tiny).
func (a Account) FindFolder(name string) (Folder, bool) {
	for _, f := range a.Folders {
		if f.Name == name {
			return f, true
		}
	}
	return Folder{}, false
}

// Clone returns an independent copy of the account so a session can carry
// its own Folders slice without sharing backing arrays across connections.
func (a Account) Clone() Account {
	out := Account{Folders: make([]Folder, len(a.Folders))}
	for i, f := range a.Folders {
		nf := f
		nf.Mails = append([]Mail(nil), f.Mails...)
		out.Folders[i] = nf
	}
	return out
}

// LoadAccount builds an Account from a directory of flat files: each
// regular file becomes one INBOX Mail, in directory-read order, with UIDs
// assigned sequentially from a random base. Every other configured folder
// name is created empty.
func LoadAccount(dir string, folderNames []string) (Account, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Account{}, err
	}

	base := rand.Uint32()
	var inbox []Mail
	i := uint32(0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return Account{}, err
		}
		inbox = append(inbox, NewMail(base+i, string(data)))
		i++
	}

	var acct Account
	for _, name := range folderNames {
		f := Folder{
			Name:        name,
			Flags:       []string{"\\Seen", "\\Answered", "\\Flagged", "\\Deleted", "\\Draft"},
			Sep:         "/",
			UIDValidity: rand.Uint32(),
			UIDNext:     base + i + 1,
		}
		if strings.EqualFold(name, "INBOX") {
			f.Name = "INBOX"
			f.Mails = inbox
		}
		acct.Folders = append(acct.Folders, f)
	}
	return acct, nil
}
