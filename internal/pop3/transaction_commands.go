package pop3

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// statCommand reports the fixed-fixture mailbox size, exactly matching
// original_source's pop3/mod.rs ("+OK 2 92").
type statCommand struct{}

func (statCommand) Name() string { return "STAT" }
func (statCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	return Response{OK: true, Message: fmt.Sprintf("%d %d", MessageCount, TotalSize)}, nil
}

// listCommand lists all messages, or a single message's size if an
// argument is given.
type listCommand struct{}

func (listCommand) Name() string { return "LIST" }
func (listCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	if len(args) == 0 {
		var lines []string
		for n := 1; n <= 2; n++ {
			lines = append(lines, fmt.Sprintf("%d %d", n, len(fixedMessage(n))))
		}
		return Response{
			OK:      true,
			Message: fmt.Sprintf("%d messages (%d octets)", MessageCount, TotalSize),
			Lines:   lines,
		}, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > 2 {
		return Response{OK: false, Message: "no such message, only 2 messages in maildrop"}, nil
	}
	return Response{OK: true, Message: fmt.Sprintf("%d %d", n, len(fixedMessage(n)))}, nil
}

// retrCommand returns the fixed fixture body for the requested message.
type retrCommand struct{}

func (retrCommand) Name() string { return "RETR" }
func (retrCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	n, err := parseMsgNum(args)
	if err != nil {
		return Response{OK: false, Message: "no such message"}, nil
	}
	body := fixedMessage(n)
	return Response{
		OK:      true,
		Message: fmt.Sprintf("%d octets", len(body)),
		Lines:   strings.Split(body, "\r\n"),
	}, nil
}

// topCommand returns the fixed fixture body regardless of the requested
// line count, matching original_source (TOP and RETR share one fixture).
type topCommand struct{}

func (topCommand) Name() string { return "TOP" }
func (topCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	if len(args) < 2 {
		return Response{OK: false, Message: "message-number and line-count required"}, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > 2 {
		return Response{OK: false, Message: "no such message"}, nil
	}
	body := fixedMessage(n)
	return Response{
		OK:      true,
		Message: "top of message follows",
		Lines:   strings.Split(body, "\r\n"),
	}, nil
}

// deleCommand acknowledges a deletion request without mutating the fixed
// fixture mailbox: every other Transaction command keeps reporting both
// messages regardless of prior DELE, matching original_source's
// mod.rs::Command::Dele arm.
type deleCommand struct{}

func (deleCommand) Name() string { return "DELE" }
func (deleCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	if _, err := parseMsgNum(args); err != nil {
		return Response{OK: false, Message: "no such message"}, nil
	}
	return Response{OK: true, Message: "message deleted"}, nil
}

// noopCommand always succeeds.
type noopCommand struct{}

func (noopCommand) Name() string { return "NOOP" }
func (noopCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	return Response{OK: true}, nil
}

// rsetCommand is acknowledged unconditionally; there is no deletion state
// to clear.
type rsetCommand struct{}

func (rsetCommand) Name() string { return "RSET" }
func (rsetCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	return Response{OK: true, Message: fmt.Sprintf("maildrop has %d messages (%d octets)", MessageCount, TotalSize)}, nil
}

// uidlCommand lists fixed UIDLs, or a single message's UIDL if an
// argument is given.
type uidlCommand struct{}

func (uidlCommand) Name() string { return "UIDL" }
func (uidlCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() != StateTransaction {
		return Response{OK: false, Message: "command not valid in this state"}, nil
	}
	if len(args) == 0 {
		var lines []string
		for n := 1; n <= 2; n++ {
			lines = append(lines, fmt.Sprintf("%d %s", n, UIDL(n)))
		}
		return Response{OK: true, Lines: lines}, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > 2 {
		return Response{OK: false, Message: "no such message, only 2 messages in maildrop"}, nil
	}
	return Response{OK: true, Message: fmt.Sprintf("%d %s", n, UIDL(n))}, nil
}

// quitCommand transitions Transaction -> Update (Authorization -> Logout
// handled directly by the handler as an immediate close).
type quitCommand struct{}

func (quitCommand) Name() string { return "QUIT" }
func (quitCommand) Execute(ctx context.Context, sess *Session, conn ConnectionLogger, args []string) (Response, error) {
	if sess.State() == StateTransaction {
		sess.EnterUpdate()
	}
	return Response{OK: true, Message: "goodbye"}, nil
}

func parseMsgNum(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrNoSuchMessage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > 2 {
		return 0, ErrNoSuchMessage
	}
	return n, nil
}

func init() {
	RegisterCommand(statCommand{})
	RegisterCommand(listCommand{})
	RegisterCommand(retrCommand{})
	RegisterCommand(topCommand{})
	RegisterCommand(deleCommand{})
	RegisterCommand(noopCommand{})
	RegisterCommand(rsetCommand{})
	RegisterCommand(uidlCommand{})
	RegisterCommand(quitCommand{})
}
