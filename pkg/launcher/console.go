package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/schardosin/folio/pkg/conversation"
	"github.com/schardosin/folio/pkg/leads"
	"github.com/schardosin/folio/pkg/relay"
	"github.com/schardosin/folio/pkg/widget"
)

// ConsoleConfig contains configuration for the line-mode chat console
type ConsoleConfig struct {
	Controller *widget.Controller
	In         io.Reader
	Out        io.Writer
}

type consoleCommand int

const (
	cmdMessage consoleCommand = iota
	cmdQuit
	cmdReset
	cmdBook
	cmdHelp
	cmdQuickReply
)

// parseConsoleLine classifies one input line. Numbers select a quick reply
// only while quick replies are on offer.
func parseConsoleLine(line string, quickReplies []string) (consoleCommand, string) {
	trimmed := strings.TrimSpace(line)
	switch strings.ToLower(trimmed) {
	case "/quit", "/exit":
		return cmdQuit, ""
	case "/reset", "/new":
		return cmdReset, ""
	case "/book":
		return cmdBook, ""
	case "/help", "/?":
		return cmdHelp, ""
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(quickReplies) {
		return cmdQuickReply, quickReplies[n-1]
	}
	return cmdMessage, line
}

// streamPrinter writes the growing assistant turn incrementally.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	turns   int
	printed string
}

func (p *streamPrinter) update(snap widget.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(snap.Turns) < p.turns {
		return
	}
	last := snap.Turns[len(snap.Turns)-1]
	if last.Role != conversation.RoleAssistant || len(snap.Turns) != p.turns {
		return
	}
	if strings.HasPrefix(p.printed, last.Content) {
		// Nothing new, or a stale snapshot.
		return
	}
	if strings.HasPrefix(last.Content, p.printed) {
		fmt.Fprint(p.out, last.Content[len(p.printed):])
	} else {
		// The partial reply was replaced by the fallback message.
		fmt.Fprint(p.out, "\n"+last.Content)
	}
	p.printed = last.Content
}

func (p *streamPrinter) begin(turns int) {
	p.mu.Lock()
	p.turns = turns
	p.printed = ""
	p.mu.Unlock()
	fmt.Fprint(p.out, "assistant: ")
}

// RunConsole runs the chat widget as a plain line-oriented console. It is the
// fallback when stdin is not a terminal.
func RunConsole(ctx context.Context, cfg *ConsoleConfig) error {
	c := cfg.Controller
	out := cfg.Out
	reader := bufio.NewScanner(cfg.In)
	reader.Buffer(make([]byte, 0, 64*1024), 1<<20)

	c.Open()
	printer := &streamPrinter{out: out}
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-updates:
				if c.State() == widget.StateStreaming {
					printer.update(c.Snapshot())
				}
			}
		}
	}()

	printConsoleIntro(out, c.Snapshot())
	bookingHinted := false

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "\nyou: ")
		if !reader.Scan() {
			fmt.Fprintln(out)
			return reader.Err()
		}

		snap := c.Snapshot()
		command, text := parseConsoleLine(reader.Text(), snap.QuickReplies)
		switch command {
		case cmdQuit:
			return nil
		case cmdHelp:
			printConsoleHelp(out)
			continue
		case cmdReset:
			c.Reset()
			printConsoleIntro(out, c.Snapshot())
			bookingHinted = false
			continue
		case cmdBook:
			if err := consoleBooking(ctx, c, reader, out); err != nil {
				return err
			}
			continue
		}

		if strings.TrimSpace(text) == "" {
			fmt.Fprintln(out, "(type a message, or /help)")
			continue
		}

		var outcome relay.Outcome
		var err error
		printer.begin(len(snap.Turns) + 2)
		if command == cmdQuickReply {
			outcome, err = c.SendQuickReply(ctx, text)
		} else {
			c.SetInput(text)
			outcome, err = c.Send(ctx)
		}
		if err != nil {
			fmt.Fprintf(out, "\n%v\n", err)
			continue
		}

		final := c.Snapshot()
		printer.update(widget.Snapshot{Turns: final.Turns[:min(len(final.Turns), len(snap.Turns)+2)]})
		fmt.Fprintln(out)
		if outcome == relay.OutcomeFailed {
			continue
		}
		if final.BookingVisible && !final.BookingConfirmed && !bookingHinted {
			fmt.Fprintln(out, "\nType /book to request a free consultation.")
			bookingHinted = true
		}
	}
}

func printConsoleIntro(out io.Writer, snap widget.Snapshot) {
	if len(snap.Turns) > 0 {
		fmt.Fprintf(out, "assistant: %s\n", snap.Turns[0].Content)
	}
	for i, reply := range snap.QuickReplies {
		fmt.Fprintf(out, "  [%d] %s\n", i+1, reply)
	}
	fmt.Fprintln(out, "(/help for commands)")
}

func printConsoleHelp(out io.Writer) {
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  /book    request a consultation")
	fmt.Fprintln(out, "  /reset   start a new conversation")
	fmt.Fprintln(out, "  /quit    leave the chat")
}

// consoleBooking collects the lead form one field per line and submits it.
func consoleBooking(ctx context.Context, c *widget.Controller, reader *bufio.Scanner, out io.Writer) error {
	snap := c.Snapshot()
	if snap.BookingConfirmed {
		fmt.Fprintln(out, "Your consultation request has already been sent.")
		return nil
	}
	c.ShowBooking()

	var form leads.Form
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Name", &form.Name},
		{"Email", &form.Email},
		{"Phone (optional)", &form.Phone},
		{"Project description", &form.ProjectDescription},
		{"Preferred date (" + leads.DateLayout + ")", &form.PreferredDate},
	}
	for _, f := range fields {
		fmt.Fprintf(out, "%s: ", f.prompt)
		if !reader.Scan() {
			return reader.Err()
		}
		*f.dst = reader.Text()
	}

	if _, err := c.SubmitLead(ctx, form); err != nil {
		var verr *leads.ValidationError
		var serr *leads.SubmitError
		switch {
		case errors.As(err, &verr):
			fmt.Fprintf(out, "%s\n", verr.Message)
		case errors.As(err, &serr):
			fmt.Fprintf(out, "%s\n", serr.Message)
		default:
			fmt.Fprintf(out, "%v\n", err)
		}
		fmt.Fprintln(out, "Type /book to try again.")
		return nil
	}

	if last, ok := lastTurn(c.Snapshot()); ok {
		fmt.Fprintf(out, "assistant: %s\n", last.Content)
	}
	return nil
}

func lastTurn(snap widget.Snapshot) (conversation.Turn, bool) {
	if len(snap.Turns) == 0 {
		return conversation.Turn{}, false
	}
	return snap.Turns[len(snap.Turns)-1], true
}
