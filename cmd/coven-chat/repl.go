// ABOUTME: Interactive chat loop for coven-chat
// ABOUTME: Reads prompts and slash commands, renders streamed replies from chat events

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/dedupe"
	"github.com/2389/coven-chat/internal/events"
	"github.com/2389/coven-chat/internal/export"
	"github.com/2389/coven-chat/internal/session"
	"github.com/2389/coven-chat/internal/store"
)

func runChat(ctx context.Context, flags *globalFlags, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, flags, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	guard := dedupe.NewGuard(a.cfg.Chat.DuplicateWindow)
	defer guard.Close()

	broadcaster := events.NewBroadcaster(a.logger)
	defer broadcaster.Close()

	r := &repl{out: out}
	svc := chat.NewService(a.conversations, a.client,
		events.Multi(events.SinkFunc(r.render), broadcaster),
		chat.WithThinkDelay(a.cfg.Chat.ThinkDelay),
		chat.WithGuard(guard),
		chat.WithLogger(a.logger),
	)
	r.svc = svc

	fmt.Fprintf(out, "coven-chat connected to %s\n", a.client.BaseURL())
	fmt.Fprintln(out, "Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Fprintln(out)

	loopCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(loopCtx)

	// Trace every event at debug level for troubleshooting renderers
	trace, _ := broadcaster.Subscribe(gctx)
	g.Go(func() error {
		for e := range trace {
			a.logger.Debug("event", "name", e.EventName())
		}
		return nil
	})

	g.Go(func() error {
		defer stop()
		return r.loop(gctx, in)
	})

	err = g.Wait()
	fmt.Fprintln(out, "\nGoodbye!")
	return err
}

// repl owns terminal output for one interactive session
type repl struct {
	svc *chat.Service
	out io.Writer

	// listed is the most recent /list output, for index arguments
	listed []store.Conversation
}

func (r *repl) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		r.prompt()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-lines:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := r.command(ctx, input); quit {
				return nil
			}
			continue
		}

		r.send(ctx, input)
	}
}

func (r *repl) prompt() {
	st := r.svc.Status()
	fmt.Fprintf(r.out, "%s> ", color.HiBlackString("[%s]", truncate(st.Title, 24)))
}

func (r *repl) send(ctx context.Context, input string) {
	_, err := r.svc.Send(ctx, input)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrDuplicate), errors.Is(err, chat.ErrEmptyPrompt):
		// Ignored submits print nothing
	case errors.Is(err, session.ErrInvalidState):
		fmt.Fprintln(r.out, color.YellowString("Still waiting for the previous reply."))
	default:
		// Failures are rendered from the AssistantFailed event
	}
	fmt.Fprintln(r.out)
}

// render is the synchronous event sink driving terminal output.
func (r *repl) render(e events.Event) {
	switch ev := e.(type) {
	case events.AssistantStarted:
		fmt.Fprint(r.out, color.CyanString("assistant: "))
	case events.AssistantDelta:
		fmt.Fprint(r.out, ev.Fragment)
	case events.AssistantCompleted:
		fmt.Fprintln(r.out)
	case events.AssistantFailed:
		if ev.Turn.Content != "" {
			fmt.Fprintln(r.out)
			fmt.Fprintln(r.out, color.RedString(ev.Turn.Content))
		}
	case events.UserAppended, events.ConversationChanged, events.ConversationListChanged:
		// The prompt line already shows the user's text and the title
	}
}

// command handles a slash command. Returns true to quit.
func (r *repl) command(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		printHelp(r.out)
	case "/new":
		r.svc.NewConversation(ctx)
		fmt.Fprintln(r.out, "Started a new conversation")
	case "/list":
		groups := r.svc.Groups()
		r.listed = flatten(groups)
		printGroups(r.out, groups, r.svc.Conversations().CurrentID())
	case "/switch":
		id, err := r.resolve(arg)
		if err != nil {
			r.fail(err)
			break
		}
		conv, err := r.svc.Switch(ctx, id)
		if err != nil {
			r.fail(err)
			break
		}
		fmt.Fprintf(r.out, "Switched to %q (%d turns)\n", conv.Title, len(conv.Turns))
		printTranscript(r.out, conv)
	case "/rename":
		conv, err := r.svc.Rename(ctx, r.svc.Conversations().CurrentID(), arg)
		if err != nil {
			r.fail(err)
			break
		}
		fmt.Fprintf(r.out, "Renamed to %q\n", conv.Title)
	case "/delete":
		id := r.svc.Conversations().CurrentID()
		if arg != "" {
			var err error
			if id, err = r.resolve(arg); err != nil {
				r.fail(err)
				break
			}
		}
		if r.svc.Delete(ctx, id) {
			r.listed = nil
			fmt.Fprintf(r.out, "Deleted conversation; now in %q\n", r.svc.Status().Title)
		} else {
			r.fail(fmt.Errorf("conversation %s: %w", id, store.ErrNotFound))
		}
	case "/clear":
		r.svc.ClearAll(ctx)
		r.listed = nil
		fmt.Fprintln(r.out, "Cleared all conversations")
	case "/export":
		r.export(arg)
	default:
		fmt.Fprintf(r.out, "Unknown command %s (try /help)\n", name)
	}
	fmt.Fprintln(r.out)
	return false
}

// export handles "/export [markdown|html] [path]".
func (r *repl) export(arg string) {
	fields := strings.Fields(arg)
	format := export.FormatMarkdown
	if len(fields) > 0 {
		if f, err := export.ParseFormat(fields[0]); err == nil {
			format = f
			fields = fields[1:]
		}
	}
	output := ""
	if len(fields) > 0 {
		output = fields[0]
	}

	mgr := r.svc.Conversations()
	if format == export.FormatMarkdown && output == "" {
		md, err := mgr.ExportMarkdown(mgr.CurrentID())
		if err != nil {
			r.fail(err)
			return
		}
		fmt.Fprintln(r.out, md)
		return
	}

	if err := writeExport(mgr.Current(), format, output, r.out); err != nil {
		r.fail(err)
	}
}

func (r *repl) resolve(arg string) (string, error) {
	convs := r.listed
	if len(convs) == 0 {
		convs = flatten(r.svc.Groups())
	}
	return resolveConversation(convs, arg)
}

func (r *repl) fail(err error) {
	fmt.Fprintf(r.out, "%s %v\n", color.RedString("[error]"), err)
}

// printHelp displays available commands.
func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  /new                     Start a new conversation")
	fmt.Fprintln(w, "  /list                    List conversations by recency")
	fmt.Fprintln(w, "  /switch <n|id>           Switch to a conversation")
	fmt.Fprintln(w, "  /rename <title>          Rename the current conversation")
	fmt.Fprintln(w, "  /delete [n|id]           Delete a conversation (default: current)")
	fmt.Fprintln(w, "  /clear                   Delete all conversations")
	fmt.Fprintln(w, "  /export [md|html] [path] Export the current conversation")
	fmt.Fprintln(w, "  /help                    Show this help")
	fmt.Fprintln(w, "  /quit                    Exit")
}

// printTranscript shows the turns of a conversation after switching to it.
func printTranscript(w io.Writer, conv store.Conversation) {
	for _, t := range conv.Turns {
		switch t.Role {
		case store.RoleUser:
			fmt.Fprintf(w, "%s %s\n", color.BlueString("you:"), t.Content)
		case store.RoleAssistant:
			fmt.Fprintf(w, "%s %s\n", color.CyanString("assistant:"), t.Content)
		default:
			fmt.Fprintln(w, color.RedString(t.Content))
		}
	}
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
