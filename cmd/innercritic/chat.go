package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/r3d91ll/innercritic/internal/analysis"
	"github.com/r3d91ll/innercritic/internal/conversation"
	"github.com/r3d91ll/innercritic/internal/llm"
	"github.com/r3d91ll/innercritic/internal/persona"
	"github.com/r3d91ll/innercritic/internal/session"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorUnder  = "\033[4m"
)

var (
	singleMessage string
	startInCritic bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat (the default command)",
	RunE:  runChat,
}

type mode int

const (
	modeTherapist mode = iota
	modeCritic
)

func (m mode) String() string {
	if m == modeCritic {
		return "critic"
	}
	return "therapist"
}

type repl struct {
	app  *app
	mode mode
	out  io.Writer
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	r := &repl{app: a, out: os.Stdout}
	if startInCritic {
		r.mode = modeCritic
	}

	if singleMessage != "" {
		return r.send(context.Background(), singleMessage)
	}

	// Piped input is sent as one message.
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return err
		}
		if msg := strings.TrimSpace(string(data)); msg != "" {
			return r.send(context.Background(), msg)
		}
		return nil
	}

	return r.run()
}

func (r *repl) prompt() string {
	if r.mode == modeCritic {
		return colorGreen + "You" + colorGray + " (critic)" + colorGreen + "> " + colorReset
	}
	return colorGreen + "You> " + colorReset
}

func (r *repl) run() error {
	r.printBanner()

	completer := readline.NewPrefixCompleter(
		readline.PcItem("/help"),
		readline.PcItem("/quit"),
		readline.PcItem("/therapist"),
		readline.PcItem("/critic"),
		readline.PcItem("/analyze"),
		readline.PcItem("/persona"),
		readline.PcItem("/new"),
		readline.PcItem("/name"),
		readline.PcItem("/voice"),
		readline.PcItem("/emotion"),
		readline.PcItem("/style"),
		readline.PcItem("/belief", readline.PcItem("add"), readline.PcItem("rm")),
		readline.PcItem("/trigger", readline.PcItem("add"), readline.PcItem("rm")),
		readline.PcItem("/phrase", readline.PcItem("add"), readline.PcItem("rm")),
		readline.PcItem("/intent"),
		readline.PcItem("/portrait"),
		readline.PcItem("/models"),
		readline.PcItem("/key"),
		readline.PcItem("/history"),
		readline.PcItem("/clear"),
		readline.PcItem("/reset"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            r.prompt(),
		HistoryFile:       r.app.cfg.HistoryFile(),
		HistoryLimit:      1000,
		AutoComplete:      completer,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %v\n", err)
		return r.runBasic()
	}
	defer rl.Close()

	for {
		rl.SetPrompt(r.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				fmt.Fprintln(r.out, "\nUse /quit to exit or Ctrl+D")
			}
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out, "\nTake care.")
			return nil
		} else if err != nil {
			return fmt.Errorf("error reading input: %w", err)
		}

		if quit := r.handleLine(line); quit {
			return nil
		}
	}
}

// runBasic is a fallback when readline isn't available.
func (r *repl) runBasic() error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(r.out, r.prompt())
		if !scanner.Scan() {
			return scanner.Err()
		}
		if quit := r.handleLine(scanner.Text()); quit {
			return nil
		}
	}
}

// handleLine runs one line of input and reports whether to quit.
func (r *repl) handleLine(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	if strings.HasPrefix(input, "/") {
		return r.handleCommand(input)
	}

	// Ctrl-C while a reply is in flight cancels that reply only.
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
			cancel()
		case <-done:
		}
	}()

	err := r.send(ctx, input)

	close(done)
	signal.Stop(sig)
	cancel()

	if err != nil {
		r.printError(err)
	}
	fmt.Fprintln(r.out)
	return false
}

// send delivers one message in the current mode and prints the replies.
func (r *repl) send(ctx context.Context, text string) error {
	s := r.app.session
	if r.mode == modeCritic {
		fmt.Fprint(r.out, colorGray+"The critic is thinking..."+colorReset)
		ex, err := s.TalkToCritic(ctx, text)
		clearStatus(r.out)
		if ex.Critic.ID != "" {
			r.printMessage(ex.Critic)
		}
		if ex.HealthyAdult != nil {
			r.printMessage(*ex.HealthyAdult)
		}
		return err
	}

	fmt.Fprint(r.out, colorBlue+"Companion> "+colorReset)
	_, err := s.TalkToTherapist(ctx, text, session.StreamHandler{
		OnChunk: func(delta string) { fmt.Fprint(r.out, delta) },
	})
	fmt.Fprintln(r.out)
	if errors.Is(err, llm.ErrCancelled) {
		fmt.Fprintln(r.out, colorGray+"(reply stopped)"+colorReset)
		return nil
	}
	return err
}

func clearStatus(w io.Writer) {
	fmt.Fprint(w, "\r"+strings.Repeat(" ", 40)+"\r")
}

func (r *repl) printMessage(m conversation.Message) {
	switch m.Role {
	case conversation.RoleUser:
		fmt.Fprint(r.out, colorGreen+"You> "+colorReset)
	case conversation.RoleCritic:
		fmt.Fprint(r.out, colorRed+r.criticName()+"> "+colorReset)
	case conversation.RoleHealthyAdult:
		fmt.Fprint(r.out, colorCyan+"Healthy Adult> "+colorReset)
	default:
		fmt.Fprint(r.out, colorBlue+"Companion> "+colorReset)
	}
	fmt.Fprintln(r.out, m.Content)
}

func (r *repl) criticName() string {
	if p, ok := r.app.session.Persona(); ok && p.Identity.Name != "" {
		return p.Identity.Name
	}
	return "Critic"
}

func (r *repl) printError(err error) {
	var se *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrNoCredential):
		fmt.Fprintln(r.out, colorRed+"No API key configured."+colorReset+" Set OPENROUTER_API_KEY or use /key <key>.")
	case errors.Is(err, session.ErrNoPersona):
		fmt.Fprintln(r.out, colorYellow+"You haven't built your critic yet."+colorReset+" Use /new, then /name, /belief add ...")
	case errors.As(err, &se):
		fmt.Fprintf(r.out, colorRed+"The service returned %d"+colorReset+" %s\n", se.StatusCode, truncate(se.Body, 200))
	default:
		fmt.Fprintf(r.out, colorRed+"Error: %v"+colorReset+"\n", err)
	}
}

// handleCommand runs a slash command and reports whether to quit.
func (r *repl) handleCommand(input string) bool {
	parts := strings.SplitN(input, " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	ctx := context.Background()
	s := r.app.session

	var err error
	switch cmd {
	case "/help":
		printChatHelp(r.out)

	case "/quit", "/exit", "/q":
		fmt.Fprintln(r.out, "Take care.")
		return true

	case "/therapist":
		r.mode = modeTherapist
		fmt.Fprintln(r.out, "Talking with your companion.")

	case "/critic":
		if _, ok := s.Persona(); !ok {
			r.printError(session.ErrNoPersona)
			return false
		}
		r.mode = modeCritic
		fmt.Fprintf(r.out, "Talking with %s. The Healthy Adult will answer back.\n", r.criticName())

	case "/analyze":
		err = r.analyze(ctx, arg)

	case "/persona":
		r.printPersona()

	case "/new":
		_, err = s.InitializePersona(ctx)
		if err == nil {
			fmt.Fprintln(r.out, "Started a new critic. The chat was cleared.")
		}

	case "/name", "/voice", "/emotion", "/style":
		if arg == "" {
			fmt.Fprintf(r.out, colorRed+"Usage: %s <text>"+colorReset+"\n", cmd)
			return false
		}
		var id persona.Identity
		switch cmd {
		case "/name":
			id.Name = arg
		case "/voice":
			id.Voice = arg
		case "/emotion":
			id.PrimaryEmotion = arg
		case "/style":
			id.CommunicationStyle = arg
		}
		err = r.edit(ctx, func(p persona.Persona) (persona.Persona, error) { return p.WithIdentity(id), nil })

	case "/belief":
		err = r.beliefCommand(ctx, arg)

	case "/trigger":
		err = r.triggerCommand(ctx, arg)

	case "/phrase":
		err = r.phraseCommand(ctx, arg)

	case "/intent":
		err = r.edit(ctx, func(p persona.Persona) (persona.Persona, error) { return p.WithProtectiveIntent(arg), nil })

	case "/portrait":
		fmt.Fprint(r.out, colorGray+"Drawing your critic..."+colorReset)
		var p persona.Persona
		p, err = s.GeneratePortrait(ctx, arg)
		clearStatus(r.out)
		if err == nil {
			fmt.Fprintf(r.out, "Portrait saved (%d bytes). Serve the API and open it in the browser to view it.\n", len(p.Appearance.ImageURL))
		}

	case "/models":
		err = r.printModels(ctx)

	case "/key":
		err = r.keyCommand(ctx, arg)

	case "/history":
		for _, m := range s.Messages() {
			r.printMessage(m)
		}

	case "/clear":
		err = s.ClearChat(ctx)
		if err == nil {
			fmt.Fprintln(r.out, "Conversation cleared.")
		}

	case "/reset":
		err = s.ResetPersona(ctx)
		if err == nil {
			r.mode = modeTherapist
			fmt.Fprintln(r.out, "Critic and conversation removed.")
		}

	default:
		fmt.Fprintf(r.out, colorRed+"Unknown command %s."+colorReset+" Type /help.\n", cmd)
	}

	if err != nil {
		r.printError(err)
	}
	return false
}

func (r *repl) edit(ctx context.Context, fn func(persona.Persona) (persona.Persona, error)) error {
	if _, err := r.app.session.UpdatePersona(ctx, fn); err != nil {
		return err
	}
	fmt.Fprintln(r.out, colorGreen+"✓"+colorReset+" saved")
	return nil
}

func (r *repl) beliefCommand(ctx context.Context, arg string) error {
	sub, rest, _ := strings.Cut(arg, " ")
	switch sub {
	case "add":
		level, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
		intensity, err := strconv.Atoi(level)
		if err != nil || strings.TrimSpace(text) == "" {
			fmt.Fprintln(r.out, colorRed+"Usage: /belief add <1-5> <belief>"+colorReset)
			return nil
		}
		return r.edit(ctx, func(p persona.Persona) (persona.Persona, error) {
			p, _, err := p.AddBelief(strings.TrimSpace(text), "", intensity)
			return p, err
		})
	case "rm":
		prefix := strings.TrimSpace(rest)
		return r.edit(ctx, func(p persona.Persona) (persona.Persona, error) {
			ids := make([]string, len(p.Beliefs))
			for i, b := range p.Beliefs {
				ids[i] = b.ID
			}
			return p.RemoveBelief(matchID(ids, prefix))
		})
	}
	fmt.Fprintln(r.out, colorRed+"Usage: /belief add <1-5> <belief> | /belief rm <id>"+colorReset)
	return nil
}

func (r *repl) triggerCommand(ctx context.Context, arg string) error {
	sub, rest, _ := strings.Cut(arg, " ")
	switch sub {
	case "add":
		situation, response, ok := strings.Cut(rest, "=>")
		if !ok || strings.TrimSpace(situation) == "" {
			fmt.Fprintln(r.out, colorRed+"Usage: /trigger add <situation> => <what the critic says>"+colorReset)
			return nil
		}
		return r.edit(ctx, func(p persona.Persona) (persona.Persona, error) {
			p, _ = p.AddTrigger(strings.TrimSpace(situation), strings.TrimSpace(response))
			return p, nil
		})
	case "rm":
		prefix := strings.TrimSpace(rest)
		return r.edit(ctx, func(p persona.Persona) (persona.Persona, error) {
			ids := make([]string, len(p.Triggers))
			for i, t := range p.Triggers {
				ids[i] = t.ID
			}
			return p.RemoveTrigger(matchID(ids, prefix))
		})
	}
	fmt.Fprintln(r.out, colorRed+"Usage: /trigger add <situation> => <response> | /trigger rm <id>"+colorReset)
	return nil
}

func (r *repl) phraseCommand(ctx context.Context, arg string) error {
	sub, rest, _ := strings.Cut(arg, " ")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		fmt.Fprintln(r.out, colorRed+"Usage: /phrase add|rm <text>"+colorReset)
		return nil
	}
	switch sub {
	case "add":
		return r.edit(ctx, func(p persona.Persona) (persona.Persona, error) { return p.AddCatchphrase(rest), nil })
	case "rm":
		return r.edit(ctx, func(p persona.Persona) (persona.Persona, error) {
			if !p.HasCatchphrase(rest) {
				return p, persona.ErrNotFound
			}
			return p.RemoveCatchphrase(rest), nil
		})
	}
	fmt.Fprintln(r.out, colorRed+"Usage: /phrase add|rm <text>"+colorReset)
	return nil
}

func (r *repl) keyCommand(ctx context.Context, arg string) error {
	s := r.app.session
	if arg != "" {
		if err := s.SetAPIKey(ctx, arg); err != nil {
			return err
		}
	}
	fmt.Fprintf(r.out, "API key source: %s\n", s.APIKeyStatus(ctx))
	return nil
}

// analyze deconstructs the nth most recent user message (1 by default).
func (r *repl) analyze(ctx context.Context, arg string) error {
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			fmt.Fprintln(r.out, colorRed+"Usage: /analyze [n]"+colorReset)
			return nil
		}
		n = v
	}

	var target conversation.Message
	msgs := r.app.session.Messages()
	for i := len(msgs) - 1; i >= 0 && n > 0; i-- {
		if msgs[i].Role == conversation.RoleUser {
			n--
			target = msgs[i]
		}
	}
	if n > 0 || target.ID == "" {
		fmt.Fprintln(r.out, "No message to analyze yet.")
		return nil
	}

	fmt.Fprint(r.out, colorGray+"Looking for distortions..."+colorReset)
	a, err := r.app.session.Deconstruct(ctx, target.ID, false)
	clearStatus(r.out)
	if err != nil {
		return err
	}
	r.printAnalysis(target.Content, a)
	return nil
}

func (r *repl) printAnalysis(source string, a analysis.Analysis) {
	if a.Empty() {
		fmt.Fprintln(r.out, "No critic voice found in that message.")
		return
	}
	spans := analysis.Highlights(source, a.Segments)
	marked := analysis.Mark(source, spans, func(text string, _ analysis.Segment) string {
		return colorRed + colorUnder + text + colorReset
	})
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, marked)
	fmt.Fprintln(r.out)
	for _, seg := range a.Segments {
		fmt.Fprintf(r.out, "  %s%q%s  %s%s%s\n", colorRed, seg.Text, colorReset, colorYellow, seg.PatternType.Label(), colorReset)
		if seg.Explanation != "" {
			fmt.Fprintf(r.out, "    %s\n", seg.Explanation)
		}
	}
	if a.HealthyAdultResponse != "" {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, colorCyan+"Healthy Adult> "+colorReset+a.HealthyAdultResponse)
	}
}

func (r *repl) printPersona() {
	p, ok := r.app.session.Persona()
	if !ok {
		r.printError(session.ErrNoPersona)
		return
	}
	field := func(label, v string) {
		if v == "" {
			v = colorGray + "(not set)" + colorReset
		}
		fmt.Fprintf(r.out, "  %-10s %s\n", label+":", v)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, colorBold+"Your inner critic"+colorReset)
	field("Name", p.Identity.Name)
	field("Voice", p.Identity.Voice)
	field("Emotion", p.Identity.PrimaryEmotion)
	field("Style", p.Identity.CommunicationStyle)
	field("Intent", p.ProtectiveIntent)
	field("Looks", p.Appearance.PhysicalDescription)

	if len(p.Beliefs) > 0 {
		fmt.Fprintln(r.out, "  Beliefs:")
		for _, b := range p.Beliefs {
			fmt.Fprintf(r.out, "    [%s] %q %s\n", shortID(b.ID), b.Statement, strings.Repeat("●", b.Intensity))
		}
	}
	if len(p.Triggers) > 0 {
		fmt.Fprintln(r.out, "  Triggers:")
		for _, t := range p.Triggers {
			fmt.Fprintf(r.out, "    [%s] %s => %q\n", shortID(t.ID), t.Situation, t.TypicalResponse)
		}
	}
	if len(p.Catchphrases) > 0 {
		fmt.Fprintln(r.out, "  Catchphrases:")
		for _, c := range p.Catchphrases {
			fmt.Fprintf(r.out, "    %q\n", c)
		}
	}
	fmt.Fprintln(r.out)
}

func (r *repl) printModels(ctx context.Context) error {
	models, err := r.app.client.ListModels(ctx)
	if err != nil {
		return err
	}
	cfg := r.app.client.Config()
	fmt.Fprintf(r.out, "\n%d models available\n", len(models))
	for _, id := range []string{cfg.ChatModel, cfg.ImageModel} {
		status := colorRed + "not listed" + colorReset
		if llm.HasModel(models, id) {
			status = colorGreen + "available" + colorReset
		}
		fmt.Fprintf(r.out, "  %s %s\n", id, status)
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *repl) printBanner() {
	critic := "not built yet (/new)"
	if p, ok := r.app.session.Persona(); ok {
		critic = r.criticName()
		if len(p.Beliefs) > 0 {
			critic += fmt.Sprintf(", %d beliefs", len(p.Beliefs))
		}
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, colorBlue+"╔═══════════════════════════════════════════╗"+colorReset)
	fmt.Fprintln(r.out, colorBlue+"║"+colorReset+"          "+colorBold+"Inner Critic"+colorReset+"                     "+colorBlue+"║"+colorReset)
	fmt.Fprintf(r.out, colorBlue+"║"+colorReset+"  Model:  %-32s"+colorBlue+"║"+colorReset+"\n", truncate(r.app.cfg.LLM.ChatModel, 32))
	fmt.Fprintf(r.out, colorBlue+"║"+colorReset+"  Critic: %-32s"+colorBlue+"║"+colorReset+"\n", truncate(critic, 32))
	fmt.Fprintln(r.out, colorBlue+"╚═══════════════════════════════════════════╝"+colorReset)
	fmt.Fprintln(r.out)
	if r.app.session.APIKeyStatus(context.Background()) == llm.KeySourceNone {
		fmt.Fprintln(r.out, colorYellow+"No API key yet."+colorReset+" Set OPENROUTER_API_KEY or use /key <key>.")
	}
	fmt.Fprintln(r.out, "Commands: /help /critic /therapist /analyze /persona /clear /quit")
	fmt.Fprintln(r.out)
}

func printChatHelp(w io.Writer) {
	fmt.Fprint(w, `
Modes:
  /therapist              Talk with the supportive companion (default, streamed)
  /critic                 Talk with your critic; the Healthy Adult answers it

Messages:
  /analyze [n]            Break down your nth most recent message (default 1)
  /history                Show the conversation
  /clear                  Clear the conversation, keep the critic

Your critic:
  /persona                Show the critic
  /new                    Start a new critic (clears the conversation)
  /name <text>            Set its name
  /voice <text>           Describe its voice
  /emotion <text>         Its primary emotion
  /style <text>           Its communication style
  /belief add <1-5> <text>
  /belief rm <id>
  /trigger add <situation> => <what it says>
  /trigger rm <id>
  /phrase add|rm <text>   Catchphrases
  /intent <text>          What it is trying to protect you from
  /portrait [description] Generate a portrait
  /reset                  Remove the critic and the conversation

Setup:
  /models                 Check the configured models
  /key [key]              Store an API key, or show where the key comes from
  /quit                   Exit

Ctrl-C while a reply is streaming stops that reply.
`)
}

// matchID expands the short id shown by /persona. Ambiguous or unknown
// prefixes are returned unchanged.
func matchID(ids []string, prefix string) string {
	match := ""
	for _, id := range ids {
		if id == prefix {
			return id
		}
		if prefix != "" && strings.HasPrefix(id, prefix) {
			if match != "" {
				return prefix
			}
			match = id
		}
	}
	if match == "" {
		return prefix
	}
	return match
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
