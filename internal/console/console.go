package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/google/shlex"

	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/mediator"
	"github.com/nerrad567/stalink/internal/station"
)

// Name is the account name.
const Name = "console"

// Prompt is the readline prompt.
const Prompt = "stalink> "

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("console: usage")

// Station is the part of the state machine the console drives directly.
type Station interface {
	State() station.LinkState
	Flags() station.Flags
	Session() (station.ProvisioningSession, bool)
	StartScan(ssidFilter []byte) error
	StartProvisioning() error
	StopProvisioning()
}

// BuildInfo is reported by the uname command.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
	Device  string
}

// Option configures a Console.
type Option func(*Console)

// WithJournal enables the history command on the journal at path.
func WithJournal(path string) Option {
	return func(c *Console) { c.journal = path }
}

// WithBuildInfo sets what uname reports.
func WithBuildInfo(info BuildInfo) Option {
	return func(c *Console) { c.info = info }
}

// WithOutput sets the writer used outside Run. Default: io.Discard.
func WithOutput(w io.Writer) Option {
	return func(c *Console) { c.out = w }
}

// Console executes diagnostic commands.
type Console struct {
	m       *mediator.Mediator
	acct    *mediator.Account
	st      Station
	journal string
	info    BuildInfo

	outMu sync.Mutex
	out   io.Writer

	commands map[string]command
}

type command struct {
	usage string
	help  string
	run   func(c *Console, args []string) error
}

// Register creates the console account on m.
func Register(m *mediator.Mediator, st Station, opts ...Option) (*Console, error) {
	c := &Console{m: m, st: st, out: io.Discard}
	for _, opt := range opts {
		opt(c)
	}
	c.commands = commandTable()

	acct, err := m.Register(Name, mediator.Routes{mediator.EventNotify: c.onNotify}, 0)
	if err != nil {
		return nil, err
	}
	c.acct = acct
	if err := acct.Subscribe(network.Name); err != nil {
		return nil, err
	}
	return c, nil
}

// ErrExit is returned by Exec for the exit command.
var ErrExit = errors.New("console: exit")

// Exec runs one command line. It returns ErrExit when the operator asks to leave.
func (c *Console) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if len(args) == 0 {
		return nil
	}

	name := strings.ToLower(args[0])
	if name == "exit" || name == "quit" {
		return ErrExit
	}
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help' for commands)", name)
	}
	return cmd.run(c, args[1:])
}

// Run reads commands until exit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    c.completer(),
	})
	if err != nil {
		return fmt.Errorf("creating readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	prev := c.SetOutput(rl.Stdout())
	defer c.SetOutput(prev)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}

		switch err := c.Exec(strings.TrimSpace(line)); {
		case errors.Is(err, ErrExit):
			return nil
		case err != nil:
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
}

func (c *Console) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(c.commands)+1)
	for _, name := range sortedNames(c.commands) {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}

// onNotify prints published link changes.
func (c *Console) onNotify(_ *mediator.Account, ev mediator.Event) error {
	state, err := mediator.Expect[network.NetworkState](ev.Payload)
	if err != nil {
		return err
	}
	if state.State == network.Connected {
		c.printf("[network] connected ip=%s\n", state.IPv4.Addr())
	} else {
		c.printf("[network] disconnected\n")
	}
	return nil
}

// SetOutput replaces the writer and returns the previous one. Link changes
// are printed from the driver's goroutine, so writes are serialised.
func (c *Console) SetOutput(w io.Writer) io.Writer {
	if w == nil {
		w = io.Discard
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	prev := c.out
	c.out = w
	return prev
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
