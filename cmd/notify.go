package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"fuji-cli/pkg/chain"
	"fuji-cli/pkg/store"
)

// terminal shows notifications with a spinner for pending work and asks
// for confirmation before the wallet acts
type terminal struct {
	mu       sync.Mutex
	spinner  *spinner.Spinner
	pending  map[string]string
	order    []string
	quiet    bool
	assumeOK bool
	in       *bufio.Reader
	out      io.Writer
}

var _ store.Notifier = (*terminal)(nil)

func newTerminal(quiet, assumeOK bool) *terminal {
	return &terminal{
		spinner:  spinner.New(spinner.CharSets[14], 100*time.Millisecond),
		pending:  make(map[string]string),
		quiet:    quiet,
		assumeOK: assumeOK,
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
}

func (t *terminal) Pending(msg string) string {
	id := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = msg
	t.order = append(t.order, id)
	if !t.quiet {
		t.spinner.Suffix = " " + msg + "..."
		t.spinner.Start()
	}
	return id
}

func (t *terminal) Dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, id)
	t.order = lo.Without(t.order, id)
	if len(t.order) == 0 {
		t.spinner.Stop()
		return
	}
	t.spinner.Suffix = " " + t.pending[t.order[len(t.order)-1]] + "..."
}

func (t *terminal) Info(msg string) {
	if t.quiet {
		return
	}
	t.print(func() { color.Yellow("%s", msg) })
}

func (t *terminal) Success(msg string) {
	if t.quiet {
		return
	}
	t.print(func() { color.Green("✓ %s", msg) })
}

func (t *terminal) Error(msg, supportURL string) {
	if t.quiet {
		fmt.Fprintln(os.Stderr, msg)
		return
	}
	t.print(func() {
		color.Red("✗ %s", msg)
		if supportURL != "" {
			fmt.Fprintf(t.out, "  Need help? %s\n", color.CyanString(supportURL))
		}
	})
}

// print writes a line without tearing the spinner
func (t *terminal) print(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := t.spinner.Active()
	if active {
		t.spinner.Stop()
	}
	fn()
	if active {
		t.spinner.Start()
	}
}

// Confirm implements chain.ConfirmFunc
func (t *terminal) Confirm(req chain.Request) bool {
	if t.assumeOK {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	active := t.spinner.Active()
	if active {
		t.spinner.Stop()
	}
	defer func() {
		if active {
			t.spinner.Start()
		}
	}()

	fmt.Fprintf(t.out, "\n%s on chain %d\n", req.Description, req.ChainID)
	return t.ask("Proceed?")
}

// ask reads a y/N answer, anything else is a no
func (t *terminal) ask(question string) bool {
	fmt.Fprintf(t.out, "%s (y/N): ", question)

	response, err := t.in.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
