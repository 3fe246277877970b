// Package hostbridge speaks the host's line protocol: each input line is a
// JSON array ["<command>", "arg", ...] and each reply is one JSON array line,
// ["ok", result], ["ok"] or ["error", "message"].
package hostbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/awacs/internal/dispatcher"
)

const maxLineSize = 1 << 20

// Dispatcher is the part of *dispatcher.Dispatcher the bridge needs.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
	HasHandler(command string) bool
}

// Bridge reads commands, dispatches them and writes one reply per command.
type Bridge struct {
	d       Dispatcher
	log     *slog.Logger
	version string
	now     func() time.Time
}

// New creates a bridge. A nil logger uses slog.Default.
func New(d Dispatcher, version string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{d: d, log: logger.With("component", "hostbridge"), version: version, now: time.Now}
}

// ParseLine splits a command line into command and arguments. Non-string
// array elements are passed through as their JSON text.
func ParseLine(line string) (string, []string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return "", nil, fmt.Errorf("invalid command line: %w", err)
	}
	if len(raw) == 0 {
		return "", nil, errors.New("invalid command line: empty array")
	}

	parts := make([]string, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			parts[i] = s
		} else {
			parts[i] = string(r)
		}
	}
	return parts[0], parts[1:], nil
}

// FormatResponse encodes a dispatch result as a reply line.
func FormatResponse(result any, err error) string {
	if err != nil {
		msg, _ := json.Marshal(err.Error())
		return fmt.Sprintf(`["error", %s]`, msg)
	}
	if result == nil {
		return `["ok"]`
	}
	data, mErr := json.Marshal(result)
	if mErr != nil {
		return FormatResponse(nil, fmt.Errorf("encoding result: %w", mErr))
	}
	return fmt.Sprintf(`["ok", %s]`, data)
}

// Handle runs one command line and returns the reply.
func (b *Bridge) Handle(line string) string {
	command, args, err := ParseLine(line)
	if err != nil {
		return FormatResponse(nil, err)
	}

	switch command {
	case ":TIMESTAMP:":
		return FormatResponse(strconv.FormatInt(b.now().UTC().UnixNano(), 10), nil)
	case ":VERSION:":
		return FormatResponse(b.version, nil)
	}

	// "CMD|payload" form: dispatch on the prefix when only it is registered.
	if !b.d.HasHandler(command) {
		prefix, payload, ok := strings.Cut(command, "|")
		if !ok || !b.d.HasHandler(prefix) {
			return FormatResponse(nil, fmt.Errorf("no handler registered for %s", command))
		}
		command, args = prefix, append([]string{payload}, args...)
	}

	result, err := b.d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: b.now(),
	})
	return FormatResponse(result, err)
}

// Serve handles lines from r until EOF or ctx is done. Blank lines and lines
// starting with '#' are skipped without a reply.
func (b *Bridge) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	out := bufio.NewWriter(w)
	handled := 0
	for {
		select {
		case <-ctx.Done():
			_ = out.Flush()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := out.Flush(); err != nil {
					return err
				}
				b.log.Debug("Input closed", "handled", handled)
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			handled++
			if _, err := fmt.Fprintln(out, b.Handle(line)); err != nil {
				return fmt.Errorf("writing reply: %w", err)
			}
			if err := out.Flush(); err != nil {
				return fmt.Errorf("writing reply: %w", err)
			}
		}
	}
}
