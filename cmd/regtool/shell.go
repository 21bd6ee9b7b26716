package main

import (
	"bufio"
	"io"
	"strings"

	"github.com/google/shlex"
	"github.com/mattn/go-tty"
	"github.com/pkg/errors"
)

const (
	keyCtrlC     = 0x03
	keyCtrlD     = 0x04
	keyBackspace = 0x08
	keyDelete    = 0x7f
)

// line splits and runs one input line.
func (t *tool) line(s string) error {
	args, err := shlex.Split(s)
	if err != nil {
		return errors.Wrapf(err, "parse %q", s)
	}
	return t.exec(args)
}

// script runs ';' separated commands and stops at the first failure.
func (t *tool) script(s string) error {
	for _, c := range strings.Split(s, ";") {
		if err := t.line(c); err != nil {
			if err == errQuit {
				return nil
			}
			return err
		}
	}
	return nil
}

// lines runs every line of r, reporting failures and carrying on.
func (t *tool) lines(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := t.line(sc.Text()); err != nil {
			if err == errQuit {
				return nil
			}
			t.report(err)
		}
	}
	return errors.Wrap(sc.Err(), "read commands")
}

// shell is the interactive prompt on the controlling terminal.
func (t *tool) shell() error {
	term, err := tty.Open()
	if err != nil {
		return errors.Wrap(err, "open tty")
	}
	defer term.Close()

	t.printf("%s %s, type help\n", bold("regtool"), t.port.Name())
	prompt := t.port.Name() + "> "
	for {
		s, err := readLine(term, prompt)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := t.line(s); err != nil {
			if err == errQuit {
				return nil
			}
			t.report(err)
		}
	}
}

// readLine edits one line with echo and backspace. Ctrl-C drops the line,
// Ctrl-D on an empty line is EOF.
func readLine(term *tty.TTY, prompt string) (string, error) {
	out := term.Output()
	out.WriteString(prompt)
	var buf []rune
	for {
		r, err := term.ReadRune()
		if err != nil {
			return "", errors.Wrap(err, "read tty")
		}
		switch r {
		case '\r', '\n':
			out.WriteString("\r\n")
			return string(buf), nil
		case keyCtrlC:
			out.WriteString("^C\r\n" + prompt)
			buf = buf[:0]
		case keyCtrlD:
			if len(buf) == 0 {
				out.WriteString("\r\n")
				return "", io.EOF
			}
		case keyBackspace, keyDelete:
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
				out.WriteString("\b \b")
			}
		default:
			if r >= ' ' {
				buf = append(buf, r)
				out.WriteString(string(r))
			}
		}
	}
}
