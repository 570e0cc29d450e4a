package iocli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio reads from one input stream through a single buffered reader, so
// consecutive prompts never lose buffered input.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

// NewStdio returns IO bound to os.Stdin and os.Stdout
func NewStdio() IO {
	return New(os.Stdin, os.Stdout)
}

// New returns IO bound to the given streams
func New(in io.Reader, out io.Writer) *Stdio {
	return &Stdio{
		in:     in,
		out:    out,
		reader: bufio.NewReader(in),
	}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	return s.readLine()
}

func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)

	// Без терминала (pipe, тесты) читаем обычную строку
	f, ok := s.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return s.readLine()
	}

	pwBytes, err := term.ReadPassword(int(f.Fd()))
	s.Println("")
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}

// readLine возвращает последнюю строку без перевода строки даже при EOF
func (s *Stdio) readLine() (string, error) {
	input, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && input != "" {
			return strings.TrimSpace(input), nil
		}
		return "", err
	}
	return strings.TrimSpace(input), nil
}
