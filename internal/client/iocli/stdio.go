package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio реализует IO поверх потоков процесса
type Stdio struct {
	in    *bufio.Reader
	out   io.Writer
	stdin *os.File
}

// NewStdio создает IO для os.Stdin и os.Stdout
func NewStdio() IO {
	return &Stdio{
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
		stdin: os.Stdin,
	}
}

// NewStdioWith создает IO поверх произвольных потоков (не терминал)
func NewStdioWith(in io.Reader, out io.Writer) IO {
	return &Stdio{
		in:  bufio.NewReader(in),
		out: out,
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

// ReadInput печатает приглашение и читает одну строку без завершающих пробелов
func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// IsTerminal сообщает, подключен ли ввод к интерактивному терминалу
func (s *Stdio) IsTerminal() bool {
	return s.stdin != nil && term.IsTerminal(int(s.stdin.Fd()))
}
