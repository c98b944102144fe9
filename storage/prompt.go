package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoAnswer is returned when the input ends before the user answers.
var ErrNoAnswer = errors.New("no answer from the user")

// Prompter asks the user a question.
type Prompter interface {
	// Ask shows a question with a list of expected answers and returns the trimmed answer.
	// The first choice is the default, selected with an empty answer.
	// Prompters may accept answers that are not in the list.
	Ask(ctx context.Context, question string, choices []string) (string, error)
}

var _ Prompter = (*TermPrompter)(nil)

// TermPrompter reads answers line by line.
type TermPrompter struct {
	out io.Writer
	in  *bufio.Reader
}

// NewTermPrompter creates a prompter reading answers from in and writing questions to out.
func NewTermPrompter(in io.Reader, out io.Writer) *TermPrompter {
	return &TermPrompter{out: out, in: bufio.NewReader(in)}
}

func (p *TermPrompter) Ask(ctx context.Context, question string, choices []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if question != "" {
		fmt.Fprintln(p.out, question)
	}
	var buf strings.Builder
	for i, c := range choices {
		if i == 0 {
			buf.WriteString("[" + c + "]")
		} else {
			buf.WriteString("/" + c)
		}
	}
	buf.WriteString("> ")
	fmt.Fprint(p.out, buf.String())

	line, err := p.in.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	} else if err == io.EOF {
		return "", ErrNoAnswer
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
