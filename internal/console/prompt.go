// Package console implements the interactive risk assessment prompt: list
// the configured levels, read one label per axis (re-prompting until the
// label exists), then print the risk value and risk level.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oremia/risk-matrix/internal/matrix/model"
)

// ErrInputClosed is returned when the input stream ends before a valid label
// was read.
var ErrInputClosed = errors.New("input closed before a valid level was entered")

// Evaluator is the scoring surface the prompt runs against. A local
// *model.RiskModel satisfies it; remote sessions use a client-backed adapter.
type Evaluator interface {
	ProbabilityNames() []string
	SeverityNames() []string
	Assess(probability, severity string) (model.Assessment, error)
}

// Prompt drives one blocking question-and-answer session. It is strictly
// single-threaded.
type Prompt struct {
	in  *bufio.Scanner
	out io.Writer
	ev  Evaluator
}

// NewPrompt creates a Prompt reading labels from in and writing to out.
func NewPrompt(in io.Reader, out io.Writer, ev Evaluator) *Prompt {
	return &Prompt{in: bufio.NewScanner(in), out: out, ev: ev}
}

// Run performs one full assessment: probability, severity, result.
func (p *Prompt) Run() error {
	fmt.Fprintln(p.out, "风险评估程序")

	probability, err := p.ask("概率等级", p.ev.ProbabilityNames())
	if err != nil {
		return err
	}
	severity, err := p.ask("后果等级", p.ev.SeverityNames())
	if err != nil {
		return err
	}

	a, err := p.ev.Assess(probability, severity)
	if err != nil {
		return fmt.Errorf("assess %s/%s: %w", probability, severity, err)
	}

	fmt.Fprintf(p.out, "\n风险值：%d\n", a.RiskValue)
	fmt.Fprintf(p.out, "风险等级：%s\n", a.RiskLevel)
	return nil
}

// ask lists the valid labels for one axis and reads lines until one of them
// is entered.
func (p *Prompt) ask(axis string, names []string) (string, error) {
	fmt.Fprintf(p.out, "%s：\n", axis)
	for _, name := range names {
		fmt.Fprintf(p.out, "- %s\n", name)
	}

	valid := make(map[string]bool, len(names))
	for _, name := range names {
		valid[name] = true
	}

	for {
		fmt.Fprintf(p.out, "请输入%s：", axis)
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return "", fmt.Errorf("read input: %w", err)
			}
			return "", ErrInputClosed
		}
		label := strings.TrimSpace(p.in.Text())
		if valid[label] {
			return label, nil
		}
		fmt.Fprintln(p.out, "输入无效，请重新输入。")
	}
}
