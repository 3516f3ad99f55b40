package source

import (
	"context"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Generator appends lines of random numbers in [0,1) for follow-mode testing.
type Generator struct {
	// Channels is the number of values per line.
	Channels int

	// Sleep is the pause between lines.
	Sleep time.Duration

	// Limit stops after that many lines when positive.
	Limit int

	Rand *rand.Rand
}

// Line builds one line including its newline.
func (g *Generator) Line() string {
	var b strings.Builder
	for i := 0; i < g.Channels; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(g.Rand.Float64(), 'f', -1, 64))
	}
	b.WriteByte('\n')
	return b.String()
}

// Run writes lines to w until ctx is done or Limit is reached.
func (g *Generator) Run(ctx context.Context, w io.Writer) (int, error) {
	if g.Rand == nil {
		g.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	n := 0
	for g.Limit <= 0 || n < g.Limit {
		if _, err := io.WriteString(w, g.Line()); err != nil {
			return n, err
		}
		n++
		if g.Sleep <= 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-time.After(g.Sleep):
		}
	}
	return n, nil
}
