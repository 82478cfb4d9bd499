package app

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// CardReader is the boundary to the NFC hardware: it blocks until a card is
// presented and yields its UID. The PN532 driver lives outside this module;
// StdinReader stands in for it during development.
type CardReader interface {
	WaitForCard(ctx context.Context) (string, error)
}

// StdinReader reads card UIDs line by line, one tap per line.
type StdinReader struct {
	r *bufio.Reader
}

func NewStdinReader(r io.Reader) *StdinReader {
	return &StdinReader{r: bufio.NewReader(r)}
}

func (s *StdinReader) WaitForCard(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line, err := s.r.ReadString('\n')
		if err != nil {
			return "", err
		}

		uid := strings.ToUpper(strings.TrimSpace(line))
		if uid != "" {
			return uid, nil
		}
	}
}
