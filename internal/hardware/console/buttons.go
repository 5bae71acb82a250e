package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

type presser interface {
	Press(index int) bool
}

// Buttons reads presses from a text stream, one or more button indices per line.
type Buttons struct {
	logger  *slog.Logger
	in      io.Reader
	buttons presser
}

func NewButtons(logger *slog.Logger, in io.Reader, buttons presser) *Buttons {
	return &Buttons{
		logger:  logger.With("component", "buttons"),
		in:      in,
		buttons: buttons,
	}
}

// Run - feeds presses into the latch until the stream ends or the context is canceled.
func (that *Buttons) Run(ctx context.Context) error {
	lines := make(chan string)
	errs := make(chan error, 1)

	// the scanner cannot be interrupted, it ends with the stream
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(that.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("failed to read buttons: %w", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				that.logger.Info("button input closed")
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			that.handle(line)
		}
	}
}

func (that *Buttons) handle(line string) {
	for _, field := range strings.Fields(line) {
		index, err := strconv.Atoi(field)
		if err != nil {
			that.logger.Warn("not a button", "input", field)
			continue
		}

		if !that.buttons.Press(index) {
			that.logger.Debug("press ignored", "button", index)
			continue
		}

		that.logger.Debug("button pressed", "button", index)
	}
}
