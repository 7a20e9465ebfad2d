package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/example/switchboard/internal/adapters/notify"
	"github.com/example/switchboard/internal/ports/secondary"
)

// RunLines serves the surface over a plain reader/writer pair, printing
// notifications between commands. It returns on /quit, EOF or ctx done.
func RunLines(ctx context.Context, surface *Surface, in io.Reader, out io.Writer, notes <-chan secondary.Notification) error {
	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if notes != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case n, ok := <-notes:
					if !ok {
						return
					}
					printf("* %s\n", notify.Format(n))
				}
			}
		}()
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	printf("switchboard - type /help for commands\n")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if line == "" {
				continue
			}
			text, err := surface.Handle(ctx, line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				printf("! %s\n", DescribeError(err))
				continue
			}
			printf("%s\n", text)
		}
	}
}
