package logctx

import (
	"fmt"
	"io"
	"strings"
)

// Hold main thread exit until logger is finished its work
func (logger *Logger) Wait() {
	logger.wg.Wait()
}

// Wake signals/broadcasts to any goroutines waiting on the condition variable
func (logger *Logger) Wake() {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.cond.Broadcast()
}

// Starts a go routine that reads events and writes formatted output to io.Writer.
// Stops when logger.Done is closed and the queue has drained.
func StartWatcher(logger *Logger, output io.Writer) {
	logger.wg.Add(1)

	go func() {
		defer logger.wg.Done()

		for {
			logger.mutex.Lock()

			// Wait for events (exit when done and drained)
			for len(logger.queue) == 0 {
				select {
				case <-logger.Done:
					logger.mutex.Unlock()
					return
				default:
					logger.cond.Wait()
				}
			}

			// Pop one event from the front of the queue
			event := logger.queue[0]
			logger.queue = logger.queue[1:]
			logger.mutex.Unlock()

			fmt.Fprint(output, event.Format())
		}
	}()
}

// Human readable single line form of one event
func (event Event) Format() (line string) {
	tagPath := strings.Join(event.Tags, "/")
	if tagPath == "" {
		tagPath = "-"
	}

	line = fmt.Sprintf("[%s] [%s] [%s] %s",
		event.Timestamp.Format("2006-01-02 15:04:05.000"),
		tagPath,
		event.Severity,
		event.Message)

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	return
}
