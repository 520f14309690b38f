package logctx

import (
	"bytes"
	"context"
	"rdcp/internal/global"
	"strings"
	"testing"
	"time"
)

func TestLogEventLevelFiltering(t *testing.T) {
	tests := []struct {
		name        string
		printLevel  int
		eventLevel  int
		severity    string
		expectPrint bool
	}{
		{
			name:        "standard message at standard level",
			printLevel:  global.VerbosityStandard,
			eventLevel:  global.VerbosityStandard,
			severity:    global.InfoLog,
			expectPrint: true,
		},
		{
			name:        "debug message suppressed at standard level",
			printLevel:  global.VerbosityStandard,
			eventLevel:  global.VerbosityDebug,
			severity:    global.InfoLog,
			expectPrint: false,
		},
		{
			name:        "error always recorded",
			printLevel:  global.VerbosityNone,
			eventLevel:  global.VerbosityDebug,
			severity:    global.ErrorLog,
			expectPrint: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			logger := NewLogger("test", tt.printLevel, done)

			ctx := WithLogger(context.Background(), logger)
			LogEvent(ctx, tt.eventLevel, tt.severity, "message %d", 42)

			logger.mutex.Lock()
			queued := len(logger.queue)
			logger.mutex.Unlock()

			if tt.expectPrint && queued != 1 {
				t.Errorf("expected 1 queued event, got %d", queued)
			}
			if !tt.expectPrint && queued != 0 {
				t.Errorf("expected no queued events, got %d", queued)
			}
			close(done)
		})
	}
}

func TestWatcherDrainsQueue(t *testing.T) {
	done := make(chan struct{})
	logger := NewLogger("test", global.VerbosityStandard, done)

	var buf bytes.Buffer
	StartWatcher(logger, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = AppendCtxTag(ctx, "Server")
	ctx = AppendCtxTag(ctx, "Handler")
	LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "client connected\n")

	// Let the watcher drain, then release it
	time.Sleep(50 * time.Millisecond)
	close(done)
	logger.Wake()
	logger.Wait()

	out := buf.String()
	if !strings.Contains(out, "[Server/Handler]") {
		t.Errorf("expected tag path in output, got %q", out)
	}
	if !strings.Contains(out, "client connected") {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestTagListCopyOnWrite(t *testing.T) {
	base := context.Background()
	ctx1 := AppendCtxTag(base, "A")
	ctx2 := AppendCtxTag(ctx1, "B")
	ctx3 := RemoveLastCtxTag(ctx2)

	if got := GetTagList(ctx2); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("unexpected tag list on child: %v", got)
	}
	if got := GetTagList(ctx1); len(got) != 1 || got[0] != "A" {
		t.Errorf("parent context mutated: %v", got)
	}
	if got := GetTagList(ctx3); len(got) != 1 || got[0] != "A" {
		t.Errorf("unexpected tag list after pop: %v", got)
	}
}
