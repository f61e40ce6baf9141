package sse

import (
	"bufio"
	"context"
	"io"
)

// LineRenderer is implemented by each dialect's stream state
// (AnthropicStreamState, OpenAIChatStreamState, OpenAILegacyStreamState,
// OpenAICodexStreamState).
type LineRenderer interface {
	ProcessLine(line string) []byte
}

// ForceStopper is implemented by renderers that must emit termination
// events if Upstream's stream ends without a clean finishReason.
type ForceStopper interface {
	EmitForceStop() []byte
}

// Pump reads Upstream's SSE body line by line, feeds each line to r, and
// writes whatever bytes r returns to w, flushing after every line. On EOF
// (or ctx cancellation) it calls EmitForceStop if r supports it, so clients
// always see a terminating event even when Upstream's stream cuts off
// early. Grounded on handleStreamResponse's byte-buffer line-accumulation
// read loop and its EmitForceStop-on-EOF call.
func Pump(ctx context.Context, body io.Reader, w io.Writer, flush func(), r LineRenderer) error {
	reader := bufio.NewReader(body)
	for {
		select {
		case <-ctx.Done():
			forceStop(r, w, flush)
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			if frame := r.ProcessLine(line); frame != nil {
				if _, werr := w.Write(frame); werr != nil {
					return werr
				}
				if flush != nil {
					flush()
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				forceStop(r, w, flush)
				return nil
			}
			return err
		}
	}
}

func forceStop(r LineRenderer, w io.Writer, flush func()) {
	fs, ok := r.(ForceStopper)
	if !ok {
		return
	}
	frame := fs.EmitForceStop()
	if frame == nil {
		return
	}
	_, _ = w.Write(frame)
	if flush != nil {
		flush()
	}
}
