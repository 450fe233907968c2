package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/telemetry"
)

// StreamCallbacks receive the progress of a streamed completion. Any of
// them may be nil. Exactly one of OnComplete and OnError is called, once,
// and OnChunk is never called after it.
type StreamCallbacks struct {
	OnChunk    func(delta string)
	OnComplete func(full string)
	OnError    func(err error)
}

// StreamChat streams a completion, calling cb.OnChunk for every non-empty
// delta in arrival order. When the body is exhausted cb.OnComplete gets
// the concatenated text, or req's placeholder if nothing arrived.
//
// Cancelling ctx stops the stream; cb.OnError then receives an error
// matching both ErrCancelled and the context error. StreamChat blocks
// until a terminal callback has run and returns the error passed to
// OnError, or nil.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, cb StreamCallbacks) error {
	ctx, span := telemetry.StartLLMSpan(ctx, c.tracer, "llm.stream", c.model(req), req.Task)
	defer span.End()

	full, chunks, err := c.stream(ctx, req, span, cb.OnChunk)
	span.SetChunks(chunks)
	if err != nil {
		span.SetError(err)
		c.logger.Error("stream failed",
			zap.String("task", req.Task),
			zap.Int("chunks", chunks),
			zap.Error(err))
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	if strings.TrimSpace(full) == "" {
		span.SetPlaceholder()
		full = req.placeholder()
	}
	span.SetOutputSize(len(full))
	c.logger.Debug("stream finished",
		zap.String("task", req.Task),
		zap.Int("chunks", chunks),
		zap.Int("chars", len(full)))
	if cb.OnComplete != nil {
		cb.OnComplete(full)
	}
	return nil
}

func (c *Client) stream(ctx context.Context, req ChatRequest, span *telemetry.LLMSpan, onChunk func(string)) (string, int, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return "", 0, err
	}

	messages := req.Messages()
	span.SetInputSize(len(messages), countChars(messages))

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", key, c.chatPayload(req, messages, true))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(ctx, httpReq, "streaming")
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var (
		full   strings.Builder
		chunks int
	)
	err = decodeEvents(ctx, resp.Body, func(data string) error {
		var ev chatStreamResponse
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Debug("skipping malformed stream line", zap.Error(err))
			return nil
		}
		if ev.Error != nil {
			return ev.Error
		}
		if len(ev.Choices) == 0 {
			return nil
		}
		delta := ev.Choices[0].Delta.Content
		if delta == "" {
			return nil
		}
		full.WriteString(delta)
		chunks++
		if onChunk != nil {
			onChunk(delta)
		}
		return nil
	})
	if err != nil {
		return "", chunks, err
	}
	return full.String(), chunks, nil
}

// decodeEvents reads SSE lines from r and hands every data payload except
// the [DONE] sentinel to fn. Lines split across reads are reassembled by
// the scanner. It stops at end of input, on the first error from fn, or
// when ctx is done.
func decodeEvents(ctx context.Context, r io.Reader, fn func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		data, ok := eventData(scanner.Text())
		if !ok || data == "[DONE]" {
			continue
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return cancelled(ctx.Err())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

// eventData returns the payload of an SSE "data:" line. The space after
// the colon is optional.
func eventData(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	rest = strings.TrimPrefix(rest, " ")
	if rest == "" {
		return "", false
	}
	return rest, true
}
