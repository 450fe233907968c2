package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/r3d91ll/innercritic/internal/telemetry"
)

// GenerateImage asks the image model for a square image and returns its
// URL, which is usually a data: URL. A response without an image yields
// ErrNoImage.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, span := telemetry.StartLLMSpan(ctx, c.tracer, "llm.image", c.cfg.ImageModel, "portrait")
	defer span.End()

	key, err := c.apiKey(ctx)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	span.SetInputSize(1, len(prompt))

	payload := chatRequest{
		Model:       c.cfg.ImageModel,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Modalities:  []string{"image", "text"},
		ImageConfig: &imageConfig{AspectRatio: "1:1"},
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", key, payload)
	if err != nil {
		span.SetError(err)
		return "", err
	}

	resp, err := c.do(ctx, httpReq, "image generation")
	if err != nil {
		span.SetError(err)
		c.logger.Error("image generation failed", zap.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&chatResp); err != nil {
		if ctx.Err() != nil {
			err = cancelled(ctx.Err())
		} else {
			err = fmt.Errorf("failed to decode image response: %w", err)
		}
		span.SetError(err)
		return "", err
	}
	if chatResp.Error != nil {
		span.SetError(chatResp.Error)
		return "", chatResp.Error
	}

	if len(chatResp.Choices) == 0 || len(chatResp.Choices[0].Message.Images) == 0 ||
		chatResp.Choices[0].Message.Images[0].ImageURL.URL == "" {
		span.SetError(ErrNoImage)
		return "", ErrNoImage
	}

	url := chatResp.Choices[0].Message.Images[0].ImageURL.URL
	span.SetOutputSize(len(url))
	return url, nil
}
