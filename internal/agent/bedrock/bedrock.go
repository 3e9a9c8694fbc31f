// Package bedrock implements agent.Model against Amazon Bedrock's native
// Anthropic Messages API (InvokeModelWithResponseStream / InvokeModel),
// exactly the SDK client shape the rest of this repository's Cloud
// Capability uses (see internal/cloud/awscloud): a thin wrapper
// constructed once from the AWS default config chain, every method
// fallible, no business logic leaking provider vocabulary into callers.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent"
)

// Client wraps the Bedrock Runtime SDK client bound to one model id.
type Client struct {
	rt      *bedrockruntime.Client
	modelID string
}

// New loads the default AWS config chain (the same environment/credentials
// path internal/cloud/awscloud.New uses) and binds it to modelID.
func New(ctx context.Context, region, modelID string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return &Client{rt: bedrockruntime.NewFromConfig(cfg), modelID: modelID}, nil
}

// Stream opens InvokeModelWithResponseStream and translates each decoded
// chunk into an agent.StreamEvent on the returned channel. Both channels are
// closed when the stream ends; at most one error is ever sent on errc.
func (c *Client) Stream(ctx context.Context, system string, messages []agent.Message, tools []agent.ToolSchema) (<-chan agent.StreamEvent, <-chan error) {
	events := make(chan agent.StreamEvent, 16)
	errc := make(chan error, 1)

	body, err := buildRequestBody(system, messages, tools)
	if err != nil {
		close(events)
		errc <- fmt.Errorf("bedrock: build request: %w", err)
		close(errc)
		return events, errc
	}

	go func() {
		defer close(events)
		defer close(errc)

		out, err := c.rt.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     &c.modelID,
			ContentType: strPtr("application/json"),
			Body:        body,
		})
		if err != nil {
			errc <- err
			return
		}
		stream := out.GetStream()
		defer stream.Close()

		for raw := range stream.Events() {
			chunkBytes, ok := payloadBytes(raw)
			if !ok {
				continue
			}
			var chunk streamChunk
			if err := json.Unmarshal(chunkBytes, &chunk); err != nil {
				continue // a malformed chunk must not abort an otherwise-healthy stream
			}
			translateChunk(chunk, events)
		}
		if err := stream.Err(); err != nil {
			errc <- err
		}
	}()

	return events, errc
}

func payloadBytes(raw types.ResponseStream) ([]byte, bool) {
	chunk, ok := raw.(*types.ResponseStreamMemberChunk)
	if !ok {
		return nil, false
	}
	return chunk.Value.Bytes, true
}

// translateChunk converts one decoded Bedrock Anthropic stream event into
// zero or one agent.StreamEvent.
func translateChunk(chunk streamChunk, events chan<- agent.StreamEvent) {
	switch chunk.Type {
	case "content_block_start":
		idx := 0
		if chunk.Index != nil {
			idx = *chunk.Index
		}
		blk := agent.Block{}
		switch chunk.ContentBlock.Type {
		case "tool_use":
			blk.Kind = agent.BlockToolUse
			blk.ID = chunk.ContentBlock.ID
			blk.Tool = chunk.ContentBlock.Name
		default:
			blk.Kind = agent.BlockText
		}
		events <- agent.StreamEvent{Kind: agent.StreamBlockStart, Index: idx, Block: blk}
	case "content_block_delta":
		idx := 0
		if chunk.Index != nil {
			idx = *chunk.Index
		}
		switch chunk.Delta.Type {
		case "text_delta":
			events <- agent.StreamEvent{Kind: agent.StreamBlockDelta, Index: idx, TextDelta: chunk.Delta.Text}
		case "input_json_delta":
			events <- agent.StreamEvent{Kind: agent.StreamBlockDelta, Index: idx, InputDelta: chunk.Delta.PartialJSON}
		}
	case "content_block_stop":
		idx := 0
		if chunk.Index != nil {
			idx = *chunk.Index
		}
		events <- agent.StreamEvent{Kind: agent.StreamBlockStop, Index: idx}
	case "message_delta":
		if chunk.Delta.StopReason != "" {
			events <- agent.StreamEvent{Kind: agent.StreamMessageStop, StopReason: chunk.Delta.StopReason}
		}
	case "message_stop":
		// stop_reason already delivered by the preceding message_delta; a
		// bare message_stop with none pending is a no-op event.
	}
}

// Complete issues a single non-streaming InvokeModel call (§4.7.4
// compaction summarization).
func (c *Client) Complete(ctx context.Context, system string, messages []agent.Message) (string, error) {
	body, err := buildRequestBody(system, messages, nil)
	if err != nil {
		return "", fmt.Errorf("bedrock: build request: %w", err)
	}
	out, err := c.rt.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		ContentType: strPtr("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", err
	}
	var resp nonStreamResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}
	return extractText(resp), nil
}

func strPtr(s string) *string { return &s }

var _ agent.Model = (*Client)(nil)
