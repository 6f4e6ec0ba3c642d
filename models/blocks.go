package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// BlockType tags a content block as markdown text or a media URL.
type BlockType string

const (
	BlockMarkdown BlockType = "markdown"
	BlockVideo    BlockType = "video"
	BlockImage    BlockType = "image"
)

// ContentBlock is one tagged unit of problem content. For markdown blocks the
// content is the text itself; for video/image blocks it is the media URL.
type ContentBlock struct {
	Type    BlockType `json:"type"`
	Content string    `json:"content"`
}

// Validate checks the block's content against its declared type. Media blocks
// must carry an absolute http(s) URL; trusting the tag alone would let markdown
// land where the client expects a URL.
func (b ContentBlock) Validate() error {
	switch b.Type {
	case BlockMarkdown:
		if strings.TrimSpace(b.Content) == "" {
			return fmt.Errorf("markdown block has empty content")
		}
	case BlockVideo, BlockImage:
		u, err := url.Parse(b.Content)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s block content is not an absolute http(s) url", b.Type)
		}
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	return nil
}

// ParseBlocks decodes a serialized block list and validates every block shape.
func ParseBlocks(raw string) ([]ContentBlock, error) {
	var blocks []ContentBlock
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		return nil, fmt.Errorf("invalid block list: %w", err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("block list is empty")
	}
	for i, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	return blocks, nil
}

// EncodeBlocks validates and serializes a block list for storage.
func EncodeBlocks(blocks []ContentBlock) (string, error) {
	if len(blocks) == 0 {
		return "", fmt.Errorf("block list is empty")
	}
	for i, b := range blocks {
		if err := b.Validate(); err != nil {
			return "", fmt.Errorf("block %d: %w", i, err)
		}
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
