package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/model"
)

func mdChunkCfg() coreconfig.ChunkConfig {
	return coreconfig.ChunkConfig{
		MinNonWhitespaceChars: 20,
		MaxNonWhitespaceChars: 400,
		TargetSize:            200,
	}
}

func TestMarkdownChunksSplitByHeading(t *testing.T) {
	doc := `# Guide

This introduction explains what the tool does and why you would use it.

## Install

Run the installer and follow the prompts until the setup completes fine.

## Usage

Invoke the binary with a project root argument to index the code tree.
`
	chunks := buildMarkdownChunks("docs/guide.md", []byte(doc), mdChunkCfg())
	require.Len(t, chunks, 3)

	assert.Equal(t, "docs/guide.md:guide", chunks[0].ID)
	assert.Equal(t, "docs/guide.md:install", chunks[1].ID)
	assert.Equal(t, "docs/guide.md:usage", chunks[2].ID)

	assert.Equal(t, "Guide", chunks[0].Metadata.LogicalBlock)
	assert.Equal(t, "Guide > Install", chunks[1].Metadata.LogicalBlock)
	assert.Equal(t, "Guide > Usage", chunks[2].Metadata.LogicalBlock)

	// Sections tile the file without overlap.
	assert.Equal(t, 1, chunks[0].StartLine)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine+1, chunks[i].StartLine)
	}
}

func TestMarkdownFrontmatterIsModuleChunk(t *testing.T) {
	doc := `---
title: Reference
tags: [docs]
---

# Reference

Body text that is comfortably long enough to stand as its own section.
`
	chunks := buildMarkdownChunks("docs/ref.md", []byte(doc), mdChunkCfg())
	require.NotEmpty(t, chunks)
	assert.Equal(t, model.ChunkKindModule, chunks[0].Kind)
	assert.Equal(t, "frontmatter", chunks[0].Metadata.LogicalBlock)
	assert.Equal(t, 1, chunks[0].StartLine)
}

func TestMarkdownTrivialSectionFoldsIntoPrevious(t *testing.T) {
	doc := `# Main

A section body with plenty of content to clear the minimum size floor.

## Stub

ok
`
	chunks := buildMarkdownChunks("docs/a.md", []byte(doc), mdChunkCfg())
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "## Stub")
}

func TestMarkdownOversizedSectionSplitsOnBlankLines(t *testing.T) {
	para := strings.Repeat("word ", 40) // ~160 non-whitespace chars
	doc := "# Big\n\n" + para + "\n\n" + para + "\n\n" + para + "\n\n" + para + "\n"

	chunks := buildMarkdownChunks("docs/big.md", []byte(doc), mdChunkCfg())
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.True(t, c.Metadata.Partial)
		assert.Equal(t, i, c.Metadata.PartIndex)
		assert.LessOrEqual(t, c.NonWhitespaceSize, mdChunkCfg().MaxNonWhitespaceChars)
	}
}

func TestMarkdownDuplicateHeadingsGetDistinctIDs(t *testing.T) {
	doc := `# Notes

First pass over the notes with enough words to hold its own section.

# Notes

Second pass over the notes with enough words to hold its own section.
`
	chunks := buildMarkdownChunks("docs/n.md", []byte(doc), mdChunkCfg())
	require.Len(t, chunks, 2)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}
