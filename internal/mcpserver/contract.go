package mcpserver

// GroundingFormatContract describes how grounding blocks are laid out and
// how answers should cite them.
const GroundingFormatContract = `# Codex Grounding Format

The ` + "`ground`" + ` tool returns the chunks most similar to a query, rendered as a
single context block followed by footnotes.

## Context block

Each chunk is an entry of the form:

` + "```" + `text
[#<i> | <label>]
<chunk text>
` + "```" + `

Entries are joined by a line containing only ` + "`---`" + `. ` + "`<i>`" + ` starts at 1 and
follows retrieval order (highest similarity first). ` + "`<label>`" + ` is the document
title, or its source when the title is empty.

## Footnotes

One line per entry, in the same order: ` + "`[#<i>] <label>`" + `.

## Citing

1. Cite a chunk by its index: ` + "`[#2]`" + `. The same index always refers to the same
   entry in the context block and in the footnotes.
2. Only cite chunks that support the sentence they are attached to.
3. End an answer with a ` + "`Sources:`" + ` line listing the indices used, e.g.
   ` + "`Sources: [#1], [#3]`" + `.
4. When the block is empty, say that the corpus has nothing relevant rather than
   inventing a citation.

## Example

` + "```" + `text
[#1 | Connection pooling]
Size the pool to the number of cores times two.
---
[#2 | /srv/docs/ops.md]
Restart workers after changing pool settings.

[#1] Connection pooling
[#2] /srv/docs/ops.md
` + "```" + `
`
