package mcpserver

// DocumentFormatContract describes the document format that LLM consumers
// should follow when editing TextCase documents.
const DocumentFormatContract = `# TextCase Document Format Contract

Every document is one Markdown file named after its ID (` + "`" + `REQ001.md` + "`" + `)
inside its module directory.

## Structure

` + "```" + `markdown
---
links:                     # OPTIONAL: outgoing links, target ID → labels
  REQ002: [parent]
  TST001: []               # unlabeled link
---
# REQ001: Short title

Body text in standard Markdown.
` + "```" + `

## Rules

1. **IDs** are the module prefix, the module separator and a zero-padded
   number (` + "`" + `REQ001` + "`" + `, ` + "`" + `TST-0042` + "`" + `). Never rename files by hand; use ` + "`" + `add_document` + "`" + `.
2. **Frontmatter is optional.** When present the ` + "`" + `---` + "`" + ` fences must be the
   first line of the file and the content must be a YAML mapping.
3. **Links** live only in the source document under ` + "`" + `links` + "`" + `. Keys are
   canonical target IDs; values are lists of labels (possibly empty).
   Use ` + "`" + `link_documents` + "`" + ` / ` + "`" + `unlink_documents` + "`" + ` instead of editing them.
4. **Targets must exist** when a link is created. A link to a deleted document is
   reported by ` + "`" + `textcase check` + "`" + ` and can still be removed.
5. **The first heading** is the title shown in listings.
6. **Encoding** is UTF-8 with a trailing newline. Body bytes are never rewritten
   by link operations.
`
