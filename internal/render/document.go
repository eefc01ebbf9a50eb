package render

import (
	"bytes"
	"context"
	"strings"

	"github.com/hylla/todoembed/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/sync/errgroup"
)

// BlockLanguage is the fenced code block info string that marks an embedded task list.
const BlockLanguage = "todoist"

// defaultMaxConcurrent bounds concurrent block renders when none is configured.
const defaultMaxConcurrent = 4

// ViewRenderer runs the render pipeline for one config block.
type ViewRenderer interface {
	Render(ctx context.Context, rawConfig []byte) (domain.OrganizedView, error)
}

// Logger receives per-block failures.
type Logger interface {
	Warn(msg any, keyvals ...any)
}

// Block is one embedded config block discovered in a document.
type Block struct {
	Index  int
	Config []byte
	View   domain.OrganizedView
	Err    error

	node  *ast.FencedCodeBlock
	start int
	end   int
}

// DocumentOptions configures a Document renderer.
type DocumentOptions struct {
	MaxConcurrent int
	Logger        Logger
}

// Document renders markdown documents, replacing each todoist block with its task list.
type Document struct {
	views         ViewRenderer
	maxConcurrent int
	logger        Logger
	terminal      *Terminal
}

// NewDocument constructs a document renderer over views.
func NewDocument(views ViewRenderer, opts DocumentOptions) *Document {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	return &Document{
		views:         views,
		maxConcurrent: opts.MaxConcurrent,
		logger:        opts.Logger,
		terminal:      NewTerminal(),
	}
}

// Blocks parses src and renders every todoist block, at most MaxConcurrent at a time.
// Block failures are recorded on the block and never fail the document.
func (d *Document) Blocks(ctx context.Context, src []byte) ([]Block, ast.Node, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	blocks := findBlocks(doc, src)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.maxConcurrent)
	for i := range blocks {
		block := &blocks[i]
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			block.View, block.Err = d.views.Render(groupCtx, block.Config)
			if block.Err != nil && d.logger != nil {
				d.logger.Warn("todoist block failed", "block", block.Index, "code", domain.ErrorCode(block.Err), "err", block.Err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return blocks, doc, nil
}

// RenderHTML renders src to HTML with each todoist block followed by its widget.
func (d *Document) RenderHTML(ctx context.Context, src []byte) ([]byte, []Block, error) {
	blocks, doc, err := d.Blocks(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	widgets := make(map[*ast.FencedCodeBlock]string, len(blocks))
	for _, block := range blocks {
		markup, err := WidgetHTML(block.View, block.Err)
		if err != nil {
			return nil, nil, err
		}
		widgets[block.node] = markup
	}

	md := goldmark.New(goldmark.WithRendererOptions(
		renderer.WithNodeRenderers(util.Prioritized(newBlockRenderer(widgets), 100)),
	))
	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), blocks, nil
}

// RenderMarkdown returns src with every todoist block replaced by its markdown task list.
func (d *Document) RenderMarkdown(ctx context.Context, src []byte) (string, []Block, error) {
	blocks, _, err := d.Blocks(ctx, src)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	last := 0
	for _, block := range blocks {
		b.Write(src[last:block.start])
		b.WriteString("\n")
		if block.Err != nil {
			b.WriteString(ErrorMarkdown(block.Err))
		} else {
			b.WriteString(ViewMarkdown(block.View))
		}
		b.WriteString("\n")
		last = block.end
	}
	b.Write(src[last:])
	return b.String(), blocks, nil
}

// RenderTerminal renders src for a terminal of the given width.
func (d *Document) RenderTerminal(ctx context.Context, src []byte, width int) (string, []Block, error) {
	markdown, blocks, err := d.RenderMarkdown(ctx, src)
	if err != nil {
		return "", nil, err
	}
	return d.terminal.Render(markdown, width), blocks, nil
}

// findBlocks collects todoist fenced blocks in document order.
func findBlocks(doc ast.Node, src []byte) []Block {
	var blocks []Block
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok || !isTodoistBlock(fenced, src) {
			return ast.WalkContinue, nil
		}
		start, end := blockSpan(fenced, src)
		blocks = append(blocks, Block{
			Index:  len(blocks),
			Config: blockContent(fenced, src),
			node:   fenced,
			start:  start,
			end:    end,
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

func isTodoistBlock(node *ast.FencedCodeBlock, src []byte) bool {
	return node.Info != nil && string(node.Language(src)) == BlockLanguage
}

func blockContent(node *ast.FencedCodeBlock, src []byte) []byte {
	var buf bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(src))
	}
	return buf.Bytes()
}

// blockSpan returns the byte range from the opening fence line to the end of the closing fence line.
func blockSpan(node *ast.FencedCodeBlock, src []byte) (int, int) {
	infoStart := node.Info.Segment.Start
	start := bytes.LastIndexByte(src[:infoStart], '\n') + 1

	contentEnd := lineEnd(src, infoStart)
	if lines := node.Lines(); lines.Len() > 0 {
		contentEnd = lines.At(lines.Len() - 1).Stop
		if contentEnd > 0 && src[contentEnd-1] != '\n' {
			contentEnd = lineEnd(src, contentEnd)
		}
	}
	return start, lineEnd(src, contentEnd)
}

// lineEnd returns the offset just past the newline ending the line containing pos.
func lineEnd(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	idx := bytes.IndexByte(src[pos:], '\n')
	if idx < 0 {
		return len(src)
	}
	return pos + idx + 1
}

// blockRenderer renders todoist blocks with their widget and defers other fenced blocks to goldmark.
type blockRenderer struct {
	widgets  map[*ast.FencedCodeBlock]string
	fallback renderer.NodeRendererFunc
}

func newBlockRenderer(widgets map[*ast.FencedCodeBlock]string) *blockRenderer {
	capture := &funcCapture{kind: ast.KindFencedCodeBlock}
	html.NewRenderer().RegisterFuncs(capture)
	return &blockRenderer{widgets: widgets, fallback: capture.fn}
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *blockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *blockRenderer) renderFencedCodeBlock(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	fenced := node.(*ast.FencedCodeBlock)
	widget, ok := r.widgets[fenced]
	if !ok {
		return r.fallback(w, src, node, entering)
	}
	if !entering {
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(`<div class="todoist-runtime-host"><pre><code class="language-todoist">`)
	_, _ = w.Write(util.EscapeHTML(blockContent(fenced, src)))
	_, _ = w.WriteString(`</code></pre><div class="todoist-runtime">`)
	_, _ = w.WriteString(widget)
	_, _ = w.WriteString("</div></div>\n")
	return ast.WalkSkipChildren, nil
}

// funcCapture records the function goldmark's HTML renderer registers for one node kind.
type funcCapture struct {
	kind ast.NodeKind
	fn   renderer.NodeRendererFunc
}

func (c *funcCapture) Register(kind ast.NodeKind, fn renderer.NodeRendererFunc) {
	if kind == c.kind {
		c.fn = fn
	}
}
