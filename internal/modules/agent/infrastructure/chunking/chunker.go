package chunking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"LinkMind/pkg/xerr"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// 切分策略
const (
	StrategyDefault = "default"
	StrategyCustom  = "custom"
)

// separatorTable 自定义切分的硬分隔符表（中英文标识均可）
var separatorTable = map[string]string{
	"by page":        "\f",
	"按页面":            "\f",
	"by top heading": "\n# ",
	"按一级标题":          "\n# ",
	"by sub-heading": "\n## ",
	"按二级标题":          "\n## ",
}

// Chunker 将文档切分为带重叠的片段，重叠只取自同一文档内紧邻的上一个片段
type Chunker struct {
	Strategy       string
	ChunkSize      int
	ChunkOverlap   int
	BoundaryMarker string

	initOnce      sync.Once
	initErr       error
	recursiveImpl document.Transformer
}

// NewChunker 创建切分器。overlap >= size 时收敛为 size/2（size <= 1 时为 0），不作为错误返回
func NewChunker(strategy string, size, overlap int, boundaryMarker string) (*Chunker, error) {
	if strategy != StrategyDefault && strategy != StrategyCustom {
		return nil, xerr.UnsupportedStrategy(strategy)
	}
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		if size <= 1 {
			overlap = 0
		} else {
			overlap = size / 2
		}
	}
	return &Chunker{
		Strategy:       strategy,
		ChunkSize:      size,
		ChunkOverlap:   overlap,
		BoundaryMarker: strings.TrimSpace(boundaryMarker),
	}, nil
}

// ChunkDocuments 按输入顺序切分所有文档，每个片段携带 source 与 chunk_index 元数据
func (c *Chunker) ChunkDocuments(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	out := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		if d == nil || d.Content == "" {
			continue
		}

		var parts []string
		var err error
		switch c.Strategy {
		case StrategyDefault:
			parts, err = c.splitRecursive(ctx, d.Content)
		case StrategyCustom:
			if sep, ok := separatorTable[c.BoundaryMarker]; ok {
				parts = c.splitBySeparator(d.Content, sep)
			} else {
				parts = c.splitByLength(d.Content)
			}
		default:
			err = xerr.UnsupportedStrategy(c.Strategy)
		}
		if err != nil {
			return nil, err
		}

		for i, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			n := &schema.Document{Content: p, MetaData: map[string]any{}}
			for k, v := range d.MetaData {
				n.MetaData[k] = v
			}
			n.MetaData["chunk_index"] = i
			out = append(out, n)
		}
	}
	return out, nil
}

// splitRecursive 默认策略：递归字符切分，自然语言边界作为软偏好
func (c *Chunker) splitRecursive(ctx context.Context, text string) ([]string, error) {
	c.initOnce.Do(func() {
		impl, err := recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   c.ChunkSize,
			OverlapSize: c.ChunkOverlap,
			Separators:  []string{"\n\n", "\n", "。", "！", "？", "；", "，", " "},
			LenFunc: func(s string) int {
				return len([]rune(s))
			},
			KeepType: recursive.KeepTypeEnd,
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.recursiveImpl = impl
	})
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.recursiveImpl == nil {
		return nil, fmt.Errorf("recursive splitter not initialized")
	}

	frags, err := c.recursiveImpl.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		if f == nil {
			continue
		}
		parts = append(parts, f.Content)
	}
	return parts, nil
}

// splitBySeparator 自定义策略：按硬分隔符切段后贪心合并到目标长度
func (c *Chunker) splitBySeparator(text, sep string) []string {
	segments := strings.Split(text, sep)

	var chunks []string
	var cur strings.Builder
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if cur.Len() > 0 && len([]rune(cur.String()))+len([]rune(seg)) > c.ChunkSize {
			chunk := cur.String()
			chunks = append(chunks, chunk)
			cur.Reset()
			cur.WriteString(overlapTail(chunk, c.ChunkOverlap))
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(seg)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// splitByLength 纯长度切分，基于 rune 数量避免多字节字符被截断
func (c *Chunker) splitByLength(text string) []string {
	runes := []rune(text)
	totalLen := len(runes)
	if totalLen <= c.ChunkSize {
		return []string{text}
	}

	step := c.ChunkSize - c.ChunkOverlap
	if step <= 0 {
		step = 1
	}

	var chunks []string
	for i := 0; i < totalLen; i += step {
		end := i + c.ChunkSize
		if end > totalLen {
			end = totalLen
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == totalLen {
			break
		}
	}
	return chunks
}

// overlapTail 取片段末尾 n 个 rune 作为下一片段的重叠前缀
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
