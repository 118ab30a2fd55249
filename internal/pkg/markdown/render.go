// Package markdown 把叙述文本渲染成 HTML 给聊天客户端
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer goldmark 渲染器，原始 HTML 不输出
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer 创建渲染器，启用删除线与硬换行
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Render 渲染叙述，空文本返回空串
func (r *Renderer) Render(narration string) (string, error) {
	if strings.TrimSpace(narration) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(narration), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
