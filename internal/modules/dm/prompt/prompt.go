// Package prompt 组装发给语言模型的提示词
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"anomali-dm/internal/domain/dm"
	"anomali-dm/internal/pkg/xerrors"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// 机器可读段落的定界符，骨架段落可由 ExtractSkeleton 取回
const (
	SkeletonOpen  = "<<<WORLD_SKELETON"
	SkeletonClose = "WORLD_SKELETON>>>"
	LogOpen       = "<<<CAMPAIGN_LOG"
	LogClose      = "CAMPAIGN_LOG>>>"
	PlayersOpen   = "<<<PLAYERS"
	PlayersClose  = "PLAYERS>>>"
)

const (
	tmplDMSystem    = "dm_system.tmpl"
	tmplWorldSystem = "world_builder_system.tmpl"
	tmplWorldUser   = "world_builder_user.tmpl"
)

// Prompt 一次补全请求的系统提示与用户提示
type Prompt struct {
	System string
	User   string
}

// Assembler 纯函数式的提示词组装器，无时钟、无随机
type Assembler struct {
	tmpl *template.Template
}

// NewAssembler 解析内嵌模板
func NewAssembler() (*Assembler, error) {
	tmpl, err := template.New("prompt").Funcs(template.FuncMap{
		"yesNo":  yesNo,
		"orNone": orNone,
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("解析提示词模板失败: %w", err)
	}
	return &Assembler{tmpl: tmpl}, nil
}

// MustNewAssembler 模板内嵌在二进制中，解析失败属于编程错误
func MustNewAssembler() *Assembler {
	a, err := NewAssembler()
	if err != nil {
		panic(err)
	}
	return a
}

type rosterEntry struct {
	Name        string          `json:"name"`
	CharacterID string          `json:"character_id"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	Inventory   []string        `json:"inventory"`
	Spells      []string        `json:"spells"`
	SpellSlots  dm.SpellSlots   `json:"spell_slots"`
	IsPresent   bool            `json:"is_present"`
}

type dmSystemData struct {
	SkeletonOpen, SkeletonClose string
	LogOpen, LogClose           string
	PlayersOpen, PlayersClose   string

	Skeleton string
	Log      string
	Players  string
}

// Assemble 根据战役快照和玩家输入组装回合提示词
func (a *Assembler) Assemble(cc *dm.CampaignContext, userInput string) (*Prompt, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, xerrors.NewEmptyInputError()
	}
	if cc == nil {
		return nil, xerrors.NewValidationError("campaign_context", "战役快照不能为空")
	}

	logJSON, err := marshalSection(nonNilLog(cc.Log))
	if err != nil {
		return nil, err
	}

	roster := make([]rosterEntry, 0, len(cc.Players))
	for _, p := range cc.Players {
		roster = append(roster, rosterEntry{
			Name:        p.Name,
			CharacterID: p.CharacterID,
			Stats:       p.Stats,
			Inventory:   nonNil(p.Inventory),
			Spells:      nonNil(p.Spells),
			SpellSlots:  p.SpellSlots,
			IsPresent:   p.IsPresent,
		})
	}
	playersJSON, err := marshalSection(roster)
	if err != nil {
		return nil, err
	}

	// 骨架原样嵌入，不重新编码
	skeleton := string(cc.Skeleton)
	if strings.TrimSpace(skeleton) == "" {
		skeleton = "{}"
	}

	var buf bytes.Buffer
	err = a.tmpl.ExecuteTemplate(&buf, tmplDMSystem, dmSystemData{
		SkeletonOpen:  SkeletonOpen,
		SkeletonClose: SkeletonClose,
		LogOpen:       LogOpen,
		LogClose:      LogClose,
		PlayersOpen:   PlayersOpen,
		PlayersClose:  PlayersClose,
		Skeleton:      skeleton,
		Log:           logJSON,
		Players:       playersJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("渲染系统提示词失败: %w", err)
	}

	return &Prompt{System: buf.String(), User: userInput}, nil
}

// AssembleWorldBuilder 组装战役生成提示词
func (a *Assembler) AssembleWorldBuilder(params dm.CampaignParams) (*Prompt, error) {
	var system, user bytes.Buffer
	if err := a.tmpl.ExecuteTemplate(&system, tmplWorldSystem, nil); err != nil {
		return nil, fmt.Errorf("渲染世界生成系统提示词失败: %w", err)
	}
	if err := a.tmpl.ExecuteTemplate(&user, tmplWorldUser, params); err != nil {
		return nil, fmt.Errorf("渲染世界生成用户提示词失败: %w", err)
	}
	return &Prompt{
		System: strings.TrimRight(system.String(), "\n"),
		User:   strings.TrimRight(user.String(), "\n"),
	}, nil
}

// ExtractSkeleton 从系统提示中取回骨架段落的原始字节
func ExtractSkeleton(system string) (json.RawMessage, bool) {
	start := strings.Index(system, SkeletonOpen+"\n")
	if start < 0 {
		return nil, false
	}
	start += len(SkeletonOpen) + 1

	end := strings.Index(system[start:], "\n"+SkeletonClose)
	if end < 0 {
		return nil, false
	}
	return json.RawMessage(system[start : start+end]), true
}

func marshalSection(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化提示词段落失败: %w", err)
	}
	return string(b), nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func nonNilLog(entries []dm.LogEntry) []dm.LogEntry {
	if entries == nil {
		return []dm.LogEntry{}
	}
	return entries
}
