// Package console はCLIクライアントの画面出力を提供する。
// テーマ（ライト/ダーク）に応じて配色を切り替える。
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/bizdesk/internal/appstate"
	"github.com/hitoshi/bizdesk/internal/model"
)

// 配色。Lightは明るい背景、Darkは暗い背景向け。
var (
	accentColor  = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	dimColor     = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	successColor = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#22C55E"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"}
	warningColor = lipgloss.AdaptiveColor{Light: "#A16207", Dark: "#FACC15"}
	infoColor    = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
)

// Presenter は状態と通知を端末に描画する。theme.Presenterを実装する。
type Presenter struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
	dark     bool

	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
	kindStyles map[model.NotificationKind]lipgloss.Style
}

// NewPresenter はoutへ描画するPresenterを生成する。
// outが端末でない場合は装飾なしのテキストを出力する。
func NewPresenter(out io.Writer) *Presenter {
	r := lipgloss.NewRenderer(out)
	r.SetHasDarkBackground(false)

	return &Presenter{
		out:        out,
		renderer:   r,
		labelStyle: r.NewStyle().Foreground(dimColor),
		valueStyle: r.NewStyle().Bold(true).Foreground(accentColor),
		kindStyles: map[model.NotificationKind]lipgloss.Style{
			model.NotificationSuccess: r.NewStyle().Bold(true).Foreground(successColor),
			model.NotificationError:   r.NewStyle().Bold(true).Foreground(errorColor),
			model.NotificationWarning: r.NewStyle().Bold(true).Foreground(warningColor),
			model.NotificationInfo:    r.NewStyle().Bold(true).Foreground(infoColor),
		},
	}
}

// SetDarkMode はダークモードの有無を配色に反映する。
func (p *Presenter) SetDarkMode(dark bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dark = dark
	p.renderer.SetHasDarkBackground(dark)
}

// DarkMode は現在ダークモードかどうかを返す。
func (p *Presenter) DarkMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dark
}

// Listen はappstate.Listenerとして登録し、追加された通知を即時に表示する。
func (p *Presenter) Listen(_, _ appstate.State, action appstate.Action) {
	if add, ok := action.(appstate.AddNotification); ok {
		p.PrintNotification(add.Notification)
	}
}

// PrintNotification は通知を1行で表示する。
func (p *Presenter) PrintNotification(n model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	style, ok := p.kindStyles[n.Kind]
	if !ok {
		style = p.kindStyles[model.NotificationInfo]
	}
	line := style.Render("["+string(n.Kind)+"]") + " " + n.Title
	if n.Message != "" {
		line += ": " + n.Message
	}
	fmt.Fprintln(p.out, line)
}

// PrintState はセッションと表示設定の概要を表示する。
func (p *Presenter) PrintState(s appstate.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	p.writeRow(&b, "status", string(s.Stage()))
	if s.User != nil {
		p.writeRow(&b, "user", formatUser(s.User))
	}
	p.writeRow(&b, "theme", string(s.Theme))
	if s.CurrentPage != "" {
		p.writeRow(&b, "page", s.CurrentPage)
	}
	fmt.Fprint(p.out, b.String())
}

func (p *Presenter) writeRow(b *strings.Builder, label, value string) {
	b.WriteString(p.labelStyle.Render(fmt.Sprintf("%-7s", label+":")))
	b.WriteString(" ")
	b.WriteString(p.valueStyle.Render(value))
	b.WriteString("\n")
}

// formatUser は "名前 <メール> (ロール)" 形式の表示文字列を返す。
func formatUser(u *model.User) string {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	s := fmt.Sprintf("%s <%s> (%s)", name, u.Email, u.Role)
	if !u.IsVerified {
		s += " unverified"
	}
	return s
}
