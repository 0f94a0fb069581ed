package model

// Theme は画面の配色テーマを表す。
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme は永続化された文字列をThemeに変換する。
// 未知の値の場合はfalseを返す。
func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	default:
		return "", false
	}
}

// Breadcrumb はパンくずリストの1要素。Hrefは省略可能。
type Breadcrumb struct {
	Label string
	Href  string
}
