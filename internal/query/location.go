// Package query は地域の法令に関する質問への回答生成を提供する。
// 地域名の解決、プロンプト構築、補完APIの1回呼び出しを担う。
package query

import "strings"

// locationAliases は都市スラッグから表示名への対応表。
var locationAliases = map[string]string{
	"new-york-ny":     "New York, New York",
	"los-angeles-ca":  "Los Angeles, California",
	"chicago-il":      "Chicago, Illinois",
	"houston-tx":      "Houston, Texas",
	"phoenix-az":      "Phoenix, Arizona",
	"philadelphia-pa": "Philadelphia, Pennsylvania",
	"san-antonio-tx":  "San Antonio, Texas",
	"san-diego-ca":    "San Diego, California",
	"dallas-tx":       "Dallas, Texas",
	"san-jose-ca":     "San Jose, California",
}

// ResolveLocation はスラッグを表示名に変換する。
// 対応表にない値はそのまま返す。
func ResolveLocation(raw string) string {
	if name, ok := locationAliases[raw]; ok {
		return name
	}
	return raw
}

// IsMajorCity は表示名が対応表の主要都市かを返す。
func IsMajorCity(resolved string) bool {
	for _, name := range locationAliases {
		if strings.EqualFold(name, resolved) {
			return true
		}
	}
	return false
}
