package util

import (
	"html"
	"regexp"
)

var placeholderRegexp = regexp.MustCompile(`\{\{([A-Za-z_$][\w\-$]*)\}\}|\{([A-Za-z_$][\w\-$]*)\}`)

/*
Interpolate replaces {key} placeholders in tpl with values from data.
{{key}} placeholders are replaced with the HTML-escaped value.
Placeholders without a value are left untouched. Substituted values are not scanned again.
*/
func Interpolate(tpl string, data map[string]string) string {
	return placeholderRegexp.ReplaceAllStringFunc(tpl, func(m string) string {
		sub := placeholderRegexp.FindStringSubmatch(m)
		if sub[1] != "" {
			if v, ok := data[sub[1]]; ok {
				return html.EscapeString(v)
			}

			return m
		}

		if v, ok := data[sub[2]]; ok {
			return v
		}

		return m
	})
}
