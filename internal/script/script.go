// Package script renders intervention copy. Output depends only on the
// friction type, context and stage.
package script

import (
	"sort"
	"strings"

	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/resolver"
)

// UIType is a presentation hint for the delivery layer.
type UIType string

const (
	UIToast      UIType = "toast"
	UIBanner     UIType = "banner"
	UIModal      UIType = "modal"
	UIChatBubble UIType = "chat_bubble"
	UIInlineTip  UIType = "inline_tip"
)

// Generated is a rendered intervention.
type Generated struct {
	Script string `json:"script"`
	UIType UIType `json:"ui_type"`
}

// Stages returns the length of t's progression.
func Stages(t friction.Type) int {
	if p, ok := progressions[t]; ok {
		return len(p)
	}
	return 1
}

// Generate renders the message for t at stage. Stages outside the type's
// progression are clamped into it.
func Generate(t friction.Type, ctx resolver.Context, stage int) Generated {
	st := fallback
	if p, ok := progressions[t]; ok && len(p) > 0 {
		stage = min(max(stage, 1), len(p))
		st = p[stage-1]
	}

	tmpl := st.Text
	if ctx.Kind == resolver.KindGeneric && st.Generic != "" {
		tmpl = st.Generic
	}
	return Generated{Script: Interpolate(tmpl, ctx.Fields()), UIType: st.UI}
}

// Interpolate replaces {name} placeholders with fields, then with named
// defaults. Unknown placeholders are left untouched.
func Interpolate(tmpl string, fields map[string]string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	for name := range fields {
		if _, ok := defaults[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		v, ok := fields[name]
		if !ok || v == "" {
			v = defaults[name]
		}
		pairs = append(pairs, "{"+name+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
