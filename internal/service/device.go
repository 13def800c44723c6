package service

import (
	"context"
	"fmt"
	"strings"

	ua "github.com/mssola/user_agent"
)

type userAgentKey struct{}

// WithUserAgent attaches the caller's User-Agent so audit entries can
// record the device an action came from.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

func userAgentFrom(ctx context.Context) string {
	s, _ := ctx.Value(userAgentKey{}).(string)
	return s
}

// DescribeDevice condenses a User-Agent into e.g. "Chrome 120.0 on Android 14 (mobile)".
func DescribeDevice(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	parser := ua.New(userAgent)
	if parser.Bot() {
		name, _ := parser.Browser()
		return "bot: " + name
	}

	name, version := parser.Browser()
	if i := strings.Index(version, "."); i >= 0 {
		if j := strings.Index(version[i+1:], "."); j >= 0 {
			version = version[:i+1+j]
		}
	}
	os := parser.OS()
	if os == "" {
		os = parser.Platform()
	}
	kind := "desktop"
	if parser.Mobile() {
		kind = "mobile"
	}

	out := strings.TrimSpace(name + " " + version)
	if os != "" {
		out = fmt.Sprintf("%s on %s", out, os)
	}
	out = fmt.Sprintf("%s (%s)", out, kind)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
