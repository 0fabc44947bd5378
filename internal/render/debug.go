package render

import (
	"fmt"
	"strings"

	"linkboard/internal/links"
)

// FormatDebugReport renders a debug report as plain text.
func FormatDebugReport(r links.DebugReport) string {
	var sb strings.Builder
	sb.WriteString("현재 상태\n")
	fmt.Fprintf(&sb, "- managementSiteId: %s\n", orNone(r.ManagementSiteID))
	fmt.Fprintf(&sb, "- currentPlatform: %s\n", orNone(r.CurrentPlatform))
	fmt.Fprintf(&sb, "- currentUser: %s\n", orNone(r.CurrentUser))
	if r.Filters.IsNeutral() {
		sb.WriteString("- currentFilters: 전체 (all)\n")
	} else {
		fmt.Fprintf(&sb, "- currentFilters: platform=%s user=%s like=%s guarantee=%s\n",
			r.Filters.Platform, r.Filters.User, r.Filters.Like, r.Filters.Guarantee)
	}
	fmt.Fprintf(&sb, "- 화면에 표시된 링크 수: %d\n", r.RenderedCount)
	if r.APIError != nil {
		fmt.Fprintf(&sb, "- API 조회 실패: %v", r.APIError)
		return sb.String()
	}
	fmt.Fprintf(&sb, "- 실제 API 응답 링크 수: %d", r.APICount)
	for _, l := range r.Recent {
		fmt.Fprintf(&sb, "\n  · %d %s", l.ID, l.URL)
	}
	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "(없음)"
	}
	return s
}
