package readiness

import (
	"github.com/sells-group/funnel-readiness/internal/model"
)

func checklist(issues []model.ReadinessIssue) []model.ChecklistItem {
	items := make([]model.ChecklistItem, 0, len(issues))
	for _, is := range issues {
		items = append(items, model.ChecklistItem{
			ID:        is.ID,
			Status:    checklistStatus(is.Severity),
			Label:     is.Title,
			FixAction: is.FixAction,
		})
	}
	return items
}

func checklistStatus(s model.Severity) model.ChecklistStatus {
	switch s {
	case model.SeverityBlocker:
		return model.ChecklistFail
	case model.SeverityWarning:
		return model.ChecklistWarn
	default:
		return model.ChecklistOK
	}
}
