package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
)

func notifyAuthor(kind domain.NotificationKind, a *domain.Article, what string) domain.Notification {
	return domain.NewNotification(kind, a.AuthorID, a.ID,
		fmt.Sprintf("Your article %q %s", a.Title, what),
		fmt.Sprintf("Article %q (%s) %s. Current status: %s.", a.Title, a.ID, what, a.Status))
}

func notifyUser(kind domain.NotificationKind, to uuid.UUID, a *domain.Article, what string) domain.Notification {
	return domain.NewNotification(kind, to, a.ID,
		fmt.Sprintf("Article %q %s", a.Title, what),
		fmt.Sprintf("Article %q (%s) %s. Current status: %s.", a.Title, a.ID, what, a.Status))
}

func notifyAssignees(kind domain.NotificationKind, a *domain.Article, active []domain.Assignment, what string) []domain.Notification {
	var ns []domain.Notification
	for _, as := range active {
		if as.Active() {
			ns = append(ns, notifyUser(kind, as.AssigneeID, a, what))
		}
	}
	return ns
}

// notifyManagers targets every active content manager. A directory failure
// only costs the notifications.
func (e *Engine) notifyManagers(kind domain.NotificationKind, what string) func(context.Context, *domain.Article, []domain.Assignment) []domain.Notification {
	return func(ctx context.Context, a *domain.Article, _ []domain.Assignment) []domain.Notification {
		managers, err := e.store.UsersByRole(ctx, domain.RoleContentManager)
		if err != nil {
			slog.Warn("Failed to look up content managers", "article", a.ID, "error", err)
			return nil
		}
		ns := make([]domain.Notification, 0, len(managers))
		for _, m := range managers {
			ns = append(ns, notifyUser(kind, m.ID, a, what))
		}
		return ns
	}
}
