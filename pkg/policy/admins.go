package policy

import "context"

// StaticAdmins is an AdminChecker backed by a fixed chat → admins table,
// typically loaded from configuration.
type StaticAdmins map[int64][]int64

// IsAdmin implements ports.AdminChecker.
func (s StaticAdmins) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	for _, id := range s[chatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}
