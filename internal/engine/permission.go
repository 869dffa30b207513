// ABOUTME: Creator-based permission gate consulted before offering update or delete
// ABOUTME: Pure function of the acting principal id and the record

package engine

import "github.com/2389/tasksync/internal/model"

// CanModify reports whether principalID may update or delete t. An empty
// principal (signed out) may modify nothing.
func CanModify(principalID string, t model.Task) bool {
	return principalID != "" && principalID == t.CreatorID
}
