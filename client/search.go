package client

import (
	"strings"

	"pingme/internal/app/dto"
)

// FilterUsers narrows a client-held user list by substring match:
// case-insensitive on username, plain substring on the mobile handle. An
// empty query returns nothing, which closes the search results.
func FilterUsers(users []dto.UserRef, query string) []dto.UserRef {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	lowered := strings.ToLower(query)
	matches := make([]dto.UserRef, 0)
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), lowered) || strings.Contains(u.Mobile, query) {
			matches = append(matches, u)
		}
	}
	return matches
}
