package services

import "github.com/confideapp/confide/internal/server/models"

// HasRole reports whether the principal carries any of the given roles.
func HasRole(p *models.Principal, roles ...string) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IsOwnerOrRole reports whether the principal owns the resource or carries
// any of the given roles. Route handlers use it for per-resource checks.
func IsOwnerOrRole(p *models.Principal, ownerID string, roles ...string) bool {
	if p == nil {
		return false
	}
	if ownerID != "" && p.ID == ownerID {
		return true
	}
	return HasRole(p, roles...)
}
