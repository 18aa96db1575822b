package services

import (
	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/types"
)

// Access-control policy. Every mutation boundary applies these rules; they
// are collected here so the rule set stays consistent across services.

func requireAdmin(p types.Principal) error {
	if !p.IsAdmin() {
		return apperr.Forbidden("Admin access required")
	}
	return nil
}

// requireProjectLead admits only the project's assigned lead. Admins are
// deliberately excluded: module lifecycle belongs to the lead.
func requireProjectLead(p types.Principal, project types.Project) error {
	if p.IsAdmin() || p.ID != project.AssignedLead || p.Role != types.RoleLead {
		return apperr.Forbidden("Only the assigned project lead can perform this action")
	}
	return nil
}

// canViewProject admits admins, the assigned lead, and assigned members.
func canViewProject(p types.Principal, project types.Project) error {
	if projectVisible(p, project) {
		return nil
	}
	return apperr.Forbidden("Not authorized to view this project")
}

// canViewModules is the same visibility rule with the module-listing
// message clients depend on.
func canViewModules(p types.Principal, project types.Project) error {
	if projectVisible(p, project) {
		return nil
	}
	return apperr.Forbidden("Not authorized to view these modules")
}

func projectVisible(p types.Principal, project types.Project) bool {
	if p.IsAdmin() {
		return true
	}
	if p.Role == types.RoleLead {
		return project.AssignedLead == p.ID
	}
	for _, id := range project.AssignedUsers {
		if id == p.ID {
			return true
		}
	}
	return false
}

// canTouchModule admits the project's lead and users assigned to the module.
func canTouchModule(p types.Principal, project types.Project, assignee bool) error {
	if !p.IsAdmin() && p.ID == project.AssignedLead && p.Role == types.RoleLead {
		return nil
	}
	if assignee {
		return nil
	}
	return apperr.Forbidden("Not authorized to update this module")
}

// validateAssignees enforces the explicit-assignment rule set: every
// candidate must exist, hold the user role, be approved, active, and in the
// project's department. Any invalid candidate rejects the whole batch.
func validateAssignees(project types.Project, candidates []types.User, requested int) error {
	if requested == 0 {
		return apperr.Validation("Assignment list cannot be empty")
	}
	if len(candidates) != requested {
		return apperr.Validation("One or more assigned users do not exist")
	}
	for _, u := range candidates {
		if u.Role != types.RoleUser || !u.Approved || !u.IsActive || u.Department != project.Department {
			return apperr.Validation("All assigned users must be approved, active members of the project's department")
		}
	}
	return nil
}
