package lifecycle

import "github.com/jwalitptl/clinic-flow/internal/model"

type edge struct {
	from, to model.VisitStatus
}

// transitions lists every permitted edge and the roles allowed to take it.
// Edges into Missed are handled by missedRoles since every open status may
// be marked missed.
var transitions = map[edge][]model.Role{
	{model.StatusWaitingForExam, model.StatusExaming}:          {model.RoleDoctor},
	{model.StatusExaming, model.StatusWaitingForService}:       {model.RoleDoctor},
	{model.StatusExaming, model.StatusReadyForPayment}:         {model.RoleDoctor},
	{model.StatusWaitingForService, model.StatusReturnToDoctor}: {model.RoleTechnician},
	{model.StatusReturnToDoctor, model.StatusExaming}:          {model.RoleDoctor},
	{model.StatusReturnToDoctor, model.StatusReadyForPayment}:  {model.RoleDoctor},
	{model.StatusReadyForPayment, model.StatusDone}:            {model.RoleReceptionist},
	{model.StatusMissed, model.StatusWaitingForExam}:           {model.RoleReceptionist},
}

var missedRoles = []model.Role{model.RoleReceptionist, model.RoleDoctor}

// AllowedRoles returns the roles that may move a visit from one status to
// another. ok is false when the edge does not exist.
func AllowedRoles(from, to model.VisitStatus) (roles []model.Role, ok bool) {
	if to == model.StatusMissed {
		if !from.IsOpen() {
			return nil, false
		}
		return missedRoles, true
	}
	roles, ok = transitions[edge{from, to}]
	return roles, ok
}

// Next lists the statuses reachable from status by role
func Next(from model.VisitStatus, role model.Role) []model.VisitStatus {
	var out []model.VisitStatus
	for _, to := range model.AllStatuses {
		roles, ok := AllowedRoles(from, to)
		if ok && hasRole(roles, role) {
			out = append(out, to)
		}
	}
	return out
}

func hasRole(roles []model.Role, role model.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
