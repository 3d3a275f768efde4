package auth

import (
	"fmt"
	"strings"
)

// Outcome is the result of a role check
type Outcome int

const (
	Authorized Outcome = iota
	Unauthenticated
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Authorized:
		return "authorized"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is the gate's verdict together with the client-facing message
type Decision struct {
	Outcome   Outcome
	Principal *Principal
	Message   string
}

// UnauthenticatedMessage is returned when no principal was resolved
const UnauthenticatedMessage = "Valid authentication token required"

// Authorize decides whether principal may proceed given the allowed roles.
// A nil principal is Unauthenticated. An empty role set forbids everyone.
func Authorize(principal *Principal, allowedRoles []string) Decision {
	if principal == nil {
		return Decision{Outcome: Unauthenticated, Message: UnauthenticatedMessage}
	}
	if principal.HasRole(allowedRoles...) {
		return Decision{Outcome: Authorized, Principal: principal}
	}
	return Decision{
		Outcome:   Forbidden,
		Principal: principal,
		Message:   ForbiddenMessage(allowedRoles),
	}
}

// ForbiddenMessage enumerates the roles an endpoint accepts
func ForbiddenMessage(allowedRoles []string) string {
	return "This endpoint requires one of the following roles: " + strings.Join(allowedRoles, ", ")
}
