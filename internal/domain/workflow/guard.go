package workflow

// GuardRequest is the input to the guard evaluator
type GuardRequest struct {
	From State
	To   State
	Role Role
	// GuardResult is the caller-supplied outcome of the named business guard; nil means absent
	GuardResult *bool
}

// Decision is the outcome of evaluating a guard request
type Decision struct {
	Allowed bool
	Reason  ReasonCode
	// Rule is the matched rule when the decision is allowed or fails on its guard
	Rule *Rule
}

func reject(reason ReasonCode, rule *Rule) Decision {
	return Decision{Allowed: false, Reason: reason, Rule: rule}
}

// Evaluate decides whether a transition is structurally legal and authorized.
// It reads only the table and the request.
func Evaluate(table *Table, req GuardRequest) Decision {
	if table == nil {
		return reject(ReasonNoSuchTransition, nil)
	}

	candidates := table.Lookup(req.From, req.To)
	if len(candidates) == 0 {
		return reject(ReasonNoSuchTransition, nil)
	}

	var matched []Rule
	for _, rule := range candidates {
		if rule.AllowsRole(req.Role) {
			matched = append(matched, rule)
		}
	}

	switch len(matched) {
	case 0:
		return reject(ReasonRoleNotAuthorized, nil)
	case 1:
	default:
		return reject(ReasonAmbiguousTransition, nil)
	}

	rule := matched[0]
	if rule.HasGuard() && (req.GuardResult == nil || !*req.GuardResult) {
		return reject(ReasonGuardNotSatisfied, &rule)
	}

	return Decision{Allowed: true, Reason: ReasonNone, Rule: &rule}
}

// Bool returns a pointer to b, for building guard results
func Bool(b bool) *bool {
	return &b
}
