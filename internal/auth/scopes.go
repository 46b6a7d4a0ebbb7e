package auth

// Known OAuth scopes used by the stepquest API.
const (
	ScopeStepsRead   = "steps:read"
	ScopeStepsWrite  = "steps:write"
	ScopeCombatWrite = "combat:write"
	ScopeSocialWrite = "social:write"
)
