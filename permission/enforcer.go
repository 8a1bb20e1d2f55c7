// Package permission decides who may run protected commands, using casbin
// policies of the form (role, tenant, module:command).
package permission

import (
	"context"
	"fmt"
	"strings"

	casbinlib "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
)

const modelText = `
[request_definition]
r = sub, dom, obj

[policy_definition]
p = sub, dom, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (r.sub == p.sub || p.sub == "*") && (r.dom == p.dom || p.dom == "*") && keyMatch(r.obj, p.obj)
`

// Wildcard matches any role or tenant in a policy.
const Wildcard = "*"

// Well-known platform permission names used by the default policy.
const (
	RoleAdministrator = "ADMINISTRATOR"
	RoleManageGuild   = "MANAGE_GUILD"
)

// DefaultPolicies lets administrators run everything and guild managers
// run the core configuration commands.
var DefaultPolicies = [][]string{
	{RoleAdministrator, Wildcard, "*"},
	{RoleManageGuild, Wildcard, "core:setprefix"},
	{RoleManageGuild, Wildcard, "core:enable"},
	{RoleManageGuild, Wildcard, "core:disable"},
}

// Enforcer evaluates command permissions.
type Enforcer struct {
	enforcer *casbinlib.SyncedEnforcer
	logger   *zap.Logger
}

// NewEnforcer creates an enforcer. With a policy file path the policies are
// loaded from that CSV file; otherwise DefaultPolicies apply.
func NewEnforcer(policyPath string, logger *zap.Logger) (*Enforcer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	var e *casbinlib.SyncedEnforcer
	if policyPath != "" {
		e, err = casbinlib.NewSyncedEnforcer(m, fileadapter.NewAdapter(policyPath))
	} else {
		e, err = casbinlib.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	enf := &Enforcer{enforcer: e, logger: logger}
	if policyPath == "" {
		if err := enf.Allow(DefaultPolicies...); err != nil {
			return nil, err
		}
	}
	return enf, nil
}

// Allow adds (role, tenant, object) policies. Objects are lower-cased.
func (e *Enforcer) Allow(policies ...[]string) error {
	rules := make([][]string, 0, len(policies))
	for _, p := range policies {
		if len(p) != 3 {
			return fmt.Errorf("policy %v must have role, tenant and object", p)
		}
		rules = append(rules, []string{p[0], p[1], strings.ToLower(p[2])})
	}
	if _, err := e.enforcer.AddPolicies(rules); err != nil {
		return fmt.Errorf("failed to add policies: %w", err)
	}
	return nil
}

// Policies returns every stored policy.
func (e *Enforcer) Policies() [][]string {
	return e.enforcer.GetPolicy()
}

// Allowed reports whether any of roles may run moduleID:command in tenantID.
func (e *Enforcer) Allowed(roles []string, tenantID, moduleID, command string) (bool, error) {
	obj := strings.ToLower(moduleID + ":" + command)
	for _, role := range roles {
		ok, err := e.enforcer.Enforce(role, tenantID, obj)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Require returns a command permission predicate backed by the policies.
// Direct messages never satisfy it.
func (e *Enforcer) Require() extension.PermissionFunc {
	return func(_ context.Context, inv *extension.Invocation) (bool, error) {
		if inv.Message == nil || inv.Message.Direct() || inv.Command == nil {
			return false, nil
		}
		ok, err := e.Allowed(inv.Message.Roles, inv.Message.TenantID, inv.Command.ModuleID, inv.Command.Name)
		if err != nil {
			return false, err
		}
		if !ok {
			e.logger.Debug("permission denied",
				zap.String("author", inv.Message.AuthorTag),
				zap.String("command", inv.Command.QualifiedName()),
				zap.String("tenant", inv.Message.TenantID))
		}
		return ok, nil
	}
}
