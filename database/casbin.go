package database

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Casbin builds the RBAC enforcer guarding /v1/admin and grants the admin
// role to adminIDs.
func Casbin(db *gorm.DB, adminIDs []string) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("initialize casbin adapter: %w", err)
	}

	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policy: %w", err)
	}

	// Default policy
	if hasPolicy, _ := e.HasPolicy("admin", "/v1/admin/*", "(GET)|(POST)"); !hasPolicy {
		if _, err := e.AddPolicy("admin", "/v1/admin/*", "(GET)|(POST)"); err != nil {
			return nil, fmt.Errorf("add admin policy: %w", err)
		}
	}
	for _, id := range adminIDs {
		if _, err := e.AddGroupingPolicy(id, "admin"); err != nil {
			return nil, fmt.Errorf("grant admin to %s: %w", id, err)
		}
	}
	return e, nil
}
