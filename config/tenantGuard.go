package config

import (
	"context"
	"reflect"
	"strings"

	"github.com/mmdatafocus/leads_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const tenantColumn = "business_id"

// TenantGuardPlugin keeps every business inside its own rows. For models with a
// business_id column it adds the caller's business to reads, updates and deletes,
// and stamps it on created rows that do not carry one.
//
// Raw SQL is not covered; those statements carry business_id themselves.
// cmd tools and cross-tenant jobs opt out with WithoutTenantScope.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("tenant_guard:query", scopeToTenant); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenant_guard:row", scopeToTenant); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant_guard:update", scopeToTenant); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("tenant_guard:delete", scopeToTenant); err != nil {
		return err
	}
	return cb.Create().Before("gorm:create").Register("tenant_guard:create", stampTenant)
}

// WithoutTenantScope marks ctx so the guard leaves statements alone.
func WithoutTenantScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, appctx.ContextKeySkipTenantScope, true)
}

// tenantOf returns the business the statement runs for, or "" when it is unscoped.
func tenantOf(db *gorm.DB) (string, *schema.Field) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil || db.Statement.Schema == nil {
		return "", nil
	}
	ctx := db.Statement.Context
	if skip, _ := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); skip {
		return "", nil
	}
	businessId, _ := appctx.GetString(ctx, appctx.ContextKeyBusinessId)
	if businessId == "" {
		return "", nil
	}
	field := db.Statement.Schema.LookUpField(tenantColumn)
	if field == nil {
		return "", nil
	}
	return businessId, field
}

func scopeToTenant(db *gorm.DB) {
	businessId, field := tenantOf(db)
	if field == nil {
		return
	}
	if where, ok := db.Statement.Clauses["WHERE"].Expression.(clause.Where); ok && mentionsTenant(where.Exprs) {
		return
	}
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: db.Statement.Table, Name: tenantColumn}, Value: businessId},
	}})
}

func stampTenant(db *gorm.DB) {
	businessId, field := tenantOf(db)
	if field == nil {
		return
	}
	ctx := db.Statement.Context
	stamp := func(row reflect.Value) {
		if _, zero := field.ValueOf(ctx, row); zero {
			_ = field.Set(ctx, row, businessId)
		}
	}
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			stamp(rv.Index(i))
		}
	case reflect.Struct:
		stamp(rv)
	}
}

func mentionsTenant(exprs []clause.Expression) bool {
	for _, e := range exprs {
		var col interface{}
		switch v := e.(type) {
		case clause.Eq:
			col = v.Column
		case clause.Neq:
			col = v.Column
		case clause.IN:
			col = v.Column
		case clause.AndConditions:
			if mentionsTenant(v.Exprs) {
				return true
			}
		case clause.OrConditions:
			if mentionsTenant(v.Exprs) {
				return true
			}
		case clause.Expr:
			if strings.Contains(strings.ToLower(v.SQL), tenantColumn) {
				return true
			}
		}
		switch c := col.(type) {
		case string:
			if strings.EqualFold(c, tenantColumn) {
				return true
			}
		case clause.Column:
			if strings.EqualFold(c.Name, tenantColumn) {
				return true
			}
		}
	}
	return false
}
