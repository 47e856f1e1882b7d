package config

import (
	"context"
	"testing"

	"github.com/mmdatafocus/leads_backend/appctx"
	"github.com/stretchr/testify/require"
)

type guardedRow struct {
	ID         int    `gorm:"primary_key"`
	BusinessId string `gorm:"size:64;index"`
	Name       string
}

func tenantCtx(businessId string) context.Context {
	return context.WithValue(context.Background(), appctx.ContextKeyBusinessId, businessId)
}

func TestTenantGuardScopesStatements(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&guardedRow{}))

	// business_id is stamped from the context when the row has none
	require.NoError(t, db.WithContext(tenantCtx("a")).Create(&guardedRow{Name: "a1"}).Error)
	require.NoError(t, db.WithContext(tenantCtx("a")).Create([]*guardedRow{{Name: "a2"}, {Name: "a3"}}).Error)
	require.NoError(t, db.WithContext(tenantCtx("b")).Create(&guardedRow{Name: "b1"}).Error)

	var rows []guardedRow
	require.NoError(t, db.WithContext(tenantCtx("a")).Order("id").Find(&rows).Error)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.Equal(t, "a", r.BusinessId)
	}

	// b cannot touch a's rows
	res := db.WithContext(tenantCtx("b")).Model(&guardedRow{}).Where("name = ?", "a1").Update("name", "stolen")
	require.NoError(t, res.Error)
	require.Zero(t, res.RowsAffected)
	res = db.WithContext(tenantCtx("b")).Where("name LIKE ?", "a%").Delete(&guardedRow{})
	require.NoError(t, res.Error)
	require.Zero(t, res.RowsAffected)

	var count int64
	require.NoError(t, db.WithContext(WithoutTenantScope(tenantCtx("b"))).Model(&guardedRow{}).Count(&count).Error)
	require.Equal(t, int64(4), count)
	require.NoError(t, db.WithContext(context.Background()).Model(&guardedRow{}).Count(&count).Error)
	require.Equal(t, int64(4), count)
}
