package service

import (
	"database/sql"
	"testing"

	"github.com/smallbiznis/queueline/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestStatsReadsUseRepeatableReadSnapshot(t *testing.T) {
	pg := &Service{db: &gorm.DB{Config: &gorm.Config{Dialector: postgres.New(postgres.Config{})}}}

	opts := pg.snapshotTxOptions()
	require.Len(t, opts, 1)
	assert.Equal(t, sql.LevelRepeatableRead, opts[0].Isolation)
	assert.True(t, opts[0].ReadOnly)

	conn, err := db.NewTest()
	require.NoError(t, err)
	lite := &Service{db: conn}
	assert.Empty(t, lite.snapshotTxOptions())
}
