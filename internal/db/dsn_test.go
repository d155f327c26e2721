package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:site.db?"+sqlitePragmas, sqliteDSN("site.db"))
	assert.Equal(t, "file:site.db?mode=rwc&"+sqlitePragmas, sqliteDSN("file:site.db?mode=rwc"))

	custom := "file:site.db?_pragma=foreign_keys(1)"
	assert.Equal(t, custom, sqliteDSN(custom))
}
