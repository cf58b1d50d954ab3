package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/strata/dialect"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		dialect string
		ident   string
		want    string
	}{
		{dialect.MySQL, "Age", "`Age`"},
		{dialect.MySQL, "we`ird", "`we``ird`"},
		{dialect.Postgres, "Age", `"Age"`},
		{dialect.SQLite, `a"b`, `"a""b"`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.ident, func(t *testing.T) {
			assert.Equal(t, tt.want, dialect.Quote(tt.dialect, tt.ident))
		})
	}
}

func TestBinder(t *testing.T) {
	var b dialect.Binder
	assert.Empty(t, b.Params())
	assert.Equal(t, "@p1", b.Next())
	assert.Equal(t, "@p1", b.Bind(18))
	assert.Equal(t, "@p2", b.Bind("Bob"))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, dialect.Params{"p1": 18, "p2": "Bob"}, b.Params())
	assert.Equal(t, "{p1=18, p2=Bob}", b.Params().String())

	b2 := dialect.NewBinder(5)
	assert.Equal(t, "@p6", b2.Bind(nil))
}

func TestValid(t *testing.T) {
	assert.True(t, dialect.Valid(dialect.MySQL))
	assert.True(t, dialect.Valid(dialect.Postgres))
	assert.True(t, dialect.Valid(dialect.SQLite))
	assert.False(t, dialect.Valid("oracle"))
}
