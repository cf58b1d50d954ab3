package schema_test

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

type Class int

type Vec3 struct {
	X, Y, Z float64
}

type Item struct {
	Id      int64 `orm:"pk;autoincrement"`
	OwnerId int64
	Name    string
}

type Guild struct {
	GuildId int64
	Name    string `orm:"size=64"`
}

type Character struct {
	Id        int64 `orm:"pk;autoincrement"`
	Name      string `orm:"size=32"`
	Online    bool
	Class     Class
	Position  Vec3
	Skills    [4]int
	StatType  [2]int `orm:"group=Stat"`
	StatValue [2]int `orm:"group=Stat"`
	Items     []*Item `orm:"relation=OwnerId"`
	Guild     *Guild  `orm:"relation"`
	scratch   int
}

type Audit struct {
	Created time.Time
	Updated *time.Time
}

type Account struct {
	Audit
	ID    uuid.UUID `orm:"column=account_id;pk"`
	Email string    `orm:"column=email;nullable;default=''"`
	Notes string    `orm:"-"`
}

type Species struct {
	Code string `orm:"pk"`
}

func (Species) TableName() string { return "species_catalog" }

func TestRegistryDescriptor(t *testing.T) {
	reg := schema.NewRegistry()
	d, err := reg.Descriptor(&Character{})
	require.NoError(t, err)

	assert.Equal(t, "Character", d.Name)
	assert.Equal(t, "Characters", d.Table)
	assert.Equal(t, []string{
		"Id", "Name", "Online", "Class",
		"PositionX", "PositionY", "PositionZ",
		"Skills1", "Skills2", "Skills3", "Skills4",
		"StatType1", "StatValue1", "StatType2", "StatValue2",
	}, d.Columns())
	assert.Equal(t, 15, d.ColumnCount())
	assert.True(t, d.HasGroupedArray())

	require.Len(t, d.PrimaryKeys, 1)
	assert.Equal(t, "Id", d.PrimaryKeys[0].Name)
	assert.True(t, d.PrimaryKeys[0].AutoIncrement)

	stat := d.Field("Stat")
	require.NotNil(t, stat)
	assert.Equal(t, schema.KindGroupedArray, stat.Kind)
	assert.Equal(t, 2, stat.GroupSize)
	assert.Equal(t, 2, stat.Len)

	require.Len(t, d.Relations, 2)
	assert.Equal(t, schema.KindRelationMany, d.Relations[0].Kind)
	assert.Equal(t, "OwnerId", d.Relations[0].Relation)
	assert.Equal(t, reflect.TypeOf(Item{}), d.Relations[0].Target)
	assert.Equal(t, schema.KindRelationSingle, d.Relations[1].Kind)
	assert.Empty(t, d.Relations[1].Relation)

	assert.Nil(t, d.Field("scratch"))
	assert.Equal(t, schema.KindValueObject, d.Field("Position").Kind)
	assert.Equal(t, schema.KindArray, d.Field("Skills").Kind)
	assert.Equal(t, 32, d.Field("Name").Size)
}

func TestRegistryCachesDescriptor(t *testing.T) {
	reg := schema.NewRegistry()
	var (
		wg    sync.WaitGroup
		descs = make([]*schema.Descriptor, 16)
	)
	for i := range descs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			descs[i] = reg.MustDescriptor(Character{})
		}()
	}
	wg.Wait()
	for _, d := range descs {
		assert.Same(t, descs[0], d)
	}
	d, err := reg.Descriptor([]*Character{})
	require.NoError(t, err)
	assert.Same(t, descs[0], d)
}

func TestRegistryTableName(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(Item{}, schema.Table("inventory")))
	require.NoError(t, reg.Register(Guild{}, schema.NoPluralize()))

	assert.Equal(t, "inventory", reg.MustDescriptor(Item{}).Table)
	assert.Equal(t, "Guild", reg.MustDescriptor(Guild{}).Table)
	assert.Equal(t, "species_catalog", reg.MustDescriptor(Species{}).Table)

	err := reg.Register(Item{})
	require.Error(t, err)
}

func TestRegistryPrimaryKeyConvention(t *testing.T) {
	reg := schema.NewRegistry()
	d := reg.MustDescriptor(Guild{})
	require.Len(t, d.PrimaryKeys, 1)
	assert.Equal(t, "GuildId", d.PrimaryKeys[0].Name)

	type Orphan struct{ Value int }
	assert.Empty(t, reg.MustDescriptor(Orphan{}).PrimaryKeys)
}

func TestRegistryEmbeddedAndOverrides(t *testing.T) {
	reg := schema.NewRegistry()
	d := reg.MustDescriptor(Account{})
	assert.Equal(t, []string{"Created", "Updated", "account_id", "email"}, d.Columns())
	assert.True(t, d.Field("Updated").Nullable)
	email := d.Field("Email")
	assert.True(t, email.Nullable)
	assert.True(t, email.HasDefault)
	assert.Equal(t, "''", email.Default)
	assert.Nil(t, d.Field("Notes"))
	require.Len(t, d.PrimaryKeys, 1)
	assert.Equal(t, "account_id", d.PrimaryKeys[0].Column)
}

func TestRegistrySnakeCase(t *testing.T) {
	reg := schema.NewRegistry(schema.WithNaming(schema.SnakeCase))
	d := reg.MustDescriptor(Item{})
	assert.Equal(t, []string{"id", "owner_id", "name"}, d.Columns())
}

func TestRegistryValidation(t *testing.T) {
	tests := []struct {
		name   string
		entity any
	}{
		{
			name: "unequal group lengths",
			entity: struct {
				A [2]int `orm:"group=G"`
				B [3]int `orm:"group=G"`
			}{},
		},
		{
			name: "group on scalar",
			entity: struct {
				A int `orm:"group=G"`
			}{},
		},
		{
			name: "split group",
			entity: struct {
				A [2]int `orm:"group=G"`
				X int
				B [2]int `orm:"group=G"`
			}{},
		},
		{
			name: "unknown tag option",
			entity: struct {
				A int `orm:"primary"`
			}{},
		},
		{
			name: "bad relation type",
			entity: struct {
				A int `orm:"relation"`
			}{},
		},
		{
			name: "duplicate column",
			entity: struct {
				A int
				B int `orm:"column=A"`
			}{},
		},
		{
			name: "array primary key",
			entity: struct {
				A [2]int `orm:"pk"`
			}{},
		},
		{
			name: "value object primary key",
			entity: struct {
				P struct{ X, Y int } `orm:"pk"`
			}{},
		},
		{
			name: "unsupported member",
			entity: struct {
				M map[string]int
			}{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.NewRegistry().Descriptor(tt.entity)
			require.Error(t, err)
			assert.True(t, strata.IsValidationError(err))
		})
	}
}

func TestDescriptorLookup(t *testing.T) {
	d := schema.NewRegistry().MustDescriptor(Character{})

	f, col, err := d.Lookup("Name")
	require.NoError(t, err)
	assert.Equal(t, "Name", f.Name)
	assert.Equal(t, "Name", col)

	f, col, err = d.Lookup("Position.Y")
	require.NoError(t, err)
	assert.Equal(t, "Y", f.Name)
	assert.Equal(t, "PositionY", col)

	_, col, err = d.Lookup("PositionZ")
	require.NoError(t, err)
	assert.Equal(t, "PositionZ", col)

	_, _, err = d.Lookup("Skills")
	var unknown *strata.UnknownMemberError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Skills", unknown.Member)
}

func TestDescriptorProject(t *testing.T) {
	d := schema.NewRegistry().MustDescriptor(Character{})

	p, err := d.Project("Position", "Id")
	require.NoError(t, err)
	assert.Equal(t, []string{"PositionX", "PositionY", "PositionZ", "Id"}, p.Columns())
	assert.Len(t, p.PrimaryKeys, 1)
	assert.Empty(t, p.Relations)

	same, err := d.Project()
	require.NoError(t, err)
	assert.Same(t, d, same)

	_, err = d.Project("Id", "Id")
	require.Error(t, err)
	_, err = d.Project("Items")
	require.Error(t, err)
}
