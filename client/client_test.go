package client_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata"
	"github.com/syssam/strata/client"
	"github.com/syssam/strata/config"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlbuild"
	"github.com/syssam/strata/internal/testutil"
	"github.com/syssam/strata/predicate"
	"github.com/syssam/strata/schema"
)

type Vec2 struct {
	X, Y float64
}

type Hero struct {
	Id     int64  `orm:"pk;autoincrement"`
	Name   string `orm:"size=32"`
	Age    int
	Active bool
	Skills [2]int
	Pos    Vec2
	Items  []*Item `orm:"relation=OwnerId"`
}

type Item struct {
	Id      int64 `orm:"pk;autoincrement"`
	OwnerId int64
	Name    string
}

type Tag struct {
	Code  string `orm:"pk;size=16"`
	Label string
}

func openDriver(t *testing.T) *sql.Driver {
	t.Helper()
	drv, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	return drv
}

func newClient(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	opts = append([]client.Option{client.Logger(testutil.NewTestLogger(t))}, opts...)
	c, err := client.New(openDriver(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.CreateTables(ctx, Hero{}, Item{}, Tag{}))
	return c
}

func seed(t *testing.T, c *client.Client) {
	t.Helper()
	ctx := context.Background()
	n, err := c.InsertMany(ctx, []*Hero{
		{Name: "Bob", Age: 30, Active: true, Skills: [2]int{1, 2}, Pos: Vec2{X: 1.5, Y: -2}},
		{Name: "Ann", Age: 17, Skills: [2]int{3, 4}},
		{Name: "Cid", Age: 45, Active: true},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	_, err = c.InsertMany(ctx, []Item{
		{OwnerId: 1, Name: "Sword"},
		{OwnerId: 1, Name: "Shield"},
		{OwnerId: 3, Name: "Bow"},
	})
	require.NoError(t, err)
}

func TestNew(t *testing.T) {
	_, err := client.New(nil)
	require.Error(t, err)

	c, err := client.New(openDriver(t))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, dialect.SQLite, c.Dialect())
	assert.NotNil(t, c.Registry())
	assert.NotNil(t, c.Builder())
	assert.Nil(t, c.Stats())
}

func TestClientCRUD(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	seed(t, c)

	t.Run("All", func(t *testing.T) {
		heroes, err := client.All[Hero](ctx, c)
		require.NoError(t, err)
		require.Len(t, heroes, 3)
		bob := heroes[0]
		assert.Equal(t, int64(1), bob.Id)
		assert.Equal(t, "Bob", bob.Name)
		assert.True(t, bob.Active)
		assert.Equal(t, [2]int{1, 2}, bob.Skills)
		assert.Equal(t, Vec2{X: 1.5, Y: -2}, bob.Pos)
		assert.Nil(t, bob.Items, "relations are not loaded by default")
	})

	t.Run("Query", func(t *testing.T) {
		adults, err := client.Query[Hero](ctx, c, predicate.F("Age").GT(18))
		require.NoError(t, err)
		require.Len(t, adults, 2)
		assert.Equal(t, "Bob", adults[0].Name)
		assert.Equal(t, "Cid", adults[1].Name)

		active, err := client.Query[Hero](ctx, c, predicate.And(predicate.Bool("Active"), predicate.F("Age").LT(40)))
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "Bob", active[0].Name)
	})

	t.Run("Projection", func(t *testing.T) {
		heroes, err := client.Query[Hero](ctx, c, predicate.F("Name").EQ("Ann"), "Name", "Skills")
		require.NoError(t, err)
		require.Len(t, heroes, 1)
		assert.Equal(t, "Ann", heroes[0].Name)
		assert.Equal(t, [2]int{3, 4}, heroes[0].Skills)
		assert.Zero(t, heroes[0].Age)
	})

	t.Run("Count", func(t *testing.T) {
		n, err := client.Count[Hero](ctx, c, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		n, err = client.Count[Item](ctx, c, predicate.F("OwnerId").EQ(1))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("First", func(t *testing.T) {
		h, err := client.First[Hero](ctx, c, predicate.F("Age").GT(18))
		require.NoError(t, err)
		assert.Equal(t, "Bob", h.Name)

		_, err = client.First[Hero](ctx, c, predicate.F("Age").GT(100))
		require.Error(t, err)
		assert.True(t, strata.IsNotFound(err))
	})

	t.Run("Only", func(t *testing.T) {
		h, err := client.Only[Hero](ctx, c, predicate.F("Name").EQ("Cid"))
		require.NoError(t, err)
		assert.Equal(t, 45, h.Age)

		_, err = client.Only[Hero](ctx, c, predicate.F("Age").GT(18))
		require.Error(t, err)
		assert.True(t, strata.IsNotSingular(err))

		_, err = client.Only[Hero](ctx, c, predicate.F("Name").EQ("Zed"))
		assert.True(t, strata.IsNotFound(err))
	})

	t.Run("UnknownMember", func(t *testing.T) {
		_, err := client.Query[Hero](ctx, c, predicate.F("Level").GT(1))
		require.Error(t, err)
		assert.True(t, strata.IsQueryError(err))
		assert.True(t, errors.Is(err, strata.ErrUnknownMember))
	})
}

func TestClientMutations(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	seed(t, c)

	h, err := client.Only[Hero](ctx, c, predicate.F("Name").EQ("Ann"))
	require.NoError(t, err)
	h.Age = 18
	h.Skills[1] = 9
	n, err := c.Update(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	h, err = client.Only[Hero](ctx, c, predicate.F("Name").EQ("Ann"))
	require.NoError(t, err)
	assert.Equal(t, 18, h.Age)
	assert.Equal(t, [2]int{3, 9}, h.Skills)

	n, err = client.UpdateWhere[Hero](ctx, c, []sqlbuild.Assignment{sqlbuild.Set("Active", false)}, predicate.F("Age").GTE(30))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	active, err := client.Count[Hero](ctx, c, predicate.Bool("Active"))
	require.NoError(t, err)
	assert.Zero(t, active)

	n, err = c.Delete(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = client.DeleteWhere[Item](ctx, c, predicate.F("OwnerId").EQ(1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = client.DeleteWhere[Item](ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestClientConstraintError(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.Insert(ctx, &Tag{Code: "x", Label: "first"})
	require.NoError(t, err)
	_, err = c.Insert(ctx, &Tag{Code: "x", Label: "second"})
	require.Error(t, err)
	assert.True(t, strata.IsMutationError(err))
	assert.True(t, strata.IsConstraintError(err))
}

func TestClientRelations(t *testing.T) {
	ctx := context.Background()

	t.Run("Auto", func(t *testing.T) {
		c := newClient(t, client.AutoRelations(), client.Workers(2))
		seed(t, c)
		heroes, err := client.All[Hero](ctx, c)
		require.NoError(t, err)
		require.Len(t, heroes, 3)
		require.Len(t, heroes[0].Items, 2)
		assert.Equal(t, "Sword", heroes[0].Items[0].Name)
		assert.Equal(t, "Shield", heroes[0].Items[1].Name)
		assert.Empty(t, heroes[1].Items)
		require.Len(t, heroes[2].Items, 1)
		assert.Equal(t, "Bow", heroes[2].Items[0].Name)
	})

	t.Run("Explicit", func(t *testing.T) {
		c := newClient(t)
		seed(t, c)
		h, err := client.First[Hero](ctx, c, predicate.F("Name").EQ("Cid"))
		require.NoError(t, err)
		require.NoError(t, c.LoadRelations(ctx, h))
		require.Len(t, h.Items, 1)
		assert.Equal(t, int64(3), h.Items[0].OwnerId)

		err = c.LoadRelations(ctx, Hero{})
		require.Error(t, err)
		assert.True(t, strata.IsQueryError(err))
	})
}

func TestClientTx(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	t.Run("Rollback", func(t *testing.T) {
		tx, err := c.Tx(ctx)
		require.NoError(t, err)
		_, err = tx.Insert(ctx, &Hero{Name: "Ghost"})
		require.NoError(t, err)
		n, err := client.Count[Hero](ctx, tx.Client, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, tx.Rollback())

		n, err = client.Count[Hero](ctx, c, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("WithTx", func(t *testing.T) {
		err := c.WithTx(ctx, func(tx *client.Tx) error {
			_, err := tx.Insert(ctx, &Hero{Name: "Kept"})
			return err
		})
		require.NoError(t, err)

		boom := errors.New("boom")
		err = c.WithTx(ctx, func(tx *client.Tx) error {
			if _, err := tx.Insert(ctx, &Hero{Name: "Lost"}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		heroes, err := client.All[Hero](ctx, c)
		require.NoError(t, err)
		require.Len(t, heroes, 1)
		assert.Equal(t, "Kept", heroes[0].Name)
	})

	t.Run("Panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = c.WithTx(ctx, func(tx *client.Tx) error {
				_, _ = tx.Insert(ctx, &Hero{Name: "Panic"})
				panic("boom")
			})
		})
		n, err := client.Count[Hero](ctx, c, predicate.F("Name").EQ("Panic"))
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

// overlapDriver records the peak number of transactional queries in flight.
type overlapDriver struct {
	dialect.Driver
	inflight, peak atomic.Int32
}

func (d *overlapDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &overlapTx{Tx: tx, d: d}, nil
}

type overlapTx struct {
	dialect.Tx
	d *overlapDriver
}

func (tx *overlapTx) Query(ctx context.Context, query string, params dialect.Params) ([][]any, error) {
	n := tx.d.inflight.Add(1)
	defer tx.d.inflight.Add(-1)
	for p := tx.d.peak.Load(); n > p && !tx.d.peak.CompareAndSwap(p, n); p = tx.d.peak.Load() {
	}
	time.Sleep(5 * time.Millisecond)
	return tx.Tx.Query(ctx, query, params)
}

func TestClientTxRelations(t *testing.T) {
	ctx := context.Background()
	drv := &overlapDriver{Driver: openDriver(t)}
	c, err := client.New(drv, client.AutoRelations(), client.Workers(4), client.Logger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.CreateTables(ctx, Hero{}, Item{}, Tag{}))
	seed(t, c)

	var heroes []*Hero
	err = c.WithTx(ctx, func(tx *client.Tx) (err error) {
		heroes, err = client.All[Hero](ctx, tx.Client)
		return err
	})
	require.NoError(t, err)
	require.Len(t, heroes, 3)
	require.Len(t, heroes[0].Items, 2)
	require.Len(t, heroes[2].Items, 1)
	assert.Equal(t, int32(1), drv.peak.Load(), "relation queries of a transaction must not overlap")
}

func TestClientInsertManyParamLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("Option", func(t *testing.T) {
		c := newClient(t, client.MaxParams(20))
		assert.Equal(t, 20, c.Builder().MaxParams())
		heroes := make([]*Hero, 50)
		for i := range heroes {
			heroes[i] = &Hero{Name: fmt.Sprintf("h%d", i), Age: i}
		}
		n, err := c.InsertMany(ctx, heroes)
		require.NoError(t, err)
		assert.Equal(t, int64(50), n)
	})

	t.Run("DialectDefault", func(t *testing.T) {
		c := newClient(t)
		heroes := make([]*Hero, 5000)
		for i := range heroes {
			heroes[i] = &Hero{Name: fmt.Sprintf("h%d", i), Skills: [2]int{i, -i}}
		}
		n, err := c.InsertMany(ctx, heroes)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), n)

		count, err := client.Count[Hero](ctx, c, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), count)
	})
}

type Rank int

const (
	RankBronze Rank = iota + 1
	RankGold
)

type Sample struct {
	Id    int64 `orm:"pk;autoincrement"`
	Rank  Rank
	At    time.Time
	Ref   uuid.UUID
	Small uint16
	Big   uint64
	Ratio float32
	Note  *string
	Blob  []byte
}

func TestClientScalarRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	require.NoError(t, client.CreateTable[Sample](ctx, c))

	at := time.Date(2025, 3, 14, 15, 9, 26, 535000000, time.UTC)
	note := "fragile"
	want := []*Sample{
		{Rank: RankGold, At: at, Ref: uuid.MustParse("6f1c1e6a-3c55-4b8f-9b8e-2f4d1c7a9e01"), Small: math.MaxUint16, Big: 42, Ratio: 1.25, Note: &note, Blob: []byte{0, 1, 0xff}},
		{Rank: RankBronze, At: at.Add(time.Hour), Ref: uuid.New(), Big: 1 << 63, Ratio: -0.5},
		{Rank: RankBronze, Big: math.MaxUint64, Blob: []byte{}},
	}
	for _, s := range want {
		_, err := c.Insert(ctx, s)
		require.NoError(t, err)
	}

	got, err := client.All[Sample](ctx, c)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i, w := range want {
		g := got[i]
		assert.Equal(t, w.Rank, g.Rank, "row %d", i)
		assert.True(t, w.At.Equal(g.At), "row %d: %v != %v", i, w.At, g.At)
		assert.Equal(t, w.Ref, g.Ref, "row %d", i)
		assert.Equal(t, w.Small, g.Small, "row %d", i)
		assert.Equal(t, w.Big, g.Big, "row %d", i)
		assert.Equal(t, w.Ratio, g.Ratio, "row %d", i)
		assert.Equal(t, w.Note, g.Note, "row %d", i)
		assert.Equal(t, len(w.Blob), len(g.Blob), "row %d", i)
		if len(w.Blob) > 0 {
			assert.Equal(t, w.Blob, g.Blob, "row %d", i)
		}
	}

	high, err := client.Query[Sample](ctx, c, predicate.F("Big").EQ(uint64(1<<63)))
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, RankBronze, high[0].Rank)

	gold, err := client.Query[Sample](ctx, c, predicate.F("Rank").EQ(RankGold))
	require.NoError(t, err)
	require.Len(t, gold, 1)
	assert.Equal(t, "fragile", *gold[0].Note)
}

type LegacyHero struct {
	Id int64 `orm:"pk"`
}

func (LegacyHero) TableName() string { return "Heroes" }

func TestClientCreateTables(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	seed(t, c)

	err := c.CreateTables(ctx, Item{}, Hero{}, LegacyHero{})
	require.Error(t, err)
	assert.True(t, strata.IsMutationError(err))
	assert.Contains(t, err.Error(), "Heroes: duplicate table name")

	n, err := client.Count[Hero](ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "no table is dropped when validation fails")

	require.NoError(t, c.CreateTables(ctx, Hero{}))
	n, err = client.Count[Hero](ctx, c, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = c.CreateTables(ctx, 42)
	require.Error(t, err)
}

func TestClientCache(t *testing.T) {
	ctx := context.Background()
	cache := strata.NewMemoryCache()
	c := newClient(t, client.Cache(cache, time.Minute))
	seed(t, c)
	require.Zero(t, cache.Len(), "mutations clear the cache")

	first, err := client.Query[Hero](ctx, c, predicate.F("Age").GT(18))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	second, err := client.Query[Hero](ctx, c, predicate.F("Age").GT(18))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, first, second)

	_, err = c.Insert(ctx, &Hero{Name: "Dan", Age: 50})
	require.NoError(t, err)
	assert.Zero(t, cache.Len())

	third, err := client.Query[Hero](ctx, c, predicate.F("Age").GT(18))
	require.NoError(t, err)
	assert.Len(t, third, 3)

	require.NoError(t, c.WithTx(ctx, func(tx *client.Tx) error {
		_, err := tx.Insert(ctx, &Hero{Name: "Eve", Age: 60})
		return err
	}))
	assert.Zero(t, cache.Len(), "commit clears the cache")
}

func TestClientStats(t *testing.T) {
	ctx := context.Background()
	logger, buf := testutil.NewCaptureLogger()
	c := newClient(t, client.Logger(logger), client.SlowQueryLog(time.Nanosecond), client.Debug())
	seed(t, c)

	_, err := client.All[Hero](ctx, c)
	require.NoError(t, err)
	require.NotNil(t, c.Stats())
	assert.Positive(t, c.Stats().Snapshot().Queries)
	assert.Positive(t, c.Stats().Snapshot().Slow)
	assert.Contains(t, buf.String(), "msg=\"slow query\"")
}

func TestClientSnakeCase(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewRegistry(schema.WithNaming(schema.SnakeCase))
	drv := openDriver(t)
	sc, err := client.New(drv, client.Registry(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Close() })
	require.NoError(t, client.CreateTable[Item](ctx, sc))
	_, err = sc.Insert(ctx, &Item{OwnerId: 7, Name: "Lamp"})
	require.NoError(t, err)

	rows, err := drv.Query(ctx, `SELECT "owner_id", "name" FROM "Items"`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{int64(7), "Lamp"}, rows[0])

	items, err := client.Query[Item](ctx, sc, predicate.F("OwnerId").EQ(7))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Lamp", items[0].Name)
}

func TestOpenConfig(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Dialect:          dialect.SQLite,
		DSN:              "file:" + t.Name() + "?mode=memory&cache=shared",
		Naming:           config.NamingSnakeCase,
		MaxStatementSize: 256,
		AutoRelations:    true,
	}
	c, err := client.OpenConfig(cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 256, c.Builder().MaxStatementSize())
	assert.Nil(t, c.Stats())

	require.NoError(t, client.CreateTable[Item](ctx, c))
	items := make([]Item, 20)
	for i := range items {
		items[i] = Item{OwnerId: int64(i % 2), Name: "item"}
	}
	n, err := c.InsertMany(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)

	count, err := client.Count[Item](ctx, c, predicate.F("OwnerId").EQ(1))
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)

	_, err = client.OpenConfig(&config.Config{Dialect: "oracle"})
	require.Error(t, err)
}
