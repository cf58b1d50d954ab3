// Package strata is an object-relational mapping core.
//
// It translates typed predicates into parameterized SQL and turns raw result
// rows back into typed entities, including fixed-size array fields, grouped
// array fields, nested value objects and single-hop relations.
//
// # Packages
//
//   - inflection: English pluralization used for default table names
//   - schema: per-type entity descriptors, built once and cached in a Registry
//   - predicate: expression trees and their translation into WHERE fragments
//   - dialect: dialect names, identifier quoting and executor interfaces
//   - dialect/sql/sqlbuild: SELECT/INSERT/UPDATE/DELETE/COUNT statement builder
//   - dialect/sql/sqlscan: parallel, positional row materializer
//   - dialect/sql/sqlgraph: relation resolver and constraint error helpers
//   - dialect/sql/schema: DROP+CREATE TABLE generator
//   - dialect/sql: database/sql backed executor, statistics and result cache
//   - client: a thin CRUD client wiring all of the above together
//   - config: layered settings (defaults, YAML, STRATA_ env, flags)
//   - cmd/stratactl: operator CLI over config and the SQL driver
//
// # Entities
//
// Entities are plain structs described with `orm` struct tags:
//
//	type Character struct {
//	    Id        int64       `orm:"pk;autoincrement"`
//	    Name      string      `orm:"size=32"`
//	    Online    bool
//	    Class     Class       // named integer type, stored as its number
//	    Position  Vec3        // value object: PositionX, PositionY, PositionZ
//	    Skills    [4]int      // array: Skills1..Skills4
//	    StatType  [2]int      `orm:"group=Stat"`
//	    StatValue [2]int      `orm:"group=Stat"`
//	    Items     []*Item     `orm:"relation=OwnerId"`
//	}
//
// # Usage
//
//	drv, _ := sql.Open("sqlite", dialect.SQLite, "file:game.db")
//	c := client.New(drv, dialect.SQLite, client.AutoRelations(true))
//	online, err := client.Query[Character](ctx, c,
//	    predicate.And(predicate.Bool("Online"), predicate.F("Class").EQ(Mage)))
package strata
