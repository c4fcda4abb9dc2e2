// Package migrations holds the schema for the quiz bank and result tables.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
