// Package migrations embeds the SQL schema applied by the migrate command.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Files lists migrations in apply order.
var Files = []string{
	"001_create_plans_tasks.sql",
	"002_create_schedule.sql",
	"003_create_reschedules.sql",
}
