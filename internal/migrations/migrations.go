// Package migrations holds the helpdesk schema descriptors. Each lives in
// its own file named after its id and registers itself from init.
package migrations

import "github.com/mirajehossain/deskmigrate/internal/migrator"

// Registry is what the CLI plans and applies.
var Registry = migrator.NewRegistry()
