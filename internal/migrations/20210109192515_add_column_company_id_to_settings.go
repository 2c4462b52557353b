package migrations

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mirajehossain/deskmigrate/internal/migrator"
	"github.com/mirajehossain/deskmigrate/internal/schema"
)

func init() {
	Registry.Register(AddCompanyIDToSettings)
}

// AddCompanyIDToSettings scopes settings to a company. Deleting the company
// orphans its settings instead of deleting them.
var AddCompanyIDToSettings = migrator.Descriptor{
	ID:   "20210109192515-add-column-companyId-to-Settings-table",
	Up:   Up_20210109192515,
	Down: Down_20210109192515,
}

func Up_20210109192515(ctx context.Context, q schema.QueryInterface) error {
	err := q.AddColumn(ctx, "Settings", "companyId", schema.ColumnSpec{
		Type:       schema.Integer,
		References: &schema.Reference{Model: "Companies", Key: "id"},
		OnUpdate:   schema.Cascade,
		OnDelete:   schema.SetNull,
	})
	return errors.Wrap(err, "add Settings.companyId")
}

func Down_20210109192515(ctx context.Context, q schema.QueryInterface) error {
	return errors.Wrap(q.RemoveColumn(ctx, "Settings", "companyId"), "remove Settings.companyId")
}
