package migrations

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mirajehossain/deskmigrate/internal/migrator"
	"github.com/mirajehossain/deskmigrate/internal/schema"
)

func init() {
	Registry.Register(AddWhatsappIDToContacts)
}

// AddWhatsappIDToContacts ties a contact to the connection it came in on.
var AddWhatsappIDToContacts = migrator.Descriptor{
	ID:   "20231220223517-add-column-whatsappId-to-Contacts",
	Up:   Up_20231220223517,
	Down: Down_20231220223517,
}

func Up_20231220223517(ctx context.Context, q schema.QueryInterface) error {
	err := q.AddColumn(ctx, "Contacts", "whatsappId", schema.ColumnSpec{
		Type:       schema.Integer,
		References: &schema.Reference{Model: "Whatsapps", Key: "id"},
		OnUpdate:   schema.Cascade,
		OnDelete:   schema.SetNull,
	})
	return errors.Wrap(err, "add Contacts.whatsappId")
}

func Down_20231220223517(ctx context.Context, q schema.QueryInterface) error {
	return errors.Wrap(q.RemoveColumn(ctx, "Contacts", "whatsappId"), "remove Contacts.whatsappId")
}
