package sheets

import "github.com/JonMunkholm/sheetsync/internal/core"

func init() {
	registerServices()
	registerServicesArchive()
}

// registerServices adds the live appointment tab. It is the primary sheet
// and the target of drift validation.
func registerServices() {
	core.Register(core.SheetDefinition{
		Key:     "services",
		Title:   "SERVİSLER",
		Entity:  core.EntityService,
		Primary: true,
		Columns: serviceColumns(),
	})
}

// registerServicesArchive adds the tab that finished appointments are moved
// to. Its rows keep their ids, so a move between tabs re-owns the record.
func registerServicesArchive() {
	core.Register(core.SheetDefinition{
		Key:     "services_archive",
		Title:   "ARŞİV",
		Entity:  core.EntityService,
		Columns: serviceColumns(),
	})
}
