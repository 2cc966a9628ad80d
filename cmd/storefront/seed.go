package main

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/repository/postgres"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.Database.Driver != "postgres" {
		slog.Info("Nothing to migrate", "driver", cfg.Database.Driver)
		return nil
	}
	// InitDB applies the schema.
	db, err := postgres.InitDB(cmd.Context(), cfg.Database.URL)
	if err != nil {
		return err
	}
	return db.Close()
}

func runSeed(cmd *cobra.Command, args []string) error {
	repos, err := openRepositories(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init repositories: %w", err)
	}
	defer repos.Close()

	return repos.products.Seed(cmd.Context(), demoCatalog())
}

const cdn = "https://res.cloudinary.com/storefront/image/upload/v1718000000/"

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// demoCatalog is the catalog seeded on first start. Prices are in soles.
func demoCatalog() []entity.Product {
	ringSizes := []string{"6", "7", "8", "9"}
	return []entity.Product{
		// Jewelry pieces, one per set slot.
		{ID: "col-001", Title: "Collar Luna", Description: "Cadena de plata 925 con acabado pulido.", Price: price("89.90"), Stock: 12, Category: "joyeria", Image: cdn + "joyeria/collares/collar-luna.jpg"},
		{ID: "col-002", Title: "Collar Perla", Description: "Collar de perlas cultivadas de agua dulce.", Price: price("119.90"), Stock: 6, Category: "joyeria", Image: cdn + "joyeria/collares/collar-perla.jpg"},
		{ID: "dij-001", Title: "Dije Corazón", Description: "Dije de plata con circonia central.", Price: price("49.90"), Stock: 20, Category: "joyeria", Image: cdn + "joyeria/dijes/dije-corazon.jpg"},
		{ID: "dij-002", Title: "Dije Estrella", Description: "Dije en forma de estrella bañado en oro.", Price: price("54.90"), Stock: 15, Category: "joyeria", Image: cdn + "joyeria/dijes/dije-estrella.jpg"},
		{ID: "are-001", Title: "Aretes Gota", Description: "Aretes colgantes con cristal en gota.", Price: price("59.90"), Stock: 18, Category: "joyeria", Image: cdn + "joyeria/aretes/aretes-gota.jpg"},
		{ID: "are-002", Title: "Aretes Aro", Description: "Aros medianos de plata 925.", Price: price("44.90"), Stock: 25, Category: "joyeria", Image: cdn + "joyeria/aretes/aretes-aro.jpg"},
		{ID: "ani-001", Title: "Anillo Solitario", Description: "Anillo de plata con circonia talla brillante.", Price: price("69.90"), Stock: 10, Category: "joyeria", Image: cdn + "joyeria/anillos/anillo-solitario.jpg", Sizes: ringSizes},
		{ID: "ani-002", Title: "Anillo Trenzado", Description: "Anillo de plata trenzada.", Price: price("64.90"), Stock: 9, Category: "joyeria", Image: cdn + "joyeria/anillos/anillo-trenzado.jpg", Sizes: ringSizes},

		// Combos: one photo shows every piece of the set.
		{
			ID: "set-001", Title: "Set Luna Llena", Description: "Collar y dije a juego en plata 925.",
			Price: price("129.90"), Stock: 5, Category: "joyeria", Image: cdn + "joyeria/combos/set-luna-llena.jpg",
			Type: entity.ProductCombo, ComboItems: &entity.ComboItems{Collar: true, Dije: true},
		},
		{
			ID: "set-002", Title: "Set Aurora", Description: "Collar, dije y aretes con cristales aurora.",
			Price: price("179.90"), Stock: 4, Category: "joyeria", Image: cdn + "joyeria/combos/set-aurora.jpg",
			Type: entity.ProductCombo, ComboItems: &entity.ComboItems{Collar: true, Dije: true, Arete: true},
		},
		{
			ID: "set-003", Title: "Set Completo Estelar", Description: "Las cuatro piezas de la colección Estelar.",
			Price: price("249.90"), Stock: 3, Category: "joyeria", Image: cdn + "joyeria/combos/set-estelar.jpg",
			Type: entity.ProductCombo, ComboItems: &entity.ComboItems{Collar: true, Dije: true, Arete: true, Anillo: true},
		},

		// Plush.
		{ID: "pel-001", Title: "Oso de Peluche Clásico", Description: "Oso de 40 cm con lazo de satén.", Price: price("59.90"), Stock: 30, Category: "peluches", Image: cdn + "peluches/oso-clasico.jpg", Sizes: []string{"S", "M", "L"}},
		{ID: "pel-002", Title: "Conejo Suave", Description: "Conejo de felpa hipoalergénica.", Price: price("45.90"), Stock: 22, Category: "peluches", Image: cdn + "peluches/conejo-suave.jpg"},

		// Bathroom.
		{ID: "ban-001", Title: "Set de Toallas Algodón", Description: "Juego de tres toallas de algodón peinado.", Price: price("99.90"), Stock: 14, Category: "bano", Image: cdn + "bano/set-toallas.jpg"},
		{ID: "ban-002", Title: "Dispensador de Jabón Cerámico", Description: "Dispensador de cerámica esmaltada de 350 ml.", Price: price("39.90"), Stock: 40, Category: "bano", Image: cdn + "bano/dispensador.jpg"},
	}
}
