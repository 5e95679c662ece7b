// Package catalog holds the static mapping between raw files and bronze
// target tables: the loadable-table allow-list, the file-to-table pipeline
// order, and each table's declared primary-key columns.
//
// The catalog is the only source of SQL identifiers used by the loader and
// the quality gate; external input never reaches identifier position.
package catalog

import (
	"fmt"
	"os"

	"github.com/dstack-labs/bronzeload/pkg/bronze"
	"gopkg.in/yaml.v3"
)

// FileTable is one pipeline entry: a raw file and its bronze target table.
// Entries are processed in declared order.
type FileTable struct {
	Filename   string   `yaml:"file"`
	Table      string   `yaml:"table"`
	PrimaryKey []string `yaml:"primary_key"`
}

// Catalog is the target schema catalog.
type Catalog struct {
	Schema string      `yaml:"schema"`
	Tables []FileTable `yaml:"tables"`

	allowed map[string]FileTable
}

// Default returns the compiled-in catalog for the Olist e-commerce dataset.
func Default() *Catalog {
	c := &Catalog{
		Schema: "bronze",
		Tables: []FileTable{
			{Filename: "olist_orders_dataset.csv", Table: "orders", PrimaryKey: []string{"order_id"}},
			{Filename: "olist_order_items_dataset.csv", Table: "order_items", PrimaryKey: []string{"order_id", "order_item_id"}},
			{Filename: "olist_customers_dataset.csv", Table: "customers", PrimaryKey: []string{"customer_id"}},
			{Filename: "olist_products_dataset.csv", Table: "products", PrimaryKey: []string{"product_id"}},
			{Filename: "olist_sellers_dataset.csv", Table: "sellers", PrimaryKey: []string{"seller_id"}},
			{Filename: "olist_order_reviews_dataset.csv", Table: "order_reviews", PrimaryKey: []string{"review_id"}},
			{Filename: "olist_order_payments_dataset.csv", Table: "order_payments", PrimaryKey: []string{"order_id"}},
			{Filename: "olist_geolocation_dataset.csv", Table: "geolocation", PrimaryKey: []string{"geolocation_zip_code_prefix"}},
			{Filename: "product_category_name_translation.csv", Table: "product_category_name_translation", PrimaryKey: []string{"product_category_name"}},
		},
	}
	c.index()
	return c
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog file %q: %w", path, bronze.ErrNotFound)
		}
		return nil, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %q: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.index()
	return &c, nil
}

func (c *Catalog) validate() error {
	if c.Schema == "" {
		return fmt.Errorf("catalog schema is required: %w", bronze.ErrInvalidConfig)
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("catalog has no tables: %w", bronze.ErrInvalidConfig)
	}
	for _, t := range c.Tables {
		if t.Filename == "" || t.Table == "" {
			return fmt.Errorf("catalog entry needs both file and table (file=%q table=%q): %w",
				t.Filename, t.Table, bronze.ErrInvalidConfig)
		}
	}
	return nil
}

func (c *Catalog) index() {
	c.allowed = make(map[string]FileTable, len(c.Tables))
	for _, t := range c.Tables {
		c.allowed[t.Table] = t
	}
}

// IsAllowed reports whether the table is a known loadable target.
func (c *Catalog) IsAllowed(table string) bool {
	_, ok := c.allowed[table]
	return ok
}

// PrimaryKeyColumns returns the declared primary-key columns for a table.
// Unknown tables have none.
func (c *Catalog) PrimaryKeyColumns(table string) []string {
	return c.allowed[table].PrimaryKey
}

// TableFor returns the target table mapped to a raw filename.
func (c *Catalog) TableFor(filename string) (string, bool) {
	for _, t := range c.Tables {
		if t.Filename == filename {
			return t.Table, true
		}
	}
	return "", false
}
