// internal/fixture/catalog.go
package fixture

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hazmap/simkit/pkg/core"
)

// Record is one catalogued fixture. The payload column holds the
// canonical JSON so fixtures can be diffed in SQL.
type Record struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"uniqueIndex;not null"`
	Seed      uint64
	Checksum  string `gorm:"index"`
	Payload   datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name stable across gorm naming changes.
func (Record) TableName() string { return "fixtures" }

// Catalog versions fixtures in a database.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog wraps a connected gorm DB and migrates the fixtures table.
func NewCatalog(db *gorm.DB) (*Catalog, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate fixtures table: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Save upserts a scenario under the given name.
func (c *Catalog) Save(name string, scn core.Scenario) (core.FixtureMetadata, error) {
	data, checksum, err := Marshal(scn)
	if err != nil {
		return core.FixtureMetadata{}, err
	}

	rec := Record{
		Name:     name,
		Seed:     scn.Seed,
		Checksum: checksum,
		Payload:  datatypes.JSON(data),
	}
	err = c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"seed", "checksum", "payload", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return core.FixtureMetadata{}, fmt.Errorf("save fixture %s: %w", name, err)
	}

	return core.FixtureMetadata{Name: name, Seed: scn.Seed, Checksum: checksum}, nil
}

// Get loads a catalogued scenario by name.
func (c *Catalog) Get(name string) (core.Scenario, core.FixtureMetadata, error) {
	var rec Record
	err := c.db.Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("fixture %s not catalogued", name)
	}
	if err != nil {
		return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("load fixture %s: %w", name, err)
	}

	scn, err := Unmarshal([]byte(rec.Payload))
	if err != nil {
		return core.Scenario{}, core.FixtureMetadata{}, fmt.Errorf("decode fixture %s: %w", name, err)
	}
	meta := core.FixtureMetadata{Name: rec.Name, Seed: rec.Seed, Checksum: rec.Checksum}
	return scn, meta, nil
}

// List returns metadata for every catalogued fixture, newest first.
func (c *Catalog) List() ([]core.FixtureMetadata, error) {
	var recs []Record
	if err := c.db.Order("updated_at desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list fixtures: %w", err)
	}
	out := make([]core.FixtureMetadata, 0, len(recs))
	for _, r := range recs {
		out = append(out, core.FixtureMetadata{Name: r.Name, Seed: r.Seed, Checksum: r.Checksum})
	}
	return out, nil
}

// Delete removes a catalogued fixture by name.
func (c *Catalog) Delete(name string) error {
	res := c.db.Where("name = ?", name).Delete(&Record{})
	if res.Error != nil {
		return fmt.Errorf("delete fixture %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("fixture %s not catalogued", name)
	}
	return nil
}
