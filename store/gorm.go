package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/model"
)

type templateRow struct {
	ID         string `gorm:"primaryKey;size:36"`
	TenantID   string `gorm:"size:64;index:idx_templates_tenant"`
	Name       string `gorm:"size:255"`
	Category   string `gorm:"size:64;index"`
	Background datatypes.JSON
	Markup     string `gorm:"type:text"`
	Pages      datatypes.JSON
	Metadata   datatypes.JSON
	IsActive   bool
	IsDefault  bool
	CreatedAt  time.Time `gorm:"index:idx_templates_tenant"`
	UpdatedAt  time.Time
	Fields     []fieldRow `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
}

func (templateRow) TableName() string { return "document_templates" }

// fieldRow is keyed by (template_id, id): field ids only need to be unique
// within their template.
type fieldRow struct {
	TemplateID string `gorm:"primaryKey;size:36"`
	ID         string `gorm:"primaryKey;size:64"`
	SortOrder  int
	Type       string `gorm:"size:16"`
	Label      string `gorm:"size:255"`
	DataPath   string `gorm:"size:255"`
	X          float64
	Y          float64
	Page       int
	Style      datatypes.JSON
	Format     datatypes.JSON
	IsVisible  bool
}

func (fieldRow) TableName() string { return "document_template_fields" }

// Gorm is a TemplateStore on a gorm database. Fields live in their own table,
// ordered by sort_order; pages, styles and formats are JSON columns.
type Gorm struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewGorm wraps db. Call Migrate once before use on a fresh database.
func NewGorm(db *gorm.DB, log *zap.Logger) *Gorm {
	return &Gorm{db: db, logger: logger.OrNop(log).Named("store"), now: time.Now}
}

// Migrate creates or updates the template tables.
func (g *Gorm) Migrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(&templateRow{}, &fieldRow{}); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// TemplatesForTenant returns the tenant's templates in creation order.
func (g *Gorm) TemplatesForTenant(ctx context.Context, tenantID string) ([]model.Template, error) {
	var rows []templateRow
	err := g.db.WithContext(ctx).
		Preload("Fields", orderedFields).
		Where("tenant_id = ?", tenantID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}

	out := make([]model.Template, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// TemplateByID returns ErrNotFound for an unknown id.
func (g *Gorm) TemplateByID(ctx context.Context, id string) (*model.Template, error) {
	var row templateRow
	err := g.db.WithContext(ctx).
		Preload("Fields", orderedFields).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get template %s: %w", id, err)
	}
	return row.toModel()
}

// SaveTemplate upserts the template row and replaces its field rows in one
// transaction.
func (g *Gorm) SaveTemplate(ctx context.Context, t *model.Template) (*model.Template, error) {
	c, err := prepare(t, g.now())
	if err != nil {
		return nil, err
	}
	row, err := fromModel(c)
	if err != nil {
		return nil, err
	}

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing templateRow
		err := tx.Select("created_at").Where("id = ?", row.ID).First(&existing).Error
		switch {
		case err == nil:
			row.CreatedAt = existing.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		fields := row.Fields
		row.Fields = nil
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", row.ID).Delete(&fieldRow{}).Error; err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Create(&fields).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: save template %s: %w", c.ID, err)
	}

	g.logger.Debug("template saved",
		zap.String("template_id", c.ID),
		zap.String("tenant_id", c.TenantID),
		zap.Int("fields", len(c.Fields)))
	return g.TemplateByID(ctx, c.ID)
}

// DeleteTemplate removes the template and its field rows.
func (g *Gorm) DeleteTemplate(ctx context.Context, id string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&fieldRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&templateRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("store: delete template %s: %w", id, err)
	}
	return nil
}

func orderedFields(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order")
}

func fromModel(t *model.Template) (templateRow, error) {
	row := templateRow{
		ID:        t.ID,
		TenantID:  t.TenantID,
		Name:      t.Name,
		Category:  t.Category,
		Markup:    t.Markup,
		IsActive:  t.IsActive,
		IsDefault: t.IsDefault,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}

	// nil pointers are stored as JSON null so the columns never scan NULL.
	var err error
	if row.Background, err = marshalJSON(t.Background); err != nil {
		return row, err
	}
	if row.Pages, err = marshalJSON(t.Pages); err != nil {
		return row, err
	}
	if row.Metadata, err = marshalJSON(t.Metadata); err != nil {
		return row, err
	}

	row.Fields = make([]fieldRow, len(t.Fields))
	for i, f := range t.Fields {
		fr := fieldRow{
			ID:         f.ID,
			TemplateID: t.ID,
			SortOrder:  i,
			Type:       string(f.Type),
			Label:      f.Label,
			DataPath:   f.DataPath,
			X:          f.Position.X,
			Y:          f.Position.Y,
			Page:       f.Position.Page,
			IsVisible:  f.IsVisible,
		}
		if fr.Style, err = marshalJSON(f.Style); err != nil {
			return row, err
		}
		if fr.Format, err = marshalJSON(f.Format); err != nil {
			return row, err
		}
		row.Fields[i] = fr
	}
	return row, nil
}

func (r *templateRow) toModel() (*model.Template, error) {
	t := &model.Template{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Name:      r.Name,
		Category:  r.Category,
		Markup:    r.Markup,
		IsActive:  r.IsActive,
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if len(r.Background) > 0 && string(r.Background) != "null" {
		t.Background = &model.Background{}
		if err := json.Unmarshal(r.Background, t.Background); err != nil {
			return nil, fmt.Errorf("store: template %s background: %w", r.ID, err)
		}
	}
	if err := unmarshalJSON(r.Pages, &t.Pages); err != nil {
		return nil, fmt.Errorf("store: template %s pages: %w", r.ID, err)
	}
	if err := unmarshalJSON(r.Metadata, &t.Metadata); err != nil {
		return nil, fmt.Errorf("store: template %s metadata: %w", r.ID, err)
	}

	t.Fields = make([]model.Field, len(r.Fields))
	for i, fr := range r.Fields {
		f := model.Field{
			ID:        fr.ID,
			Type:      model.FieldType(fr.Type),
			Label:     fr.Label,
			DataPath:  fr.DataPath,
			Position:  model.Position{X: fr.X, Y: fr.Y, Page: fr.Page},
			IsVisible: fr.IsVisible,
		}
		if err := unmarshalJSON(fr.Style, &f.Style); err != nil {
			return nil, fmt.Errorf("store: field %s style: %w", fr.ID, err)
		}
		if len(fr.Format) > 0 && string(fr.Format) != "null" {
			f.Format = &model.Format{}
			if err := json.Unmarshal(fr.Format, f.Format); err != nil {
				return nil, fmt.Errorf("store: field %s format: %w", fr.ID, err)
			}
		}
		t.Fields[i] = f
	}
	return t, nil
}

func marshalJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return datatypes.JSON(b), nil
}

func unmarshalJSON(data datatypes.JSON, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
