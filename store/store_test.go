package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/config"
	"github.com/itakecare/leazr-docgen/model"
)

func newGormStore(t *testing.T) *Gorm {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	s := NewGorm(db, nil)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func overlayTemplate(tenant string) *model.Template {
	two := 2
	return &model.Template{
		TenantID:   tenant,
		Name:       "Offre standard",
		Category:   "offer",
		Background: &model.Background{Ref: "backgrounds/offer.pdf", ContentType: "application/pdf"},
		Pages:      []model.Page{model.DefaultPage(1), model.DefaultPage(2)},
		Fields: []model.Field{
			{
				Type: model.FieldText, Label: "Client", DataPath: "client.name",
				Position:  model.Position{X: 20, Y: 40, Page: 1},
				Style:     model.Style{FontSize: 11, FontWeight: model.WeightBold},
				IsVisible: true,
			},
			{
				Type: model.FieldCurrency, Label: "Mensualité", DataPath: "amounts.monthly",
				Position:  model.Position{X: 400, Y: -5, Page: 2},
				Format:    &model.Format{Currency: "EUR", NumberDecimals: &two},
				IsVisible: true,
			},
		},
		IsActive:  true,
		IsDefault: true,
	}
}

// stores runs fn against every TemplateStore implementation.
func stores(t *testing.T, fn func(t *testing.T, s TemplateStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("gorm", func(t *testing.T) { fn(t, newGormStore(t)) })
}

func TestSaveAssignsIDsAndClamps(t *testing.T) {
	stores(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()
		saved, err := s.SaveTemplate(ctx, overlayTemplate("acme"))
		require.NoError(t, err)

		assert.NotEmpty(t, saved.ID)
		assert.False(t, saved.CreatedAt.IsZero())
		assert.Equal(t, 2, saved.Metadata.PageCount)
		require.Len(t, saved.Fields, 2)
		for _, f := range saved.Fields {
			assert.NotEmpty(t, f.ID)
		}

		moved := saved.Fields[1].Position
		assert.InDelta(t, model.DefaultPage(2).WidthMm(), moved.X, 1e-9)
		assert.Equal(t, 0.0, moved.Y)
	})
}

func TestRoundTripPreservesFields(t *testing.T) {
	stores(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()
		saved, err := s.SaveTemplate(ctx, overlayTemplate("acme"))
		require.NoError(t, err)

		got, err := s.TemplateByID(ctx, saved.ID)
		require.NoError(t, err)

		assert.Equal(t, "Offre standard", got.Name)
		assert.Equal(t, model.KindOverlay, got.Kind())
		require.NotNil(t, got.Background)
		assert.Equal(t, "backgrounds/offer.pdf", got.Background.Ref)
		require.Len(t, got.Pages, 2)
		assert.InDelta(t, model.A4HeightPt, got.Pages[1].Height, 1e-9)

		require.Len(t, got.Fields, 2)
		assert.Equal(t, "client.name", got.Fields[0].DataPath)
		assert.True(t, got.Fields[0].Style.Bold())
		assert.Nil(t, got.Fields[0].Format)
		require.NotNil(t, got.Fields[1].Format)
		require.NotNil(t, got.Fields[1].Format.NumberDecimals)
		assert.Equal(t, 2, *got.Fields[1].Format.NumberDecimals)
	})
}

func TestUpdateReplacesFields(t *testing.T) {
	stores(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()
		saved, err := s.SaveTemplate(ctx, overlayTemplate("acme"))
		require.NoError(t, err)
		created := saved.CreatedAt

		saved.Fields = saved.Fields[:1]
		saved.Fields[0].Label = "Nom du client"
		saved.Name = "Offre v2"
		updated, err := s.SaveTemplate(ctx, saved)
		require.NoError(t, err)

		got, err := s.TemplateByID(ctx, updated.ID)
		require.NoError(t, err)
		assert.Equal(t, "Offre v2", got.Name)
		require.Len(t, got.Fields, 1)
		assert.Equal(t, "Nom du client", got.Fields[0].Label)
		assert.True(t, got.CreatedAt.Equal(created), "created %v, got %v", created, got.CreatedAt)
	})
}

func TestTemplatesForTenantIsolation(t *testing.T) {
	stores(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()
		_, err := s.SaveTemplate(ctx, overlayTemplate("acme"))
		require.NoError(t, err)
		_, err = s.SaveTemplate(ctx, &model.Template{
			TenantID: "acme", Name: "Offre HTML", Markup: "<h1>{{client_name}}</h1>", IsActive: true,
		})
		require.NoError(t, err)
		_, err = s.SaveTemplate(ctx, overlayTemplate("globex"))
		require.NoError(t, err)

		list, err := s.TemplatesForTenant(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, tpl := range list {
			assert.Equal(t, "acme", tpl.TenantID)
		}

		none, err := s.TemplatesForTenant(ctx, "initech")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestDeleteCascadesFields(t *testing.T) {
	stores(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()
		saved, err := s.SaveTemplate(ctx, overlayTemplate("acme"))
		require.NoError(t, err)

		require.NoError(t, s.DeleteTemplate(ctx, saved.ID))
		_, err = s.TemplateByID(ctx, saved.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.DeleteTemplate(ctx, saved.ID), "delete is idempotent")
	})
}

func TestFieldIDsAreScopedToTemplate(t *testing.T) {
	stores(t, func(t *testing.T, s TemplateStore) {
		ctx := context.Background()
		first := overlayTemplate("acme")
		first.ID = "t1"
		first.Fields[0].ID, first.Fields[1].ID = "f1", "f2"
		_, err := s.SaveTemplate(ctx, first)
		require.NoError(t, err)

		second := overlayTemplate("acme")
		second.ID = "t2"
		second.Fields[0].ID, second.Fields[1].ID = "f1", "f2"
		second.Fields[0].Label = "Locataire"
		_, err = s.SaveTemplate(ctx, second)
		require.NoError(t, err)

		got1, err := s.TemplateByID(ctx, "t1")
		require.NoError(t, err)
		got2, err := s.TemplateByID(ctx, "t2")
		require.NoError(t, err)
		require.Len(t, got1.Fields, 2)
		require.Len(t, got2.Fields, 2)
		assert.Equal(t, "Client", got1.Fields[0].Label)
		assert.Equal(t, "Locataire", got2.Fields[0].Label)

		require.NoError(t, s.DeleteTemplate(ctx, "t2"))
		got1, err = s.TemplateByID(ctx, "t1")
		require.NoError(t, err)
		assert.Len(t, got1.Fields, 2, "deleting t2 must not touch t1's fields")
	})
}

func TestGormDeleteRemovesFieldRows(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()
	saved, err := s.SaveTemplate(ctx, overlayTemplate("acme"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteTemplate(ctx, saved.ID))

	var n int64
	require.NoError(t, s.db.Model(&fieldRow{}).Where("template_id = ?", saved.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSaveRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Template)
	}{
		{"no tenant", func(t *model.Template) { t.TenantID = "" }},
		{"no source", func(t *model.Template) { t.Background = nil }},
		{"bad type", func(t *model.Template) { t.Fields[0].Type = "barcode" }},
		{"missing page", func(t *model.Template) { t.Fields[0].Position.Page = 7 }},
		{"duplicate field id", func(t *model.Template) { t.Fields[0].ID, t.Fields[1].ID = "f1", "f1" }},
	}
	stores(t, func(t *testing.T, s TemplateStore) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tpl := overlayTemplate("acme")
				tt.mutate(tpl)
				_, err := s.SaveTemplate(context.Background(), tpl)
				assert.True(t, errors.Is(err, docgen.ErrInvalidTemplate), "got %v", err)
			})
		}
	})
}

func TestMemoryDoesNotAlias(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	in := overlayTemplate("acme")
	saved, err := s.SaveTemplate(ctx, in)
	require.NoError(t, err)

	in.Name = "changed"
	saved.Fields[0].Label = "changed"

	got, err := s.TemplateByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Offre standard", got.Name)
	assert.Equal(t, "Client", got.Fields[0].Label)
}

func TestMemoryKeepsCreationOrder(t *testing.T) {
	s := NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	ctx := context.Background()
	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		tpl := overlayTemplate("acme")
		tpl.Name = name
		saved, err := s.SaveTemplate(ctx, tpl)
		require.NoError(t, err)
		ids = append(ids, saved.ID)
	}
	require.NoError(t, s.DeleteTemplate(ctx, ids[1]))

	list, err := s.TemplatesForTenant(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "c", list[1].Name)
}

func TestOpenUnsupportedType(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Type: "oracle"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}
