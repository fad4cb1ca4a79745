package fieldmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsync/feature/leads/models"
)

func testRegistry() *models.Registry {
	return models.NewRegistry(
		models.FieldSpec{Name: "title", Kind: models.KindString},
		models.FieldSpec{Name: "budget", Kind: models.KindInt},
		models.FieldSpec{Name: "hourly", Kind: models.KindFloat},
		models.FieldSpec{Name: "answer", Kind: models.KindBool, HasDefault: true, Default: false},
		models.FieldSpec{Name: "answer_date", Kind: models.KindTime},
	)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{"date only", "2026-03-14", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), true},
		{"datetime", "2026-03-14T09:30:00", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), true},
		{"fractional seconds", "2026-03-14T09:30:00.123", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), true},
		{"zulu suffix", "2026-03-14T09:30:00.000Z", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), true},
		{"garbage", "not-a-date", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got))
			}
		})
	}
}

func TestDecode(t *testing.T) {
	mapping := models.Mapping{
		"Title":          models.Scalar("title"),
		"Budget":         models.Scalar("budget"),
		"Proposal Owner": models.Sub("name", "proposal_owner"),
	}

	t.Run("scalar present is carried verbatim", func(t *testing.T) {
		out := Decode(mapping, map[string]any{"Title": "Backend engineer", "Budget": float64(500)})
		assert.Equal(t, "Backend engineer", out["title"])
		assert.Equal(t, float64(500), out["budget"])
	})

	t.Run("scalar absent is omitted", func(t *testing.T) {
		out := Decode(mapping, map[string]any{"Title": "x"})
		_, ok := out["budget"]
		assert.False(t, ok)
	})

	t.Run("nested projects sub-key", func(t *testing.T) {
		out := Decode(mapping, map[string]any{
			"Proposal Owner": map[string]any{"name": "Dana", "id": "usr001"},
		})
		assert.Equal(t, "Dana", out["proposal_owner"])
	})

	t.Run("falsy nested is skipped", func(t *testing.T) {
		for _, falsy := range []any{nil, "", map[string]any{}} {
			out := Decode(mapping, map[string]any{"Proposal Owner": falsy})
			_, ok := out["proposal_owner"]
			assert.False(t, ok)
		}
	})

	t.Run("unmapped remote keys are ignored", func(t *testing.T) {
		out := Decode(mapping, map[string]any{"Some Formula": "derived"})
		assert.Empty(t, out)
	})
}

func TestEncode(t *testing.T) {
	table := models.Proposals()

	t.Run("scalar and nested fields", func(t *testing.T) {
		out := Encode(table, models.FieldValues{
			"title":          "Backend engineer",
			"proposal_owner": "Dana",
		})
		assert.Equal(t, "Backend engineer", out["Title"])
		assert.Equal(t, map[string]any{"name": "Dana"}, out["Proposal Owner"])
	})

	t.Run("unset fields are omitted", func(t *testing.T) {
		out := Encode(table, models.FieldValues{"title": "x"})
		_, ok := out["Budget"]
		assert.False(t, ok)
		_, ok = out["Proposal Owner"]
		assert.False(t, ok)
	})
}

func TestApplyChanges(t *testing.T) {
	t.Run("new value registers a change", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		changed, any := ApplyChanges(reg, rec, models.FieldValues{"title": "Backend engineer"})
		require.True(t, any)
		assert.Contains(t, changed, "title")
		got, _ := rec.Get("title")
		assert.Equal(t, "Backend engineer", got)
	})

	t.Run("identical value is not a change", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		rec.Set("title", "Backend engineer")
		changed, any := ApplyChanges(reg, rec, models.FieldValues{"title": "Backend engineer"})
		assert.False(t, any)
		assert.Empty(t, changed)
	})

	t.Run("kind-aware numeric comparison", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		rec.Set("budget", 500)
		// JSON decoding hands back float64 for every number.
		changed, any := ApplyChanges(reg, rec, models.FieldValues{"budget": float64(500)})
		assert.False(t, any)
		assert.Empty(t, changed)
	})

	t.Run("null with declared default applies the default", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		rec.Set("answer", true)
		changed, any := ApplyChanges(reg, rec, models.FieldValues{"answer": nil})
		require.True(t, any)
		assert.Contains(t, changed, "answer")
		got, _ := rec.Get("answer")
		assert.Equal(t, false, got)
	})

	t.Run("null default equal to current is not a change", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		rec.Set("answer", false)
		_, any := ApplyChanges(reg, rec, models.FieldValues{"answer": nil})
		assert.False(t, any)
	})

	t.Run("null without default never overwrites", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		rec.Set("title", "keep me")
		changed, any := ApplyChanges(reg, rec, models.FieldValues{"title": nil})
		assert.False(t, any)
		assert.Empty(t, changed)
		got, _ := rec.Get("title")
		assert.Equal(t, "keep me", got)
	})

	t.Run("unknown fields are tolerated", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		_, any := ApplyChanges(reg, rec, models.FieldValues{"not_registered": "x"})
		assert.False(t, any)
	})

	t.Run("time strings compare against stored times", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		rec.Set("answer_date", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
		_, any := ApplyChanges(reg, rec, models.FieldValues{"answer_date": "2026-03-14"})
		assert.False(t, any)

		changed, any := ApplyChanges(reg, rec, models.FieldValues{"answer_date": "2026-03-15"})
		require.True(t, any)
		assert.Contains(t, changed, "answer_date")
	})

	t.Run("applying the same payload twice is idempotent", func(t *testing.T) {
		reg := testRegistry()
		rec := &models.Record{}
		payload := models.FieldValues{
			"title":  "Backend engineer",
			"budget": float64(500),
			"hourly": 42.5,
			"answer": nil,
		}
		_, first := ApplyChanges(reg, rec, payload)
		assert.True(t, first)
		changed, second := ApplyChanges(reg, rec, payload)
		assert.False(t, second)
		assert.Empty(t, changed)
	})
}
