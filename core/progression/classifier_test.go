package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

func TestCatalog_Classify(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		program      string
		wantKey      string
		wantType     DisciplineType
		wantStripes  bool
		wantFallback bool
	}{
		{program: "Karate", wantKey: "karate", wantType: TypeBelt, wantStripes: true},
		{program: "  KARATE ", wantKey: "karate", wantType: TypeBelt, wantStripes: true},
		{program: "BJJ", wantKey: "bjj", wantType: TypeBelt, wantStripes: true},
		{program: "Grappling", wantKey: "bjj", wantType: TypeBelt, wantStripes: true},
		{program: "Brazilian Jiu-Jitsu", wantKey: "bjj", wantType: TypeBelt, wantStripes: true},
		{program: "Judo", wantKey: "judo", wantType: TypeBelt},
		{program: "Taekwondo", wantKey: "taekwondo", wantType: TypeBelt, wantStripes: true},
		{program: "MMA", wantKey: "mma", wantType: TypeLevel},
		{program: "Boxing", wantKey: "boxing", wantType: TypeLevel},
		{program: "Kalaripayattu", wantKey: "kalaripayattu", wantType: TypeLevel},
		{program: "Self-Defence", wantKey: "self-defense", wantType: TypeLevel},
		{program: "Fat Loss & Fitness", wantKey: "fitness", wantType: TypeLevel},
		{program: "Kickboxing", wantKey: GeneralKey, wantType: TypeBelt, wantFallback: true},
		{program: "", wantKey: GeneralKey, wantType: TypeBelt, wantFallback: true},
	}
	for _, tt := range tests {
		t.Run(tt.program, func(t *testing.T) {
			got := catalog.Classify(tt.program)
			assert.Equal(t, tt.wantKey, got.Discipline.Key)
			assert.Equal(t, tt.wantType, got.Type())
			assert.Equal(t, tt.wantStripes, got.Discipline.HasStripes)
			assert.Equal(t, tt.wantFallback, got.Fallback)
		})
	}
}

func TestNewCatalog(t *testing.T) {
	tests := []struct {
		name        string
		disciplines []Discipline
		wantErr     bool
	}{
		{name: "empty", disciplines: nil},
		{name: "valid", disciplines: []Discipline{{Key: "Kick Boxing", Type: TypeLevel}}},
		{name: "invalid type", disciplines: []Discipline{{Key: "karate", Type: "rope"}}, wantErr: true},
		{name: "reserved key", disciplines: []Discipline{{Key: "General", Type: TypeBelt}}, wantErr: true},
		{name: "duplicate key", disciplines: []Discipline{{Key: "karate", Type: TypeBelt}, {Key: "KARATE", Type: TypeBelt}}, wantErr: true},
		{
			name: "shared synonym",
			disciplines: []Discipline{
				{Key: "bjj", Type: TypeBelt, Synonyms: []string{"grappling"}},
				{Key: "wrestling", Type: TypeLevel, Synonyms: []string{"Grappling"}},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.disciplines...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCatalog() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCatalogFromConfig(t *testing.T) {
	c, err := CatalogFromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "bjj", c.Classify("grappling").Discipline.Key)

	c, err = CatalogFromConfig([]core.DisciplineConfig{
		{Key: "kickboxing", Label: "Kickboxing", Type: "LEVEL", Synonyms: []string{"k1"}},
	})
	require.NoError(t, err)
	got := c.Classify("K1")
	assert.Equal(t, "kickboxing", got.Discipline.Key)
	assert.Equal(t, TypeLevel, got.Type())
	assert.True(t, c.Classify("Karate").Fallback, "only configured disciplines are known")
	assert.Len(t, c.Disciplines(), 1)
}

func levelIDs(levels []Level) []string {
	ids := make([]string, 0, len(levels))
	for _, lvl := range levels {
		ids = append(ids, lvl.ID)
	}
	return ids
}

func TestCatalog_FilterApplicableLevels(t *testing.T) {
	catalog := DefaultCatalog()
	levels := []Level{
		{ID: "k2", Discipline: "karate", Rank: 2, Label: "Orange"},
		{ID: "g1", Rank: 1, Label: "White"},
		{ID: "k1", Discipline: "Karate", Rank: 1, Label: "Yellow"},
		{ID: "b1", Discipline: "grappling", Rank: 1, Label: "BJJ White"},
		{ID: "b2", Discipline: "bjj", Rank: 2, Label: "BJJ Blue"},
		{ID: "g2", Discipline: "general", Rank: 2, Label: "Green"},
		{ID: "kb1", Discipline: "kickboxing", Rank: 1, Label: "Red Prajied"},
		{ID: "m1", Discipline: "mma", Rank: 1, Label: "Foundation"},
	}

	tests := []struct {
		name         string
		program      string
		levels       []Level
		wantIDs      []string
		wantFallback bool
	}{
		{name: "belt discipline with general", program: "Karate", levels: levels, wantIDs: []string{"g1", "k1", "g2", "k2"}},
		{name: "synonym pair", program: "BJJ", levels: levels, wantIDs: []string{"b1", "g1", "b2", "g2"}},
		{name: "synonym program", program: "Grappling", levels: levels, wantIDs: []string{"b1", "g1", "b2", "g2"}},
		{name: "level discipline gets general only", program: "MMA", levels: levels, wantIDs: []string{"g1", "g2"}},
		{name: "unmapped program matches its own tag", program: "Kickboxing", levels: levels, wantIDs: []string{"kb1", "g1", "g2"}},
		{
			name:         "empty set falls back to everything",
			program:      "Boxing",
			levels:       []Level{{ID: "k1", Discipline: "karate", Rank: 1, Label: "Yellow"}, {ID: "m1", Discipline: "mma", Rank: 1, Label: "Foundation"}},
			wantIDs:      []string{"m1", "k1"},
			wantFallback: true,
		},
		{name: "no levels at all", program: "Karate", wantIDs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := catalog.FilterApplicableLevels(tt.levels, tt.program)
			assert.Equal(t, tt.wantIDs, levelIDs(got.Levels))
			assert.Equal(t, tt.wantFallback, got.UsedFallback)
			if tt.wantFallback {
				assert.NotEmpty(t, got.Notice)
			} else {
				assert.Empty(t, got.Notice)
			}
		})
	}
}
