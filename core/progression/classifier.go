package progression

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

// Catalog maps programs to disciplines. It is built once and injected where needed.
type Catalog struct {
	disciplines map[string]Discipline // {key: Discipline}
	aliases     map[string]string     // {normalized name|synonym: key}
	fallback    Discipline
}

// FallbackDiscipline is used for every program missing from the catalog.
var FallbackDiscipline = Discipline{
	Key:        GeneralKey,
	Label:      "General",
	Type:       TypeBelt,
	HasStripes: false,
}

// NewCatalog builds a catalog from the given disciplines. Keys and synonyms are normalized.
func NewCatalog(disciplines ...Discipline) (*Catalog, error) {
	c := &Catalog{
		disciplines: make(map[string]Discipline, len(disciplines)),
		aliases:     make(map[string]string),
		fallback:    FallbackDiscipline,
	}
	for _, d := range disciplines {
		d.Key = core.NormalizeKey(d.Key)
		if d.Key == "" || d.Key == GeneralKey {
			return nil, errors.Errorf("invalid discipline key %q", d.Key)
		}
		if d.Type != TypeBelt && d.Type != TypeLevel {
			return nil, errors.Errorf("discipline %q: invalid type %q", d.Key, d.Type)
		}
		if _, ok := c.disciplines[d.Key]; ok {
			return nil, errors.Errorf("discipline %q defined twice", d.Key)
		}
		if d.Label == "" {
			d.Label = strings.Title(d.Key)
		}
		if !d.HasStripes {
			d.MaxStripes = 0
		}
		c.disciplines[d.Key] = d

		names := append([]string{d.Key, d.Label}, d.Synonyms...)
		for _, name := range names {
			alias := core.NormalizeKey(name)
			if key, ok := c.aliases[alias]; ok && key != d.Key {
				return nil, errors.Errorf("synonym %q used by %q and %q", alias, key, d.Key)
			}
			c.aliases[alias] = d.Key
		}
	}
	return c, nil
}

// DefaultCatalog returns the academy's program table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		Discipline{Key: "karate", Label: "Karate", Type: TypeBelt, HasStripes: true, MaxStripes: 4},
		Discipline{Key: "taekwondo", Label: "Taekwondo", Type: TypeBelt, HasStripes: true, MaxStripes: 4, Synonyms: []string{"tkd"}},
		Discipline{Key: "bjj", Label: "Brazilian Jiu-Jitsu", Type: TypeBelt, HasStripes: true, MaxStripes: 4, Synonyms: []string{"grappling", "jiu-jitsu"}},
		Discipline{Key: "judo", Label: "Judo", Type: TypeBelt},
		Discipline{Key: "mma", Label: "MMA", Type: TypeLevel, Synonyms: []string{"mixed martial arts"}},
		Discipline{Key: "boxing", Label: "Boxing", Type: TypeLevel},
		Discipline{Key: "kalaripayattu", Label: "Kalaripayattu", Type: TypeLevel, Synonyms: []string{"kalari"}},
		Discipline{Key: "self-defense", Label: "Self Defense", Type: TypeLevel, Synonyms: []string{"self defence"}},
		Discipline{Key: "fitness", Label: "Fat Loss & Fitness", Type: TypeLevel, Synonyms: []string{"fat loss"}},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// CatalogFromConfig builds the catalog from configuration, or returns DefaultCatalog when none is configured.
func CatalogFromConfig(confs []core.DisciplineConfig) (*Catalog, error) {
	if len(confs) == 0 {
		return DefaultCatalog(), nil
	}
	disciplines := make([]Discipline, 0, len(confs))
	for _, dc := range confs {
		disciplines = append(disciplines, Discipline{
			Key:        dc.Key,
			Label:      dc.Label,
			Type:       DisciplineType(core.CleanString(dc.Type, true /* lower */)),
			HasStripes: dc.Stripes,
			MaxStripes: dc.MaxStripes,
			Synonyms:   dc.Synonyms,
		})
	}
	return NewCatalog(disciplines...)
}

// Disciplines returns the configured disciplines sorted by key.
func (c *Catalog) Disciplines() []Discipline {
	all := make([]Discipline, 0, len(c.disciplines))
	for _, d := range c.disciplines {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })
	return all
}

func (c *Catalog) Fallback() Discipline { return c.fallback }

// canonical folds a program name or level discipline tag to a catalog key.
// Unknown tags are returned normalized; empty tags are general.
func (c *Catalog) canonical(tag string) string {
	k := core.NormalizeKey(tag)
	if k == "" {
		return GeneralKey
	}
	if key, ok := c.aliases[k]; ok {
		return key
	}
	return k
}

// Classify maps a student's program to its discipline.
// Unknown programs get the explicit fallback (general, belt-type, no stripes).
func (c *Catalog) Classify(program string) Classification {
	class := Classification{Program: core.CleanString(program)}
	if d, ok := c.disciplines[c.canonical(program)]; ok {
		class.Discipline = d
		return class
	}
	class.Discipline = c.fallback
	class.Fallback = true
	return class
}

// applies reports whether lvl belongs to the ladder of the classified program.
func (c *Catalog) applies(lvl Level, class Classification) bool {
	if lvl.IsGeneral() {
		return true
	}
	if class.Type() == TypeLevel {
		return false
	}
	tag := c.canonical(lvl.Discipline)
	return tag == class.Discipline.Key || tag == core.NormalizeKey(class.Program)
}

// FilterApplicableLevels returns the levels offered for program, ordered by rank.
// Belt disciplines get their own ladder plus general levels; level disciplines get general levels only.
// When nothing applies, the general set (or every level when there is none) is returned with a Notice.
func (c *Catalog) FilterApplicableLevels(levels []Level, program string) Filtered {
	res := Filtered{Classification: c.Classify(program)}
	for _, lvl := range levels {
		if c.applies(lvl, res.Classification) {
			res.Levels = append(res.Levels, lvl)
		}
	}

	if len(res.Levels) == 0 && len(levels) > 0 {
		res.UsedFallback = true
		for _, lvl := range levels {
			if lvl.IsGeneral() {
				res.Levels = append(res.Levels, lvl)
			}
		}
		if len(res.Levels) == 0 {
			res.Levels = append(res.Levels, levels...)
		}
		res.Notice = fmt.Sprintf("no levels configured for %s; showing all available levels", res.Classification.Discipline.Label)
	}

	sortLevels(res.Levels)
	if res.Levels == nil {
		res.Levels = []Level{}
	}
	return res
}

func sortLevels(levels []Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Rank != levels[j].Rank {
			return levels[i].Rank < levels[j].Rank
		}
		return levels[i].Label < levels[j].Label
	})
}
