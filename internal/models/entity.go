package models

// EntityKind names the kind of thing a mention refers to.
type EntityKind string

const (
	KindPerson     EntityKind = "person"
	KindCompany    EntityKind = "company"
	KindClass      EntityKind = "class"
	KindIngredient EntityKind = "ingredient"
	KindRecipe     EntityKind = "recipe"
	KindRestaurant EntityKind = "restaurant"
)

// EntityMention is a raw name extracted from text, not yet resolved.
type EntityMention struct {
	Name string     `json:"name"`
	Kind EntityKind `json:"kind"`
	// Relation is the schema relation key the resolved id is linked under.
	// Empty means the mention is the record itself (upsert categories).
	Relation string `json:"relation,omitempty"`
	// Quantity is the signed amount for ingredient mentions.
	Quantity int `json:"quantity,omitempty"`
}

// MatchTier records which resolution stage produced a ResolvedEntity.
type MatchTier string

const (
	TierExact      MatchTier = "exact"
	TierNormalized MatchTier = "normalized"
	TierFuzzy      MatchTier = "fuzzy"
	TierLexical    MatchTier = "lexical"
	TierSemantic   MatchTier = "semantic"
	TierCreated    MatchTier = "created"
	TierUnresolved MatchTier = "unresolved"
)

// ResolvedEntity is a mention plus the record it resolved to.
// RecordID is empty exactly when Tier is TierUnresolved.
type ResolvedEntity struct {
	Mention  EntityMention `json:"mention"`
	RecordID string        `json:"record_id,omitempty"`
	Title    string        `json:"title,omitempty"`
	URL      string        `json:"url,omitempty"`
	Tier     MatchTier     `json:"tier"`
}

// Resolved reports whether the mention was linked to a record.
func (r ResolvedEntity) Resolved() bool {
	return r.Tier != TierUnresolved && r.RecordID != ""
}
