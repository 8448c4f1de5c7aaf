package model

import (
	"errors"
	"strings"
	"time"
)

// Condition describes the physical grade of a card copy.
type Condition string

const (
	ConditionMint             Condition = "MINT"
	ConditionNearMint         Condition = "NEAR_MINT"
	ConditionLightlyPlayed    Condition = "LIGHTLY_PLAYED"
	ConditionModeratelyPlayed Condition = "MODERATELY_PLAYED"
	ConditionHeavilyPlayed    Condition = "HEAVILY_PLAYED"
	ConditionDamaged          Condition = "DAMAGED"
)

// DefaultCondition is used when a source reports no condition or one that
// cannot be normalized.
const DefaultCondition = ConditionNearMint

// ParseCondition normalizes a source-specific condition string into the
// shared enum. Unknown values fall back to DefaultCondition; ok reports
// whether the input was recognized.
func ParseCondition(s string) (cond Condition, ok bool) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " "))) {
	case "mint", "m":
		return ConditionMint, true
	case "near mint", "nm", "nearmint", "near mint-mint", "nm-m":
		return ConditionNearMint, true
	case "lightly played", "lp", "slightly played", "sp", "excellent", "ex":
		return ConditionLightlyPlayed, true
	case "moderately played", "mp", "played", "good", "gd":
		return ConditionModeratelyPlayed, true
	case "heavily played", "hp", "light played":
		return ConditionHeavilyPlayed, true
	case "damaged", "dmg", "poor", "po":
		return ConditionDamaged, true
	default:
		return DefaultCondition, false
	}
}

// Language is the print language of a card.
type Language string

const (
	LangEnglish    Language = "en"
	LangGerman     Language = "de"
	LangFrench     Language = "fr"
	LangItalian    Language = "it"
	LangSpanish    Language = "es"
	LangPortuguese Language = "pt"
	LangJapanese   Language = "ja"
	LangKorean     Language = "ko"
	LangRussian    Language = "ru"
	LangChineseS   Language = "zhs"
	LangChineseT   Language = "zht"
)

// DefaultLanguage is used when a source reports no language or one that
// cannot be normalized.
const DefaultLanguage = LangEnglish

// ParseLanguage normalizes a source-specific language string. Unknown values
// fall back to DefaultLanguage; ok reports whether the input was recognized.
func ParseLanguage(s string) (lang Language, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "english":
		return LangEnglish, true
	case "de", "german", "deutsch":
		return LangGerman, true
	case "fr", "french":
		return LangFrench, true
	case "it", "italian":
		return LangItalian, true
	case "es", "spanish":
		return LangSpanish, true
	case "pt", "portuguese":
		return LangPortuguese, true
	case "ja", "jp", "japanese":
		return LangJapanese, true
	case "ko", "korean":
		return LangKorean, true
	case "ru", "russian":
		return LangRussian, true
	case "zhs", "cs", "simplified chinese":
		return LangChineseS, true
	case "zht", "ct", "traditional chinese":
		return LangChineseT, true
	default:
		return DefaultLanguage, false
	}
}

// SnapshotSource tags the provenance of a price snapshot.
type SnapshotSource string

const (
	// SourceAPI marks a price fetched live from a per-card pricing API.
	SourceAPI SnapshotSource = "api"

	// SourceBulk marks a price loaded from a periodic bulk dump.
	SourceBulk SnapshotSource = "bulk"

	// SourceConditionAPI marks a per-condition price reported directly by
	// a marketplace listings API.
	SourceConditionAPI SnapshotSource = "condition_api"

	// SourceConditionMultiplier marks a per-condition price derived from a
	// near-mint price via fixed multipliers.
	SourceConditionMultiplier SnapshotSource = "condition_multiplier"
)

// Card is the subset of the card catalog the ingestion layer reads.
// The catalog itself is owned by the CRUD layer.
type Card struct {
	ID              int64
	Name            string
	SetCode         string // lowercase set code (e.g. "neo")
	CollectorNumber string
	ScryfallID      string // external UUID, empty if unknown
	MTGJSONID       string // bulk dump UUID, empty if unknown
}

// Identity returns the lookup identity used to query source adapters.
func (c Card) Identity() CardIdentity {
	return CardIdentity{
		Name:            c.Name,
		SetCode:         c.SetCode,
		CollectorNumber: c.CollectorNumber,
		ScryfallID:      c.ScryfallID,
		MTGJSONID:       c.MTGJSONID,
	}
}

// CardIdentity carries the fields source adapters need to resolve a card.
type CardIdentity struct {
	Name            string
	SetCode         string
	CollectorNumber string
	ScryfallID      string
	MTGJSONID       string
}

// Marketplace is a priced venue (vendor) reference row.
type Marketplace struct {
	ID              int64
	Name            string
	Slug            string // stable identifier (e.g. "cardmarket")
	DefaultCurrency string // ISO 4217 code
	Enabled         bool
}

// PriceSnapshot is one observed price for a card at a marketplace at a point
// in time, under a specific condition/foil/language combination.
//
// The 6-tuple (Time, CardID, MarketplaceID, Condition, IsFoil, Language) is
// the composite primary key; a colliding write replaces the price and
// provenance fields of the existing row.
type PriceSnapshot struct {
	Time          time.Time
	CardID        int64
	MarketplaceID int64
	Condition     Condition
	IsFoil        bool
	Language      Language

	Price    float64
	Currency string

	// PriceFoil mirrors the paired foil variant when the source reports
	// both variants in one response. Zero when absent.
	PriceFoil float64

	// Aggregates reported by sources that aggregate listings themselves.
	// Zero when absent.
	MinPrice    float64
	MaxPrice    float64
	MedianPrice float64
	NumListings int

	Source SnapshotSource
}

// SnapshotKey is the comparable composite key of a PriceSnapshot.
type SnapshotKey struct {
	Time          int64 // unix seconds
	CardID        int64
	MarketplaceID int64
	Condition     Condition
	IsFoil        bool
	Language      Language
}

// Key returns the composite key of the snapshot.
func (s PriceSnapshot) Key() SnapshotKey {
	return SnapshotKey{
		Time:          s.Time.Unix(),
		CardID:        s.CardID,
		MarketplaceID: s.MarketplaceID,
		Condition:     s.Condition,
		IsFoil:        s.IsFoil,
		Language:      s.Language,
	}
}

var (
	// ErrNonPositivePrice rejects zero or negative prices.
	ErrNonPositivePrice = errors.New("price must be positive")

	// ErrMissingKey rejects snapshots without a full composite key.
	ErrMissingKey = errors.New("snapshot composite key is incomplete")
)

// Validate checks the invariants that must hold before a snapshot is stored.
func (s PriceSnapshot) Validate() error {
	if s.Price <= 0 {
		return ErrNonPositivePrice
	}
	if s.Time.IsZero() || s.CardID == 0 || s.MarketplaceID == 0 || s.Condition == "" || s.Language == "" {
		return ErrMissingKey
	}
	return nil
}

// PriceQuote is the normalized shape returned by all source adapters.
// Condition and Language are always normalized before a quote leaves an
// adapter.
type PriceQuote struct {
	MarketplaceSlug string
	Price           float64
	Currency        string
	Condition       Condition
	IsFoil          bool
	Language        Language

	// Optional aggregates, zero when the source does not aggregate.
	MinPrice    float64
	MaxPrice    float64
	MedianPrice float64
	NumListings int

	Source SnapshotSource
	AsOf   time.Time
}

// Validate checks that a quote is storable.
func (q PriceQuote) Validate() error {
	if q.Price <= 0 {
		return ErrNonPositivePrice
	}
	return nil
}

// Listing is a single marketplace offer for a card.
type Listing struct {
	Price     float64
	Currency  string
	Condition Condition
	Language  Language
	IsFoil    bool
	Quantity  int
}
