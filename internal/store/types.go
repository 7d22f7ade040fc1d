package store

import "fmt"

// Scope identifies one of the two publication targets a song can be
// active in: the arcade release or the home (INFINITAS) release.
type Scope string

const (
	ScopeAC  Scope = "ac"
	ScopeINF Scope = "inf"
)

// Scopes lists all scopes in canonical order
var Scopes = []Scope{ScopeAC, ScopeINF}

// ParseScope validates a free-form scope string at a data boundary
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAC:
		return ScopeAC, nil
	case ScopeINF:
		return ScopeINF, nil
	}
	return "", fmt.Errorf("invalid alias_scope: %q", s)
}

// Qualifier returns the auto-generated title qualifier for the scope
func (s Scope) Qualifier() string {
	if s == ScopeAC {
		return "(AC)"
	}
	return "(INF)"
}

// AliasType tags the provenance layer an alias row came from
type AliasType string

const (
	AliasOfficial AliasType = "official"
	AliasCSVWiki  AliasType = "csv_wiki"
	AliasManual   AliasType = "manual"
)

// AliasTypes lists all known provenance layers
var AliasTypes = []AliasType{AliasOfficial, AliasCSVWiki, AliasManual}

// ParseAliasType validates a free-form alias type string
func ParseAliasType(s string) (AliasType, error) {
	switch AliasType(s) {
	case AliasOfficial:
		return AliasOfficial, nil
	case AliasCSVWiki:
		return AliasCSVWiki, nil
	case AliasManual:
		return AliasManual, nil
	}
	return "", fmt.Errorf("invalid alias_type: %q", s)
}

// PlayStyle is the single/double play axis of a chart
type PlayStyle string

const (
	StyleSP PlayStyle = "SP"
	StyleDP PlayStyle = "DP"
)

// Difficulty is one of the five named chart tiers
type Difficulty string

const (
	DiffBeginner    Difficulty = "BEGINNER"
	DiffNormal      Difficulty = "NORMAL"
	DiffHyper       Difficulty = "HYPER"
	DiffAnother     Difficulty = "ANOTHER"
	DiffLeggendaria Difficulty = "LEGGENDARIA"
)
