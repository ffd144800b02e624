package pk

import (
	"math"

	"github.com/mrcode/hrt-tracker/internal/models"
)

// RouteParams holds the absorption characteristics of one route
type RouteParams struct {
	Ka float64 `json:"ka"` // Absorption rate constant (1/h)
	F  float64 `json:"f"`  // Bioavailable fraction
}

// Config contains the model constants
type Config struct {
	KeH      float64 `json:"keH"`      // Elimination rate constant (1/h)
	VdLPerKG float64 `json:"vdLPerKG"` // Apparent volume of distribution
	StepH    float64 `json:"stepH"`    // Grid resolution in hours
	TailH    float64 `json:"tailH"`    // Hours simulated after the last dose

	// MaxGridPoints bounds the time grid; longer schedules are rejected
	MaxGridPoints int `json:"maxGridPoints"`

	Routes  map[models.Route]RouteParams `json:"routes"`
	EsterKa map[models.Ester]float64     `json:"esterKa"` // Depot release rate per injected ester (1/h)
}

func halfLife(hours float64) float64 {
	return math.Ln2 / hours
}

// DefaultConfig returns the reference estradiol parameters
func DefaultConfig() Config {
	return Config{
		KeH:      halfLife(6),
		VdLPerKG: 15,
		StepH:    0.5,
		TailH:    14 * 24,

		MaxGridPoints: 500_000,

		Routes: map[models.Route]RouteParams{
			models.RouteInjection:  {Ka: halfLife(84), F: 1.0},
			models.RouteOral:       {Ka: halfLife(1), F: 0.05},
			models.RouteSublingual: {Ka: halfLife(0.5), F: 0.1},
			models.RouteGel:        {Ka: halfLife(8), F: 0.1},
			models.RoutePatch:      {F: 1.0},
		},
		EsterKa: map[models.Ester]float64{
			models.EsterNone:      halfLife(12),
			models.EsterBenzoate:  halfLife(36),
			models.EsterValerate:  halfLife(84),
			models.EsterCypionate: halfLife(192),
			models.EsterEnanthate: halfLife(168),
		},
	}
}

// withDefaults fills every unset field from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.KeH <= 0 {
		c.KeH = def.KeH
	}
	if c.VdLPerKG <= 0 {
		c.VdLPerKG = def.VdLPerKG
	}
	if c.StepH <= 0 {
		c.StepH = def.StepH
	}
	if c.TailH <= 0 {
		c.TailH = def.TailH
	}
	if c.MaxGridPoints <= 0 {
		c.MaxGridPoints = def.MaxGridPoints
	}
	routes := make(map[models.Route]RouteParams, len(def.Routes))
	for r, p := range def.Routes {
		routes[r] = p
	}
	for r, p := range c.Routes {
		routes[r] = p
	}
	c.Routes = routes

	esters := make(map[models.Ester]float64, len(def.EsterKa))
	for e, ka := range def.EsterKa {
		esters[e] = ka
	}
	for e, ka := range c.EsterKa {
		esters[e] = ka
	}
	c.EsterKa = esters
	return c
}

// esterKa returns the depot release rate for an injected ester. An empty or
// unknown ester falls back to the injection route rate.
func (c Config) esterKa(e models.Ester) float64 {
	if ka, ok := c.EsterKa[e]; ok {
		return ka
	}
	return c.Routes[models.RouteInjection].Ka
}

// esterFraction is the estradiol share of the ester's molecular weight
func esterFraction(e models.Ester) float64 {
	switch e {
	case models.EsterBenzoate:
		return 272.38 / 376.49
	case models.EsterValerate:
		return 272.38 / 356.50
	case models.EsterCypionate:
		return 272.38 / 396.57
	case models.EsterEnanthate:
		return 272.38 / 384.56
	default:
		return 1.0
	}
}
