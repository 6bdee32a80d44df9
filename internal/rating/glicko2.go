// internal/rating/glicko2.go
package rating

import "math"

const (
	// GlickoScale is the multiplier used for converting between Elo and Glicko2's mu.
	GlickoScale = 173.7178
	// DefaultElo is the rating a new player starts with.
	DefaultElo = 1500.0
	// DefaultRD is the starting rating deviation on the Elo scale.
	DefaultRD = 350.0
	// DefaultVolatility is the starting volatility.
	DefaultVolatility = 0.06
	// MinRD keeps the deviation from collapsing after many games.
	MinRD = 30.0
	// Tau is the constraint on volatility changes.
	Tau = 0.5
	// Epsilon is the tolerance used in iteration stopping conditions.
	Epsilon = 0.000001
)

// Rating is a player's standing on the familiar 1500-based scale.
type Rating struct {
	Elo        int     `json:"elo"`
	RD         float64 `json:"rd"`
	Volatility float64 `json:"volatility"`
}

// Default returns the rating of a player with no games.
func Default() Rating {
	return Rating{Elo: int(DefaultElo), RD: DefaultRD, Volatility: DefaultVolatility}
}

// normalize fills zero fields with defaults so rows created before ratings existed
// still update sensibly.
func (r Rating) normalize() Rating {
	if r.RD <= 0 {
		r.RD = DefaultRD
	}
	if r.Volatility <= 0 {
		r.Volatility = DefaultVolatility
	}
	return r
}

// glicko2 holds the transformed rating (mu), deviation (phi) and volatility (sigma).
type glicko2 struct {
	mu    float64
	phi   float64
	sigma float64
}

func toGlicko2(r Rating) glicko2 {
	r = r.normalize()
	return glicko2{
		mu:    (float64(r.Elo) - DefaultElo) / GlickoScale,
		phi:   r.RD / GlickoScale,
		sigma: r.Volatility,
	}
}

func (s glicko2) toRating() Rating {
	rd := math.Max(s.phi*GlickoScale, MinRD)
	return Rating{
		Elo:        int(math.Round(s.mu*GlickoScale + DefaultElo)),
		RD:         rd,
		Volatility: s.sigma,
	}
}

// Update1v1 rates one decided match. Both updates use the pre-match ratings.
func Update1v1(winner, loser Rating) (Rating, Rating) {
	w, l := toGlicko2(winner), toGlicko2(loser)
	return update(w, l, 1).toRating(), update(l, w, 0).toRating()
}

// update performs a single-period Glicko2 update of r against opp with the given
// score in [0..1].
func update(r, opp glicko2, score float64) glicko2 {
	gVal := g(opp.phi)
	eVal := expected(r.mu, opp.mu, opp.phi)

	v := 1.0 / (gVal * gVal * eVal * (1 - eVal))
	delta := v * gVal * (score - eVal)

	a := math.Log(r.sigma * r.sigma)
	fx := func(x float64) float64 {
		return f(x, r.phi, v, delta, a)
	}

	// Illinois variant of regula falsi on the volatility
	A := a
	var B float64
	if delta*delta > r.phi*r.phi+v {
		B = math.Log(delta*delta - r.phi*r.phi - v)
	} else {
		k := 1.0
		for fx(a-k*Tau) < 0 {
			k++
		}
		B = a - k*Tau
	}
	fA, fB := fx(A), fx(B)
	for i := 0; i < 100 && math.Abs(B-A) > Epsilon; i++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := fx(C)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}
	sigma := math.Exp(A / 2)

	phiStar := math.Sqrt(r.phi*r.phi + sigma*sigma)
	phi := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	mu := r.mu + phi*phi*gVal*(score-eVal)

	return glicko2{mu: mu, phi: phi, sigma: sigma}
}

// g is the G(phi) factor, 1/sqrt(1+3phi^2/pi^2).
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/math.Pi/math.Pi)
}

// expected is the expected score of mu against mu2 with deviation phi2.
func expected(mu, mu2, phi2 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phi2)*(mu-mu2)))
}

// f is the volatility root-finding function.
func f(x, phi, v, delta, a float64) float64 {
	ex := math.Exp(x)
	num := ex * (delta*delta - phi*phi - v - ex)
	den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
	return (num / den) - ((x - a) / (Tau * Tau))
}
