// internal/rating/glicko2.go
package rating

import "math"

const (
	// GlickoScale converts between the 1500-based scale and Glicko-2's internal mu.
	GlickoScale = 173.7178
	// DefaultRating is the baseline rating for a new player.
	DefaultRating = 1500.0
	// DefaultDeviation is the baseline rating deviation (RD).
	DefaultDeviation = 350.0
	// DefaultVolatility is the baseline volatility.
	DefaultVolatility = 0.06
	// Tau constrains volatility changes between periods.
	Tau = 0.5
	// Epsilon is the convergence tolerance of the volatility iteration.
	Epsilon = 0.000001
)

// Rating is a player's Glicko-2 state on the 1500 scale.
type Rating struct {
	Value      float64
	Deviation  float64
	Volatility float64
}

// Default is the rating assigned to players without history.
func Default() Rating {
	return Rating{Value: DefaultRating, Deviation: DefaultDeviation, Volatility: DefaultVolatility}
}

// normalized fills zero fields with defaults so freshly created rows behave.
func (r Rating) normalized() Rating {
	if r.Value == 0 {
		r.Value = DefaultRating
	}
	if r.Deviation <= 0 {
		r.Deviation = DefaultDeviation
	}
	if r.Volatility <= 0 {
		r.Volatility = DefaultVolatility
	}
	return r
}

func (r Rating) mu() float64  { return (r.Value - DefaultRating) / GlickoScale }
func (r Rating) phi() float64 { return r.Deviation / GlickoScale }

// outcome is one pairwise result from the rated player's point of view.
type outcome struct {
	opp   Rating
	score float64 // 1 win, 0.5 draw, 0 loss
}

// update applies one Glicko-2 rating period with the given outcomes.
func update(r Rating, results []outcome) Rating {
	r = r.normalized()
	mu, phi, sigma := r.mu(), r.phi(), r.Volatility

	if len(results) == 0 {
		// no games: only the deviation grows
		phiStar := math.Sqrt(phi*phi + sigma*sigma)
		return Rating{Value: r.Value, Deviation: phiStar * GlickoScale, Volatility: sigma}
	}

	var vInv, deltaSum float64
	for _, o := range results {
		opp := o.opp.normalized()
		gVal := g(opp.phi())
		eVal := expected(mu, opp.mu(), opp.phi())
		vInv += gVal * gVal * eVal * (1 - eVal)
		deltaSum += gVal * (o.score - eVal)
	}
	v := 1.0 / vInv
	delta := v * deltaSum

	newSigma := volatility(sigma, phi, v, delta)
	phiStar := math.Sqrt(phi*phi + newSigma*newSigma)
	phiPrime := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muPrime := mu + phiPrime*phiPrime*deltaSum

	return Rating{
		Value:      muPrime*GlickoScale + DefaultRating,
		Deviation:  phiPrime * GlickoScale,
		Volatility: newSigma,
	}
}

// volatility runs the Illinois iteration from step 5 of the Glicko-2 paper.
func volatility(sigma, phi, v, delta float64) float64 {
	a := math.Log(sigma * sigma)
	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*Tau, phi, v, delta, a) < 0 {
			k++
		}
		B = a - k*Tau
	}

	fA := f(A, phi, v, delta, a)
	fB := f(B, phi, v, delta, a)
	for i := 0; i < 100 && math.Abs(B-A) > Epsilon; i++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C, phi, v, delta, a)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}
	return math.Exp(A / 2)
}

func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

func expected(mu, muOpp, phiOpp float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phiOpp)*(mu-muOpp)))
}

func f(x, phi, v, delta, a float64) float64 {
	ex := math.Exp(x)
	num := ex * (delta*delta - phi*phi - v - ex)
	den := 2.0 * math.Pow(phi*phi+v+ex, 2)
	return num/den - (x-a)/(Tau*Tau)
}
