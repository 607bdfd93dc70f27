package domain

// Condition es la definición de un mercado: agrupa los outcome tokens
// mutuamente excluyentes y colectivamente exhaustivos de una pregunta.
// La engine solo lee conditions; la ownership es del feed externo.
type Condition struct {
	ConditionID  string
	OutcomeCount int

	// ResolutionVector es la distribución de payout sobre los outcomes
	// (suma 1 cuando está presente). nil = mercado sin resolver.
	ResolutionVector []float64
}

// Resolved devuelve true si el mercado tiene vector de resolución.
func (c Condition) Resolved() bool {
	return c.ResolutionVector != nil
}

// PayoutFor devuelve el payout del outcome dado y si está disponible.
// Un vector presente pero más corto que outcomeIndex+1 se trata como
// sin resolver para ese outcome: datos de resolución parciales no deben
// valorar un outcome en silencio.
func (c Condition) PayoutFor(outcomeIndex int) (float64, bool) {
	if c.ResolutionVector == nil {
		return 0, false
	}
	if outcomeIndex < 0 || outcomeIndex >= len(c.ResolutionVector) {
		return 0, false
	}
	return c.ResolutionVector[outcomeIndex], true
}

// OutcomeToken mapea un token ID opaco de mercado a su (condition, outcome).
type OutcomeToken struct {
	TokenID      string
	ConditionID  string
	OutcomeIndex int
}
